package persistence

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
)

func canDialPostgres(tb testing.TB) bool {
	tb.Helper()

	host := strings.TrimSpace(os.Getenv("DB_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("DB_PORT"))
	if port == "" {
		port = "5432"
	}
	dialer := &net.Dialer{Timeout: 250 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func TestDirectoryRepository_RoundTrip(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("DIRECTORY_TEST_DSN"))
	if dsn == "" || !canDialPostgres(t) {
		t.Skip("postgres not reachable; set DIRECTORY_TEST_DSN")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	catalog, err := entity.NewCatalog(entity.Schema{
		Type:      "it_org",
		Table:     "it_org_translations",
		KeyField:  "organization_id",
		Localized: true,
		Canonical: true,
		Fields: []entity.Field{
			{Name: "name", Kind: entity.KindString},
			{Name: "year_incorporated", Kind: entity.KindNumber},
		},
	})
	require.NoError(t, err)
	s, ok := catalog.Lookup("it_org")
	require.True(t, ok)

	ctx = composables.WithPool(ctx, pool)
	ctx = composables.WithTenantID(ctx, tenant)
	repo := NewDirectoryRepository()

	// Temp tables live in one session, so everything runs in one transaction
	// that is rolled back at the end.
	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	ctx = composables.WithTx(ctx, tx)

	_, err = tx.Exec(ctx, `
		CREATE TEMP TABLE it_org_translations (
			tenant_id uuid NOT NULL,
			organization_id text NOT NULL,
			locale text NOT NULL,
			is_canonical boolean NOT NULL DEFAULT false,
			name text,
			year_incorporated numeric,
			PRIMARY KEY (tenant_id, organization_id, locale)
		) ON COMMIT DROP
	`)
	require.NoError(t, err)

	key := entity.Key{ID: "o1", Locale: "en"}
	require.NoError(t, repo.Insert(ctx, s, entity.Record{
		Key:         key,
		TenantID:    tenant,
		IsCanonical: true,
		Fields:      map[string]entity.Value{"name": entity.String("Old"), "year_incorporated": entity.String("1999")},
	}))
	require.NoError(t, repo.Update(ctx, s, key, map[string]entity.Value{"name": entity.String("New")}))

	rows, err := repo.ListByTenant(ctx, s)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "New", rows[0]["name"])
	require.Equal(t, true, rows[0]["is_canonical"])
	v, err := entity.Normalize(entity.KindNumber, rows[0]["year_incorporated"])
	require.NoError(t, err)
	require.Equal(t, "1999", v.String())

	require.NoError(t, repo.Delete(ctx, s, key))
	require.ErrorIs(t, repo.Delete(ctx, s, key), ErrRecordNotFound)
}
