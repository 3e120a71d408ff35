package sources

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
)

var tenant = uuid.MustParse("6f1d3c9a-1b7e-4f51-9f4e-2ad4a1c3b001")

func lookup(t *testing.T, typ entity.Type) entity.Schema {
	t.Helper()
	s, ok := entity.Default().Lookup(typ)
	require.True(t, ok)
	return s
}

func TestRelationalQuery(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		`SELECT * FROM "organization_translations" WHERE "tenant_id" = $1 ORDER BY "organization_id", "locale"`,
		relationalQuery(lookup(t, entity.Organization)),
	)
	require.Equal(t,
		`SELECT * FROM "physical_address" WHERE "tenant_id" = $1 ORDER BY "id"`,
		relationalQuery(lookup(t, entity.PhysicalAddress)),
	)
}

func TestRelational_FetchRows(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	schema := lookup(t, entity.Organization)
	mock.ExpectQuery(regexp.QuoteMeta(relationalQuery(schema))).
		WithArgs(tenant.String()).
		WillReturnRows(sqlmock.NewRows([]string{"organization_id", "locale", "name", "email"}).
			AddRow("o1", "en", []byte("Food Bank"), nil).
			AddRow("o2", "es", "Banco", "a@b.org"))

	src := NewRelational(sqlx.NewDb(db, "postgres"))
	ctx := composables.WithTenantID(context.Background(), tenant)
	rows, err := src.FetchRows(ctx, schema)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Food Bank", rows[0]["name"])
	require.Nil(t, rows[0]["email"])
	require.Equal(t, "es", rows[1]["locale"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRelational_FetchRowsRequiresTenant(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = NewRelational(sqlx.NewDb(db, "postgres")).FetchRows(context.Background(), lookup(t, entity.Organization))
	require.ErrorIs(t, err, composables.ErrNoTenantID)
}

func TestRelational_FetchRowsWrapsQueryError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	schema := lookup(t, entity.Location)
	mock.ExpectQuery(regexp.QuoteMeta(relationalQuery(schema))).WillReturnError(context.DeadlineExceeded)

	ctx := composables.WithTenantID(context.Background(), tenant)
	_, err = NewRelational(sqlx.NewDb(db, "postgres")).FetchRows(ctx, schema)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "location_translations")
}
