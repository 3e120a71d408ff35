// Package sources reads raw directory rows from the upstream systems.
package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
)

// Relational reads the tenant's rows of the translation tables.
type Relational struct {
	db *sqlx.DB
}

func NewRelational(db *sqlx.DB) *Relational {
	return &Relational{db: db}
}

func OpenRelational(ctx context.Context, dsn string) (*Relational, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to relational store")
	}
	return NewRelational(db), nil
}

func (r *Relational) Close() error {
	return r.db.Close()
}

func relationalQuery(schema entity.Schema) string {
	order := []string{pq.QuoteIdentifier(schema.KeyField)}
	if schema.Localized {
		order = append(order, pq.QuoteIdentifier(entity.LocaleField))
	}
	return fmt.Sprintf(
		"SELECT * FROM %s WHERE %s = $1 ORDER BY %s",
		pq.QuoteIdentifier(schema.Table),
		pq.QuoteIdentifier(entity.TenantIDField),
		strings.Join(order, ", "),
	)
}

func (r *Relational) FetchRows(ctx context.Context, schema entity.Schema) ([]entity.RawRow, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryxContext(ctx, relationalQuery(schema), tenantID.String())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", schema.Table)
	}
	defer rows.Close()

	var out []entity.RawRow
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s", schema.Table)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, entity.RawRow(m))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", schema.Table)
	}
	return out, nil
}
