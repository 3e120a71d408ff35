// Package persistence writes directory records to the target store.
package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrTenantMismatch = errors.New("record tenant does not match context tenant")
)

// DirectoryRepository is the tenant-scoped target store. It runs inside the
// transaction found in ctx, or directly on the pool.
type DirectoryRepository struct{}

func NewDirectoryRepository() *DirectoryRepository {
	return &DirectoryRepository{}
}

func tenantFrom(ctx context.Context) (uuid.UUID, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "failed to get tenant")
	}
	return tenantID, nil
}

// ListByTenant returns every persisted row of schema.Type for the tenant.
func (r *DirectoryRepository) ListByTenant(ctx context.Context, schema entity.Schema) ([]entity.RawRow, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}

	stmt := buildList(schema, tenantID)
	rows, err := tx.Query(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query %s", schema.Table)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []entity.RawRow
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan %s", schema.Table)
		}
		row := make(entity.RawRow, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "error iterating %s", schema.Table)
	}
	return out, nil
}

func (r *DirectoryRepository) Insert(ctx context.Context, schema entity.Schema, rec entity.Record) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	if rec.TenantID != uuid.Nil && rec.TenantID != tenantID {
		return errors.Wrapf(ErrTenantMismatch, "insert %s %s", schema.Type, rec.Key)
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	stmt := buildInsert(schema, tenantID, rec)
	if _, err := tx.Exec(ctx, stmt.sql, stmt.args...); err != nil {
		return errors.Wrapf(err, "failed to insert %s %s", schema.Type, rec.Key)
	}
	return nil
}

func (r *DirectoryRepository) Update(ctx context.Context, schema entity.Schema, key entity.Key, changed map[string]entity.Value) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	stmt, err := buildUpdate(schema, tenantID, key, changed)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return errors.Wrapf(err, "failed to update %s %s", schema.Type, key)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %s: %w", schema.Type, key, ErrRecordNotFound)
	}
	return nil
}

func (r *DirectoryRepository) Delete(ctx context.Context, schema entity.Schema, key entity.Key) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	stmt := buildDelete(schema, tenantID, key)
	tag, err := tx.Exec(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return errors.Wrapf(err, "failed to delete %s %s", schema.Type, key)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s %s: %w", schema.Type, key, ErrRecordNotFound)
	}
	return nil
}
