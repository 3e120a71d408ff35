package services

import (
	"context"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

// Source fetches every raw row of one entity type. Rows come back in a
// source-defined order that is stable within a run.
type Source interface {
	FetchRows(ctx context.Context, schema entity.Schema) ([]entity.RawRow, error)
}

// Store reads and writes the target store. The tenant is taken from ctx and
// every call is scoped by it.
type Store interface {
	ListByTenant(ctx context.Context, schema entity.Schema) ([]entity.RawRow, error)
	Insert(ctx context.Context, schema entity.Schema, rec entity.Record) error
	Update(ctx context.Context, schema entity.Schema, key entity.Key, changed map[string]entity.Value) error
	Delete(ctx context.Context, schema entity.Schema, key entity.Key) error
}

// QuarantineWriter receives the invalid records of a run once.
type QuarantineWriter interface {
	WriteRecords(ctx context.Context, records []InvalidRecord) error
}

// TxRunner runs fn inside one tenant-scoped transaction.
type TxRunner func(ctx context.Context, fn func(context.Context) error) error

// storeSource reads the persisted rows of the target store, one tenant
// transaction per type.
type storeSource struct {
	store Store
	inTx  TxRunner
}

func (s storeSource) FetchRows(ctx context.Context, schema entity.Schema) ([]entity.RawRow, error) {
	var rows []entity.RawRow
	err := s.inTx(ctx, func(txCtx context.Context) error {
		got, err := s.store.ListByTenant(txCtx, schema)
		rows = got
		return err
	})
	return rows, err
}
