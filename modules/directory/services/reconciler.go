package services

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
)

// Writer applies the ops of one entity type in a single transaction. One
// Writer shares its rate limit across every pass of a run.
type Writer struct {
	store   Store
	inTx    TxRunner
	limiter *rate.Limiter
	dryRun  bool
}

// NewWriter limits writes to writeRPS per second; 0 means unlimited. A
// dry-run Writer never touches the store.
func NewWriter(store Store, inTx TxRunner, writeRPS int, dryRun bool) *Writer {
	if inTx == nil {
		inTx = composables.InTenantTx
	}
	w := &Writer{store: store, inTx: inTx, dryRun: dryRun}
	if writeRPS > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(writeRPS), writeRPS)
	}
	return w
}

func (w *Writer) apply(ctx context.Context, schema entity.Schema, ops []Op) error {
	if w.dryRun || len(ops) == 0 {
		return nil
	}
	err := w.inTx(ctx, func(txCtx context.Context) error {
		for _, op := range ops {
			if w.limiter != nil {
				if err := w.limiter.Wait(txCtx); err != nil {
					return err
				}
			}
			var err error
			switch op.Kind {
			case OpInsert:
				err = w.store.Insert(txCtx, schema, *op.Record)
			case OpUpdate:
				err = w.store.Update(txCtx, schema, op.Key, op.Changed)
			case OpDelete:
				err = w.store.Delete(txCtx, schema, op.Key)
			default:
				err = fmt.Errorf("unknown op %q", op.Kind)
			}
			if err != nil {
				return fmt.Errorf("%s %s: %w", op.Kind, op.Key, err)
			}
		}
		return nil
	})
	recordWrites(schema.Type, ops, err)
	if err != nil {
		return writeError(schema.Type, err)
	}
	return nil
}

type ReconcileResult struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// Reconciler inserts snapshot-only records and updates changed ones. It
// never deletes.
type Reconciler struct {
	w    *Writer
	plan *Plan
}

func NewReconciler(w *Writer, plan *Plan) *Reconciler {
	if plan == nil {
		plan = &Plan{}
	}
	return &Reconciler{w: w, plan: plan}
}

// Reconcile converges the persisted records of schema.Type towards desired.
// On a write error nothing of this type is committed.
func (r *Reconciler) Reconcile(ctx context.Context, schema entity.Schema, desired []entity.Record, persisted *PersistedSet) (ReconcileResult, error) {
	ops, unchanged, err := planReconcile(schema, desired, persisted, r.w.dryRun)
	if err != nil {
		return ReconcileResult{}, writeError(schema.Type, err)
	}
	res := ReconcileResult{Unchanged: unchanged}
	r.plan.add(ops...)
	if err := r.w.apply(ctx, schema, ops); err != nil {
		return res, err
	}
	for _, op := range ops {
		if op.Kind == OpInsert {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	return res, nil
}
