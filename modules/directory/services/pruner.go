package services

import (
	"context"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

// Pruner deletes persisted records whose key is absent from the model cache.
type Pruner struct {
	w    *Writer
	plan *Plan
}

func NewPruner(w *Writer, plan *Plan) *Pruner {
	if plan == nil {
		plan = &Plan{}
	}
	return &Pruner{w: w, plan: plan}
}

func (p *Pruner) Prune(ctx context.Context, schema entity.Schema, models *ModelCache, persisted *PersistedSet) (int, error) {
	ops := planPrune(schema, models, persisted)
	p.plan.add(ops...)
	if err := p.w.apply(ctx, schema, ops); err != nil {
		return 0, err
	}
	return len(ops), nil
}
