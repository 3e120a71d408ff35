package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/modules/directory/domain/mapping"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
	"github.com/211-Connect/silobuster-resources/pkg/retry"
	"github.com/211-Connect/silobuster-resources/pkg/tracing"
)

var ErrTenantRequired = errors.New("directory: tenant id is required")

// Skip reasons.
const (
	SkipNoWarehouseFeed = "no warehouse feed"
	SkipPersistedFailed = "persisted load failed"
	SkipWarehouseFailed = "warehouse fetch failed"
	SkipNoValidRows     = "every snapshot row invalid"
)

type Options struct {
	TenantID         uuid.UUID
	DryRun           bool
	FetchConcurrency int
	FetchTimeout     time.Duration
	Retry            *retry.Policy
	WriteRPS         int
	// TxRunner defaults to composables.InTenantTx.
	TxRunner TxRunner
	Logger   *logrus.Entry
	Tracer   trace.Tracer
	Now      func() time.Time
}

type Engine struct {
	mapper     *mapping.Mapper
	relational Source
	warehouse  Source
	store      Store
	quarantine QuarantineWriter
	opts       Options
}

func NewEngine(mapper *mapping.Mapper, relational, warehouse Source, store Store, quarantine QuarantineWriter, opts Options) (*Engine, error) {
	if opts.TenantID == uuid.Nil {
		return nil, ErrTenantRequired
	}
	if mapper == nil || relational == nil || warehouse == nil || store == nil {
		return nil, errors.New("directory: mapper, sources and store are required")
	}
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 8
	}
	if opts.Logger == nil {
		opts.Logger = composables.UseLogger(context.Background())
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Tracer()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TxRunner == nil {
		opts.TxRunner = composables.InTenantTx
	}
	return &Engine{
		mapper:     mapper,
		relational: relational,
		warehouse:  warehouse,
		store:      store,
		quarantine: quarantine,
		opts:       opts,
	}, nil
}

// Run holds everything scoped to one synchronization run.
type Run struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Relational *SourceCache
	Warehouse  *SourceCache
	// Persisted holds the target store rows each type is diffed against.
	Persisted *SourceCache
	Models     *ModelCache
	Invalid    *InvalidRecordSink
	Plan       *Plan
	Summary    *Summary

	persisted map[entity.Type]*PersistedSet
}

// Result is what a finished run hands back to its caller.
type Result struct {
	Summary *Summary
	Plan    *Plan
	Invalid []InvalidRecord
}

// Run executes one full snapshot reconciliation. Per-type and per-row
// failures are counted in the summary; the returned error is reserved for
// cancellation.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	catalog := e.mapper.Catalog()
	canon := NewCanonicalizer(e.mapper, e.opts.TenantID)
	run := &Run{
		ID:         uuid.New(),
		TenantID:   e.opts.TenantID,
		Relational: NewSourceCache(entity.Relational, e.relational, e.opts.Retry, e.opts.FetchTimeout),
		Warehouse:  NewSourceCache(entity.Warehouse, e.warehouse, e.opts.Retry, e.opts.FetchTimeout),
		Persisted:  NewSourceCache(entity.Target, storeSource{store: e.store, inTx: e.opts.TxRunner}, e.opts.Retry, e.opts.FetchTimeout),
		Models:     NewModelCache(),
		Invalid:    NewInvalidRecordSink(canon.Identify),
		Plan:       &Plan{},
		persisted:  map[entity.Type]*PersistedSet{},
	}
	run.Summary = newSummary(run.ID, run.TenantID, e.opts.DryRun, e.opts.Now().UTC())

	log := e.opts.Logger.WithFields(logrus.Fields{
		"run_id":    run.ID.String(),
		"tenant_id": run.TenantID.String(),
		"dry_run":   e.opts.DryRun,
	})
	ctx = composables.WithTenantID(ctx, run.TenantID)
	ctx = composables.WithLogger(ctx, log)

	ctx, span := e.opts.Tracer.Start(ctx, "directory_sync.run", trace.WithAttributes(
		attribute.String("run_id", run.ID.String()),
		attribute.String("tenant_id", run.TenantID.String()),
		attribute.Bool("dry_run", e.opts.DryRun),
	))
	defer span.End()

	log.Info("directory: run started")

	var relTypes, whTypes []entity.Schema
	for _, t := range catalog.Types() {
		schema, _ := catalog.Lookup(t)
		relTypes = append(relTypes, schema)
		if schema.HasWarehouseFeed() {
			whTypes = append(whTypes, schema)
		}
	}

	e.fetchPhase(ctx, "fetch_relational", run.Relational, relTypes, run.Summary)
	if err := ctx.Err(); err != nil {
		return e.finish(run, log, err)
	}
	e.fetchPhase(ctx, "fetch_warehouse", run.Warehouse, whTypes, run.Summary)
	if err := ctx.Err(); err != nil {
		return e.finish(run, log, err)
	}
	e.fetchPhase(ctx, "load_persisted", run.Persisted, whTypes, run.Summary)
	if err := ctx.Err(); err != nil {
		return e.finish(run, log, err)
	}

	e.canonicalizePhase(ctx, canon, run)
	e.exportPhase(ctx, run)
	if err := ctx.Err(); err != nil {
		return e.finish(run, log, err)
	}

	writer := NewWriter(e.store, e.opts.TxRunner, e.opts.WriteRPS, e.opts.DryRun)
	e.reconcilePhase(ctx, NewReconciler(writer, run.Plan), run)
	if err := ctx.Err(); err != nil {
		return e.finish(run, log, err)
	}
	e.prunePhase(ctx, NewPruner(writer, run.Plan), run)

	return e.finish(run, log, ctx.Err())
}

func (e *Engine) finish(run *Run, log *logrus.Entry, err error) (*Result, error) {
	run.Summary.FinishedAt = e.opts.Now().UTC()
	inserted, updated, deleted := run.Summary.Totals()
	entry := log.WithFields(logrus.Fields{
		"inserted": inserted,
		"updated":  updated,
		"deleted":  deleted,
		"invalid":  run.Invalid.Len(),
		"errors":   run.Summary.Errors,
	})
	if err != nil {
		entry.WithError(err).Warn("directory: run aborted")
	} else {
		entry.Info("directory: run finished")
	}
	return &Result{Summary: run.Summary, Plan: run.Plan, Invalid: run.Invalid.Entries()}, err
}

type fetchResult struct {
	rows int
	err  error
}

// fetchPhase fetches every schema concurrently. Each task records its own
// outcome; a failing task never cancels its siblings.
func (e *Engine) fetchPhase(ctx context.Context, phase string, cache *SourceCache, schemas []entity.Schema, summary *Summary) {
	ctx, span := e.opts.Tracer.Start(ctx, "directory_sync."+phase)
	defer span.End()

	results := make([]fetchResult, len(schemas))
	var g errgroup.Group
	g.SetLimit(e.opts.FetchConcurrency)
	for i, schema := range schemas {
		g.Go(func() error {
			err := cache.FetchAndCache(ctx, schema)
			results[i] = fetchResult{rows: len(cache.ToArray(schema.Type)), err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, schema := range schemas {
		if err := results[i].err; err != nil {
			failed++
			summary.fail(schema.Type, KindFetch, err)
			continue
		}
		summary.typ(schema.Type).Fetched[cache.Source()] = results[i].rows
	}
	if failed > 0 {
		span.SetStatus(codes.Error, "fetch failures")
	}
	span.SetAttributes(attribute.Int("fetched", len(schemas)-failed), attribute.Int("failed", failed))
}

// canonicalizePhase builds the model cache from warehouse rows and the
// persisted sets from target store rows.
func (e *Engine) canonicalizePhase(ctx context.Context, canon *Canonicalizer, run *Run) {
	_, span := e.opts.Tracer.Start(ctx, "directory_sync.canonicalize")
	defer span.End()
	log := composables.UseLogger(ctx).WithField("phase", "canonicalize")
	catalog := e.mapper.Catalog()

	for _, t := range catalog.Types() {
		if run.Persisted.Fetched(t) {
			set := NewPersistedSet()
			for _, row := range run.Persisted.ToArray(t) {
				rec, err := canon.Persisted(t, row)
				if err != nil {
					log.WithError(err).WithField("entity_type", t).Warn("directory: unreadable persisted row ignored")
					continue
				}
				set.Put(rec)
			}
			run.persisted[t] = set
		}

		if !run.Warehouse.Fetched(t) {
			continue
		}
		valid, invalid := canon.CanonicalizeInto(t, run.Warehouse.ToArray(t), run.Models, run.Invalid)
		ts := run.Summary.typ(t)
		ts.Canonical = run.Models.Len(t)
		ts.Invalid = invalid
		for i := 0; i < invalid; i++ {
			run.Summary.fail(t, KindValidation, nil)
		}
		if invalid > 0 {
			log.WithFields(logrus.Fields{"entity_type": t, "valid": valid, "invalid": invalid}).Warn("directory: rows quarantined")
		}
	}
	span.SetAttributes(attribute.Int("invalid", run.Invalid.Len()))
}

func (e *Engine) exportPhase(ctx context.Context, run *Run) {
	if e.quarantine == nil {
		return
	}
	ctx, span := e.opts.Tracer.Start(ctx, "directory_sync.export_quarantine")
	defer span.End()

	err := run.Invalid.Export(ctx, e.quarantine)
	recordExport(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		composables.UseLogger(ctx).WithError(err).Error("directory: quarantine export failed")
		run.Summary.fail("", KindExport, err)
	}
}

// guard returns the reason a reconcile or prune pass must not run.
func guard(schema entity.Schema, run *Run) string {
	switch {
	case !schema.HasWarehouseFeed():
		return SkipNoWarehouseFeed
	case !run.Warehouse.Fetched(schema.Type):
		return SkipWarehouseFailed
	case !run.Persisted.Fetched(schema.Type):
		return SkipPersistedFailed
	}
	return ""
}

// pruneGuard also refuses to prune a type whose every snapshot row was
// quarantined: an all-invalid feed is not an empty one.
func pruneGuard(schema entity.Schema, run *Run) string {
	if reason := guard(schema, run); reason != "" {
		return reason
	}
	if run.Models.Len(schema.Type) == 0 && run.Summary.typ(schema.Type).Invalid > 0 {
		return SkipNoValidRows
	}
	return ""
}

func (e *Engine) reconcilePhase(ctx context.Context, r *Reconciler, run *Run) {
	catalog := e.mapper.Catalog()
	for _, t := range catalog.InsertionOrder() {
		if ctx.Err() != nil {
			return
		}
		schema, _ := catalog.Lookup(t)
		log := composables.UseLogger(ctx).WithFields(logrus.Fields{"phase": "reconcile", "entity_type": t})
		if reason := guard(schema, run); reason != "" {
			run.Summary.skip(t, "reconcile", reason)
			recordSkip(t, "reconcile", reason)
			log.WithField("reason", reason).Info("directory: reconcile skipped")
			continue
		}

		typeCtx, span := e.opts.Tracer.Start(ctx, "directory_sync.reconcile", trace.WithAttributes(attribute.String("entity_type", string(t))))
		res, err := r.Reconcile(typeCtx, schema, run.Models.Records(t), run.persisted[t])
		ts := run.Summary.typ(t)
		ts.Unchanged = res.Unchanged
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reconcile failed")
			log.WithError(err).Error("directory: reconcile failed")
			run.Summary.fail(t, KindWrite, err)
		} else {
			ts.Inserted, ts.Updated = res.Inserted, res.Updated
			log.WithFields(logrus.Fields{"inserted": res.Inserted, "updated": res.Updated, "unchanged": res.Unchanged}).Debug("directory: reconciled")
		}
		span.End()
	}
}

func (e *Engine) prunePhase(ctx context.Context, p *Pruner, run *Run) {
	catalog := e.mapper.Catalog()
	for _, t := range catalog.DeletionOrder() {
		if ctx.Err() != nil {
			return
		}
		schema, _ := catalog.Lookup(t)
		log := composables.UseLogger(ctx).WithFields(logrus.Fields{"phase": "prune", "entity_type": t})
		if reason := pruneGuard(schema, run); reason != "" {
			run.Summary.skip(t, "prune", reason)
			recordSkip(t, "prune", reason)
			log.WithField("reason", reason).Info("directory: prune skipped")
			continue
		}

		typeCtx, span := e.opts.Tracer.Start(ctx, "directory_sync.prune", trace.WithAttributes(attribute.String("entity_type", string(t))))
		deleted, err := p.Prune(typeCtx, schema, run.Models, run.persisted[t])
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "prune failed")
			log.WithError(err).Error("directory: prune failed")
			run.Summary.fail(t, KindWrite, err)
		} else {
			run.Summary.typ(t).Deleted = deleted
			if deleted > 0 {
				log.WithField("deleted", deleted).Info("directory: pruned")
			}
		}
		span.End()
	}
}
