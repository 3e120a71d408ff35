package services

import (
	"sync"

	"github.com/wI2L/jsondiff"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is one planned write against the target store.
type Op struct {
	Kind       OpKind                  `json:"op"`
	Type       entity.Type             `json:"entity_type"`
	NaturalKey string                  `json:"natural_key"`
	Locale     string                  `json:"locale,omitempty"`
	Changed    map[string]entity.Value `json:"changed,omitempty"`
	// Patch turns the persisted document into the canonical one. Only
	// computed for updates in dry-run mode.
	Patch jsondiff.Patch `json:"patch,omitempty"`

	// Key addresses the write: the stored key for updates and deletes.
	Key    entity.Key     `json:"-"`
	Record *entity.Record `json:"-"`
}

// Plan collects the ops of a run in execution order.
type Plan struct {
	mu  sync.Mutex
	ops []Op
}

func (p *Plan) add(ops ...Op) {
	p.mu.Lock()
	p.ops = append(p.ops, ops...)
	p.mu.Unlock()
}

func (p *Plan) Ops() []Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Op, len(p.ops))
	copy(out, p.ops)
	return out
}

// Count returns the number of ops of the given kind, all types included.
func (p *Plan) Count(kind OpKind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, op := range p.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// PersistedSet is the current content of the target store for one type,
// in the order it was read.
type PersistedSet struct {
	records map[entity.Key]PersistedRecord
	order   []entity.Key
}

func NewPersistedSet(records ...PersistedRecord) *PersistedSet {
	s := &PersistedSet{records: make(map[entity.Key]PersistedRecord, len(records))}
	for _, rec := range records {
		s.Put(rec)
	}
	return s
}

// Put adds rec. A record without a StoredKey is addressed by its Key.
func (s *PersistedSet) Put(rec PersistedRecord) {
	if rec.StoredKey == (entity.Key{}) {
		rec.StoredKey = rec.Key
	}
	if _, ok := s.records[rec.Key]; !ok {
		s.order = append(s.order, rec.Key)
	}
	s.records[rec.Key] = rec
}

func (s *PersistedSet) Get(key entity.Key) (PersistedRecord, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

func (s *PersistedSet) Len() int {
	return len(s.order)
}

// planReconcile joins desired and persisted on the record key. Keys only
// present in the store are left for the pruner.
func planReconcile(schema entity.Schema, desired []entity.Record, persisted *PersistedSet, withPatch bool) (ops []Op, unchanged int, err error) {
	for i := range desired {
		rec := desired[i]
		current, ok := persisted.records[rec.Key]
		if !ok {
			ops = append(ops, Op{
				Kind:       OpInsert,
				Type:       schema.Type,
				NaturalKey: rec.Key.ID,
				Locale:     rec.Key.Locale,
				Key:        rec.Key,
				Record:     &rec,
			})
			continue
		}
		changed := rec.Diff(schema, current.Record)
		if len(changed) == 0 {
			unchanged++
			continue
		}
		op := Op{
			Kind:       OpUpdate,
			Type:       schema.Type,
			NaturalKey: rec.Key.ID,
			Locale:     rec.Key.Locale,
			Changed:    changed,
			Key:        current.StoredKey,
			Record:     &rec,
		}
		if withPatch {
			patch, err := jsondiff.Compare(current.Record.Document(schema), rec.Document(schema))
			if err != nil {
				return nil, 0, err
			}
			op.Patch = patch
		}
		ops = append(ops, op)
	}
	return ops, unchanged, nil
}

// planPrune lists persisted keys absent from the model cache, in the order
// they were read from the store.
func planPrune(schema entity.Schema, models *ModelCache, persisted *PersistedSet) []Op {
	var ops []Op
	for _, key := range persisted.order {
		if models.Has(schema.Type, key) {
			continue
		}
		ops = append(ops, Op{
			Kind:       OpDelete,
			Type:       schema.Type,
			NaturalKey: key.ID,
			Locale:     key.Locale,
			Key:        persisted.records[key].StoredKey,
		})
	}
	return ops
}
