package services

import (
	"sync"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

// ModelCache is the desired state of a run: per type, the latest canonical
// record for each key. Later writes for a key replace earlier ones.
type ModelCache struct {
	mu     sync.RWMutex
	byType map[entity.Type]map[entity.Key]entity.Record
	order  map[entity.Type][]entity.Key
}

func NewModelCache() *ModelCache {
	return &ModelCache{
		byType: make(map[entity.Type]map[entity.Key]entity.Record),
		order:  make(map[entity.Type][]entity.Key),
	}
}

// Put stores rec and reports whether it replaced an existing record.
func (m *ModelCache) Put(rec entity.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	records, ok := m.byType[rec.Type]
	if !ok {
		records = make(map[entity.Key]entity.Record)
		m.byType[rec.Type] = records
	}
	_, replaced := records[rec.Key]
	records[rec.Key] = rec
	if !replaced {
		m.order[rec.Type] = append(m.order[rec.Type], rec.Key)
	}
	return replaced
}

func (m *ModelCache) Get(t entity.Type, key entity.Key) (entity.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byType[t][key]
	return rec, ok
}

func (m *ModelCache) Has(t entity.Type, key entity.Key) bool {
	_, ok := m.Get(t, key)
	return ok
}

// Records lists the records of t ordered by the first time each key was put.
func (m *ModelCache) Records(t entity.Type) []entity.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := m.order[t]
	out := make([]entity.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.byType[t][k])
	}
	return out
}

func (m *ModelCache) Len(t entity.Type) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byType[t])
}
