package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/modules/directory/domain/mapping"
	"github.com/211-Connect/silobuster-resources/pkg/composables"
	"github.com/211-Connect/silobuster-resources/pkg/retry"
)

var testTenant = uuid.MustParse("6f1d3c9a-1b7e-4f51-9f4e-2ad4a1c3b001")

// fakeSource serves rows per entity type. failures[t] makes the first n
// calls for t fail; a negative count fails forever.
type fakeSource struct {
	mu       sync.Mutex
	rows     map[entity.Type][]entity.RawRow
	failures map[entity.Type]int
	calls    map[entity.Type]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rows:     map[entity.Type][]entity.RawRow{},
		failures: map[entity.Type]int{},
		calls:    map[entity.Type]int{},
	}
}

func (s *fakeSource) set(t entity.Type, rows ...entity.RawRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[t] = rows
}

func (s *fakeSource) FetchRows(_ context.Context, schema entity.Schema) ([]entity.RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[schema.Type]++
	if n := s.failures[schema.Type]; n != 0 {
		if n > 0 {
			s.failures[schema.Type] = n - 1
		}
		return nil, fmt.Errorf("%s unavailable", schema.Type)
	}
	out := make([]entity.RawRow, 0, len(s.rows[schema.Type]))
	for _, r := range s.rows[schema.Type] {
		out = append(out, maps.Clone(r))
	}
	return out, nil
}

func (s *fakeSource) callCount(t entity.Type) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[t]
}

type storeCall struct {
	Op   OpKind
	Type entity.Type
	Key  entity.Key
	// Changed lists the updated field names.
	Changed map[string]entity.Value
}

// memStore is the target store. listFn, when set, can fail ListByTenant
// for a type.
type memStore struct {
	mu      sync.Mutex
	catalog *entity.Catalog
	rows    map[entity.Type][]entity.RawRow
	calls   []storeCall
	failOn  map[entity.Type]error
	listFn  func(entity.Type) error
	tenants []uuid.UUID
}

func newMemStore(catalog *entity.Catalog) *memStore {
	return &memStore{
		catalog: catalog,
		rows:    map[entity.Type][]entity.RawRow{},
		failOn:  map[entity.Type]error{},
	}
}

func (m *memStore) seed(t entity.Type, rows ...entity.RawRow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t] = append(m.rows[t], rows...)
}

func (m *memStore) ListByTenant(ctx context.Context, schema entity.Schema) ([]entity.RawRow, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants = append(m.tenants, tenantID)
	if m.listFn != nil {
		if err := m.listFn(schema.Type); err != nil {
			return nil, err
		}
	}
	out := make([]entity.RawRow, 0, len(m.rows[schema.Type]))
	for _, r := range m.rows[schema.Type] {
		out = append(out, maps.Clone(r))
	}
	return out, nil
}

func (m *memStore) find(schema entity.Schema, key entity.Key) int {
	for i, r := range m.rows[schema.Type] {
		if r[schema.KeyField] != key.ID {
			continue
		}
		if schema.Localized && r[entity.LocaleField] != key.Locale {
			continue
		}
		return i
	}
	return -1
}

func (m *memStore) Insert(_ context.Context, schema entity.Schema, rec entity.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, storeCall{Op: OpInsert, Type: schema.Type, Key: rec.Key})
	if err := m.failOn[schema.Type]; err != nil {
		return err
	}
	if m.find(schema, rec.Key) >= 0 {
		return errors.New("duplicate key")
	}
	row := entity.RawRow{schema.KeyField: rec.Key.ID, entity.TenantIDField: rec.TenantID.String()}
	if schema.Localized {
		row[entity.LocaleField] = rec.Key.Locale
	}
	if schema.Canonical {
		row[entity.IsCanonicalField] = rec.IsCanonical
	}
	for _, f := range schema.Fields {
		row[f.Name] = columnValue(rec.Get(f.Name))
	}
	m.rows[schema.Type] = append(m.rows[schema.Type], row)
	return nil
}

func (m *memStore) Update(_ context.Context, schema entity.Schema, key entity.Key, changed map[string]entity.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, storeCall{Op: OpUpdate, Type: schema.Type, Key: key, Changed: changed})
	if err := m.failOn[schema.Type]; err != nil {
		return err
	}
	i := m.find(schema, key)
	if i < 0 {
		return errors.New("not found")
	}
	for name, v := range changed {
		if name == entity.IsCanonicalField {
			m.rows[schema.Type][i][name] = v.String() == "true"
			continue
		}
		m.rows[schema.Type][i][name] = columnValue(v)
	}
	return nil
}

func (m *memStore) Delete(_ context.Context, schema entity.Schema, key entity.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, storeCall{Op: OpDelete, Type: schema.Type, Key: key})
	if err := m.failOn[schema.Type]; err != nil {
		return err
	}
	i := m.find(schema, key)
	if i < 0 {
		return errors.New("not found")
	}
	m.rows[schema.Type] = append(m.rows[schema.Type][:i], m.rows[schema.Type][i+1:]...)
	return nil
}

func (m *memStore) takeCalls() []storeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.calls
	m.calls = nil
	return out
}

func (m *memStore) content(t entity.Type) []entity.RawRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.RawRow(nil), m.rows[t]...)
}

func columnValue(v entity.Value) any {
	if !v.IsSet() {
		return nil
	}
	return v.String()
}

func passthroughTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type recordingQuarantine struct {
	mu      sync.Mutex
	batches [][]InvalidRecord
	err     error
}

func (q *recordingQuarantine) WriteRecords(_ context.Context, records []InvalidRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.batches = append(q.batches, records)
	return q.err
}

type harness struct {
	relational *fakeSource
	warehouse  *fakeSource
	store      *memStore
	quarantine *recordingQuarantine
	opts       Options
}

func newHarness() *harness {
	return &harness{
		relational: newFakeSource(),
		warehouse:  newFakeSource(),
		store:      newMemStore(entity.Default()),
		quarantine: &recordingQuarantine{},
		opts: Options{
			TenantID:         testTenant,
			FetchConcurrency: 4,
			FetchTimeout:     time.Second,
			Retry:            &retry.Policy{Attempts: 3, Base: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
			TxRunner:         passthroughTx,
		},
	}
}

func (h *harness) run(t *testing.T) *Result {
	t.Helper()
	e, err := NewEngine(mapping.Default(entity.Default()), h.relational, h.warehouse, h.store, h.quarantine, h.opts)
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	return res
}

func org(id, name string) entity.RawRow {
	return entity.RawRow{"id": id, "locale": "en", "name": name}
}

func location(id, orgID string) entity.RawRow {
	return entity.RawRow{"id": id, "locale": "en", "organization_id": orgID, "name": "Loc " + id, "latitude": 30.26, "longitude": -97.74}
}

func persistedOrg(id, name string) entity.RawRow {
	return entity.RawRow{
		"organization_id": id,
		"locale":          "en",
		"tenant_id":       testTenant.String(),
		"is_canonical":    true,
		"name":            name,
	}
}
