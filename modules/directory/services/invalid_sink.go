package services

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

// Quarantine reasons.
const (
	ReasonMissingNaturalKey = "missing natural key"
	ReasonMissingLocale     = "missing locale"
	ReasonInvalidLocale     = "invalid locale"
)

func reasonMissingRequired(field string) string { return "missing required field " + field }

func reasonInvalidField(field string) string { return "invalid field " + field }

// InvalidRecord is a raw row that could not be canonicalized. NaturalKey and
// Locale hold whatever identity could be read from the row.
type InvalidRecord struct {
	Type       entity.Type
	NaturalKey string
	Locale     string
	Reason     string
	Row        entity.RawRow
}

// Identifier extracts the identifying fields of a raw row.
type Identifier func(t entity.Type, row entity.RawRow) (naturalKey, locale string)

// InvalidRecordSink accumulates quarantined rows in arrival order.
type InvalidRecordSink struct {
	identify Identifier

	mu      sync.Mutex
	entries []InvalidRecord
}

func NewInvalidRecordSink(identify Identifier) *InvalidRecordSink {
	return &InvalidRecordSink{identify: identify}
}

// Record appends one entry. It never fails and never deduplicates.
func (s *InvalidRecordSink) Record(t entity.Type, row entity.RawRow, reason string) {
	rec := InvalidRecord{Type: t, Reason: reason, Row: maps.Clone(row)}
	if s.identify != nil {
		rec.NaturalKey, rec.Locale = s.identify(t, row)
	}
	s.mu.Lock()
	s.entries = append(s.entries, rec)
	s.mu.Unlock()
}

func (s *InvalidRecordSink) Entries() []InvalidRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

func (s *InvalidRecordSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Export hands every entry to w. The entries are kept on failure.
func (s *InvalidRecordSink) Export(ctx context.Context, w QuarantineWriter) error {
	if w == nil {
		return nil
	}
	if err := w.WriteRecords(ctx, s.Entries()); err != nil {
		return exportError(err)
	}
	return nil
}
