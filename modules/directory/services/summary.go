package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
)

// TypeSummary counts what a run did to one entity type.
type TypeSummary struct {
	Fetched   map[entity.Source]int `json:"fetched,omitempty"`
	Canonical int                   `json:"canonical"`
	Invalid   int                   `json:"invalid"`
	Inserted  int                   `json:"inserted"`
	Updated   int                   `json:"updated"`
	Unchanged int                   `json:"unchanged"`
	Deleted   int                   `json:"deleted"`
	Errors    map[ErrorKind]int     `json:"errors,omitempty"`
	Skipped   []string              `json:"skipped,omitempty"`
}

type Summary struct {
	RunID      uuid.UUID                    `json:"run_id"`
	TenantID   uuid.UUID                    `json:"tenant_id"`
	DryRun     bool                         `json:"dry_run"`
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Types      map[entity.Type]*TypeSummary `json:"types"`
	Errors     map[ErrorKind]int            `json:"errors"`
	Failures   []string                     `json:"failures,omitempty"`
}

func newSummary(runID, tenantID uuid.UUID, dryRun bool, started time.Time) *Summary {
	return &Summary{
		RunID:     runID,
		TenantID:  tenantID,
		DryRun:    dryRun,
		StartedAt: started,
		Types:     map[entity.Type]*TypeSummary{},
		Errors:    map[ErrorKind]int{},
	}
}

func (s *Summary) typ(t entity.Type) *TypeSummary {
	ts, ok := s.Types[t]
	if !ok {
		ts = &TypeSummary{Fetched: map[entity.Source]int{}, Errors: map[ErrorKind]int{}}
		s.Types[t] = ts
	}
	return ts
}

// fail counts err under its kind. Validation errors are counted per row and
// are not listed in Failures.
func (s *Summary) fail(t entity.Type, kind ErrorKind, err error) {
	s.Errors[kind]++
	if t != "" {
		s.typ(t).Errors[kind]++
	}
	if kind != KindValidation && err != nil {
		s.Failures = append(s.Failures, err.Error())
	}
}

func (s *Summary) skip(t entity.Type, pass, reason string) {
	ts := s.typ(t)
	ts.Skipped = append(ts.Skipped, pass+": "+reason)
}

// HasErrors reports whether any error of any kind was counted.
func (s *Summary) HasErrors() bool {
	for _, n := range s.Errors {
		if n > 0 {
			return true
		}
	}
	return false
}

// Totals sums the per-type write counters.
func (s *Summary) Totals() (inserted, updated, deleted int) {
	for _, ts := range s.Types {
		inserted += ts.Inserted
		updated += ts.Updated
		deleted += ts.Deleted
	}
	return inserted, updated, deleted
}
