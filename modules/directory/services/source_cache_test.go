package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/211-Connect/silobuster-resources/modules/directory/domain/entity"
	"github.com/211-Connect/silobuster-resources/pkg/retry"
)

func orgSchema(t *testing.T) entity.Schema {
	t.Helper()
	s, ok := entity.Default().Lookup(entity.Organization)
	require.True(t, ok)
	return s
}

func TestSourceCache_FetchesOncePerType(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set(entity.Organization, org("o1", "A"), org("o2", "B"))
	cache := NewSourceCache(entity.Warehouse, src, nil, time.Second)

	schema := orgSchema(t)
	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = cache.FetchAndCache(context.Background(), schema)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, 1, src.callCount(entity.Organization))
	require.True(t, cache.Fetched(entity.Organization))
	rows := cache.ToArray(entity.Organization)
	require.Len(t, rows, 2)
	require.Equal(t, "o1", rows[0]["id"])

	rows[0] = nil
	require.NotNil(t, cache.ToArray(entity.Organization)[0], "snapshot is stable")
}

func TestSourceCache_EmptyWhenNeverFetched(t *testing.T) {
	t.Parallel()

	cache := NewSourceCache(entity.Warehouse, newFakeSource(), nil, 0)
	require.Empty(t, cache.ToArray(entity.Location))
	require.NotNil(t, cache.ToArray(entity.Location))
	require.False(t, cache.Fetched(entity.Location))
}

func TestSourceCache_FailureLeavesCacheEmpty(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set(entity.Organization, org("o1", "A"))
	src.failures[entity.Organization] = -1
	cache := NewSourceCache(entity.Warehouse, src, &retry.Policy{Attempts: 2, Base: time.Millisecond}, 0)

	err := cache.FetchAndCache(context.Background(), orgSchema(t))
	require.ErrorIs(t, err, ErrFetch)
	require.Equal(t, 2, src.callCount(entity.Organization))
	require.False(t, cache.Fetched(entity.Organization))
	require.Empty(t, cache.ToArray(entity.Organization))

	require.ErrorIs(t, cache.FetchAndCache(context.Background(), orgSchema(t)), ErrFetch)
	require.Equal(t, 2, src.callCount(entity.Organization), "failed fetch is not repeated within a run")
}

func TestSourceCache_ZeroRowsIsASuccessfulFetch(t *testing.T) {
	t.Parallel()

	cache := NewSourceCache(entity.Warehouse, newFakeSource(), nil, 0)
	require.NoError(t, cache.FetchAndCache(context.Background(), orgSchema(t)))
	require.True(t, cache.Fetched(entity.Organization))
	require.Empty(t, cache.ToArray(entity.Organization))
}

func TestInvalidRecordSink_ExportKeepsEntriesOnFailure(t *testing.T) {
	t.Parallel()

	sink := NewInvalidRecordSink(nil)
	sink.Record(entity.Organization, entity.RawRow{"name": "x"}, ReasonMissingNaturalKey)
	sink.Record(entity.Organization, entity.RawRow{"name": "x"}, ReasonMissingNaturalKey)

	q := &recordingQuarantine{err: context.DeadlineExceeded}
	err := sink.Export(context.Background(), q)
	require.ErrorIs(t, err, ErrExport)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 2, sink.Len(), "entries are never deduplicated")
}
