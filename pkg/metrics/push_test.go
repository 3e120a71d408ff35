package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewPusher_EmptyURLIsNop(t *testing.T) {
	t.Parallel()

	p := NewPusher("", "job", nil)
	require.Nil(t, p)
	require.NoError(t, p.Grouping("tenant_id", "t1").Push(context.Background()))
}

func TestPusher_PushesGroupedMetrics(t *testing.T) {
	t.Parallel()

	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "directory_sync_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	err := NewPusher(srv.URL, "directory_sync", reg).Grouping("tenant_id", "t1").Push(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/metrics/job/directory_sync/tenant_id/t1", gotPath)
	require.NotEmpty(t, gotBody)
}
