// Package metrics ships process collectors to a Prometheus Pushgateway, for
// batch jobs that exit before a scrape.
package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

type Pusher struct {
	url      string
	job      string
	gatherer prometheus.Gatherer
	grouping map[string]string
}

// NewPusher returns nil when url is empty; a nil Pusher is a no-op.
func NewPusher(url, job string, gatherer prometheus.Gatherer) *Pusher {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Pusher{url: url, job: job, gatherer: gatherer, grouping: map[string]string{}}
}

// Grouping adds a grouping label, e.g. the tenant.
func (p *Pusher) Grouping(name, value string) *Pusher {
	if p != nil {
		p.grouping[name] = value
	}
	return p
}

// Push replaces the metrics of this job and grouping on the gateway.
func (p *Pusher) Push(ctx context.Context) error {
	if p == nil {
		return nil
	}
	pusher := push.New(p.url, p.job).Gatherer(p.gatherer)
	for name, value := range p.grouping {
		pusher = pusher.Grouping(name, value)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", p.url, err)
	}
	return nil
}
