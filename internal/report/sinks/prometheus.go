package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/leasecar-etl/internal/report"
)

// PrometheusSink counts failures by stage and kind.
type PrometheusSink struct {
	failures *prometheus.CounterVec
}

// NewPrometheusSink registers the collector against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leasecar_stage_failures_total",
			Help: "Failures reported by the pipeline stages, partitioned by stage and kind.",
		}, []string{"stage", "kind"}),
	}
	if err := reg.Register(s.failures); err != nil {
		return nil, fmt.Errorf("register failure collector: %w", err)
	}
	return s, nil
}

// Report increments the counter for the event's stage and kind.
func (s *PrometheusSink) Report(_ context.Context, evt report.Event) {
	if err := evt.Validate(); err != nil {
		return
	}
	s.failures.WithLabelValues(string(evt.Stage), string(evt.Kind)).Inc()
}
