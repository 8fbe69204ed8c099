package kobj

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/provider"
)

// Metric names, as registered with a provider.
const (
	CreatedCounter   = "sm_created_total"
	DestroyedCounter = "sm_destroyed_total"
	LiveGauge        = "sm_live"
	UpCounter        = "sm_up_total"
	DownCounter      = "sm_down_total"
	OverflowCounter  = "sm_overflow_total"
	TimeoutCounter   = "sm_timeout_total"
)

// Metrics is the set of instruments a Kernel reports to.
// Any nil field is replaced by a discarding instrument.
type Metrics struct {
	Created   metrics.Counter
	Destroyed metrics.Counter
	Live      metrics.Gauge
	Ups       metrics.Counter
	Downs     metrics.Counter
	Overflows metrics.Counter
	Timeouts  metrics.Counter
}

// NewMetrics builds every instrument from p.
func NewMetrics(p provider.Provider) *Metrics {
	return &Metrics{
		Created:   p.NewCounter(CreatedCounter),
		Destroyed: p.NewCounter(DestroyedCounter),
		Live:      p.NewGauge(LiveGauge),
		Ups:       p.NewCounter(UpCounter),
		Downs:     p.NewCounter(DownCounter),
		Overflows: p.NewCounter(OverflowCounter),
		Timeouts:  p.NewCounter(TimeoutCounter),
	}
}

func (m *Metrics) fill() *Metrics {
	out := Metrics{}
	if m != nil {
		out = *m
	}
	for _, c := range []*metrics.Counter{
		&out.Created, &out.Destroyed, &out.Ups, &out.Downs, &out.Overflows, &out.Timeouts,
	} {
		if *c == nil {
			*c = discard.NewCounter()
		}
	}
	if out.Live == nil {
		out.Live = discard.NewGauge()
	}
	return &out
}
