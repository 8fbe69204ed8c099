package kobj

import (
	"testing"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	"github.com/go-kit/kit/metrics/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_FillNil(t *testing.T) {
	assert := assert.New(t)

	var m *Metrics
	f := m.fill()
	assert.NotNil(f.Created)
	assert.NotNil(f.Destroyed)
	assert.NotNil(f.Live)
	assert.NotNil(f.Ups)
	assert.NotNil(f.Downs)
	assert.NotNil(f.Overflows)
	assert.NotNil(f.Timeouts)

	tm, partial := newTestMetrics()
	partial.Ups = nil
	f = partial.fill()
	assert.NotNil(f.Ups)
	f.Created.Add(1)
	assert.Equal(1.0, tm.created.Value())
}

func TestMetrics_Discard(t *testing.T) {
	m := NewMetrics(provider.NewDiscardProvider())
	k := NewKernel(WithMetrics(m))
	h, err := k.CreateSm(0)
	require.NoError(t, err)
	assert.NoError(t, k.Up(h))
}

func TestMetrics_Prometheus(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		registry = prometheus.NewRegistry()
		counter  = func(name string) *kitprometheus.Counter {
			cv := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "kobj_test", Name: name, Help: name}, nil)
			registry.MustRegister(cv)
			return kitprometheus.NewCounter(cv)
		}
		live = prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "kobj_test", Name: LiveGauge, Help: LiveGauge}, nil)
	)
	registry.MustRegister(live)

	k := NewKernel(WithMetrics(&Metrics{
		Created: counter(CreatedCounter),
		Ups:     counter(UpCounter),
		Live:    kitprometheus.NewGauge(live),
	}))

	h, err := k.CreateSm(0)
	require.NoError(err)
	require.NoError(k.Up(h))
	require.NoError(k.Up(h))

	families, err := registry.Gather()
	require.NoError(err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	assert.Equal(2.0, values["kobj_test_"+UpCounter])
	assert.Equal(1.0, values["kobj_test_"+CreatedCounter])
	assert.Equal(1.0, values["kobj_test_"+LiveGauge])
}
