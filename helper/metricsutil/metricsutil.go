package metricsutil

import (
	"fmt"
	"time"

	"github.com/armon/go-metrics"
)

const (
	inmemInterval  = 10 * time.Second
	inmemRetention = time.Minute
)

// TelemetryOptions selects where client metrics are sent.
type TelemetryOptions struct {
	ServiceName     string
	MetricsPrefix   string
	StatsdAddr      string
	StatsiteAddr    string
	DisableHostname bool
}

// MetricsHelper owns the in-memory sink alongside the client sink, so the
// latest interval can be dumped after a command completes.
type MetricsHelper struct {
	inMemSink *metrics.InmemSink
	Sink      *ClientMetricSink
}

func NewMetricsHelper(inMem *metrics.InmemSink, sink *ClientMetricSink) *MetricsHelper {
	return &MetricsHelper{inMemSink: inMem, Sink: sink}
}

// Summary returns the counters and samples of every interval kept in memory,
// keyed by metric name.
func (m *MetricsHelper) Summary() map[string]float64 {
	out := make(map[string]float64)
	for _, interval := range m.inMemSink.Data() {
		interval.RLock()
		for name, c := range interval.Counters {
			out[name] += c.Sum
		}
		for name, s := range interval.Samples {
			out[name] += s.Sum
		}
		interval.RUnlock()
	}
	return out
}

// SetupTelemetry builds a sink fanning out to memory and to the configured
// statsd and statsite addresses.
func SetupTelemetry(opts TelemetryOptions) (*MetricsHelper, error) {
	inm := metrics.NewInmemSink(inmemInterval, inmemRetention)

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "billing"
	}
	prefix := opts.MetricsPrefix
	if prefix == "" {
		prefix = serviceName
	}

	conf := metrics.DefaultConfig(prefix)
	conf.EnableHostname = !opts.DisableHostname
	conf.EnableRuntimeMetrics = false

	fanout := metrics.FanoutSink{inm}

	if opts.StatsdAddr != "" {
		sink, err := metrics.NewStatsdSink(opts.StatsdAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start statsd sink: %w", err)
		}
		fanout = append(fanout, sink)
	}

	if opts.StatsiteAddr != "" {
		sink, err := metrics.NewStatsiteSink(opts.StatsiteAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to start statsite sink: %w", err)
		}
		fanout = append(fanout, sink)
	}

	m, err := metrics.New(conf, fanout)
	if err != nil {
		return nil, err
	}

	return NewMetricsHelper(inm, NewClientMetricSink(serviceName, m)), nil
}
