package metricsutil

import (
	"sync/atomic"
	"time"

	"github.com/armon/go-metrics"
)

// ClientMetricSink labels every metric with the name of the client that
// emitted it.
type ClientMetricSink struct {
	ClientName atomic.Value

	// Sink is the go-metrics instance to send to.
	Sink metrics.MetricSink
}

// Metrics is the subset of go-metrics the client emits through.
type Metrics interface {
	IncrCounterWithLabels(key []string, val float32, labels []Label)
	AddSampleWithLabels(key []string, val float32, labels []Label)
	MeasureSinceWithLabels(key []string, start time.Time, labels []Label)
}

type Label = metrics.Label

func (m *ClientMetricSink) clientLabel() Label {
	name, _ := m.ClientName.Load().(string)
	return Label{Name: "client", Value: name}
}

func (m *ClientMetricSink) IncrCounterWithLabels(key []string, val float32, labels []Label) {
	m.Sink.IncrCounterWithLabels(key, val,
		append(labels, m.clientLabel()))
}

func (m *ClientMetricSink) AddSampleWithLabels(key []string, val float32, labels []Label) {
	m.Sink.AddSampleWithLabels(key, val,
		append(labels, m.clientLabel()))
}

func (m *ClientMetricSink) MeasureSinceWithLabels(key []string, start time.Time, labels []Label) {
	elapsed := time.Since(start)
	val := float32(elapsed) / float32(time.Millisecond)
	m.AddSampleWithLabels(key, val, labels)
}

// BlackholeSink returns a sink that drops everything.
func BlackholeSink() *ClientMetricSink {
	return NewClientMetricSink("", &metrics.BlackholeSink{})
}

func NewClientMetricSink(clientName string, sink metrics.MetricSink) *ClientMetricSink {
	cms := &ClientMetricSink{
		ClientName: atomic.Value{},
		Sink:       sink,
	}
	cms.ClientName.Store(clientName)
	return cms
}
