package statsd

import (
	"maps"
	"sync"
	"time"
)

// Sample is one recorded metric.
type Sample struct {
	Kind  string // "count", "gauge" or "timing"
	Name  string
	Value float64
	Tags  map[string]string
}

// Memory is an in-process Sink that keeps every sample. Used by tests and the CLI's debug mode.
type Memory struct {
	mu      sync.Mutex
	samples []Sample
}

var _ Sink = (*Memory)(nil)

func (m *Memory) Count(name string, value int64, tags map[string]string) {
	m.add(Sample{Kind: "count", Name: name, Value: float64(value), Tags: maps.Clone(tags)})
}

func (m *Memory) Gauge(name string, value float64, tags map[string]string) {
	m.add(Sample{Kind: "gauge", Name: name, Value: value, Tags: maps.Clone(tags)})
}

func (m *Memory) Timing(name string, value time.Duration, tags map[string]string) {
	m.add(Sample{Kind: "timing", Name: name, Value: float64(value) / float64(time.Millisecond), Tags: maps.Clone(tags)})
}

func (m *Memory) add(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s)
}

// Samples returns a copy of everything recorded.
func (m *Memory) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sample(nil), m.samples...)
}

// Named returns recorded samples with the given name.
func (m *Memory) Named(name string) []Sample {
	var out []Sample
	for _, s := range m.Samples() {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Total sums the values of samples with name.
func (m *Memory) Total(name string) float64 {
	var sum float64
	for _, s := range m.Named(name) {
		sum += s.Value
	}
	return sum
}
