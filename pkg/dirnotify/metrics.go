package dirnotify

import (
	"sync/atomic"

	"github.com/openmirror/localfs/pkg/plog"
)

// Metrics defines the interface for collecting notification statistics.
type Metrics interface {
	AddEventsReceived(n int64)
	AddEventsIgnored(n int64)
	AddEventsSuppressed(n int64)
	AddEventsDeduped(n int64)
	AddEventsQueued(n int64)
	AddOverflows(n int64)
	LogSummary(msg string)
}

// NotifyMetrics holds the atomic counters for one notifier. It is the
// concrete implementation of the Metrics interface.
type NotifyMetrics struct {
	EventsReceived   atomic.Int64
	EventsIgnored    atomic.Int64
	EventsSuppressed atomic.Int64
	EventsDeduped    atomic.Int64
	EventsQueued     atomic.Int64
	Overflows        atomic.Int64
}

func (m *NotifyMetrics) AddEventsReceived(n int64)   { m.EventsReceived.Add(n) }
func (m *NotifyMetrics) AddEventsIgnored(n int64)    { m.EventsIgnored.Add(n) }
func (m *NotifyMetrics) AddEventsSuppressed(n int64) { m.EventsSuppressed.Add(n) }
func (m *NotifyMetrics) AddEventsDeduped(n int64)    { m.EventsDeduped.Add(n) }
func (m *NotifyMetrics) AddEventsQueued(n int64)     { m.EventsQueued.Add(n) }
func (m *NotifyMetrics) AddOverflows(n int64)        { m.Overflows.Add(n) }

// LogSummary prints the counters with a custom message.
func (m *NotifyMetrics) LogSummary(msg string) {
	plog.Info(msg,
		"events_received", m.EventsReceived.Load(),
		"events_ignored", m.EventsIgnored.Load(),
		"events_suppressed", m.EventsSuppressed.Load(),
		"events_deduped", m.EventsDeduped.Load(),
		"events_queued", m.EventsQueued.Load(),
		"overflows", m.Overflows.Load(),
	)
}

// NoopMetrics is an implementation of the Metrics interface that
// performs no operations.
type NoopMetrics struct{}

func (m *NoopMetrics) AddEventsReceived(n int64)   {}
func (m *NoopMetrics) AddEventsIgnored(n int64)    {}
func (m *NoopMetrics) AddEventsSuppressed(n int64) {}
func (m *NoopMetrics) AddEventsDeduped(n int64)    {}
func (m *NoopMetrics) AddEventsQueued(n int64)     {}
func (m *NoopMetrics) AddOverflows(n int64)        {}
func (m *NoopMetrics) LogSummary(msg string)       {}

// Statically assert that our types implement the interface.
var _ Metrics = (*NotifyMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
