package realtime

import (
	"github.com/executehouse/limpopo-connect/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	eventsApplied *prometheus.CounterVec   // op
	eventsDropped *prometheus.CounterVec   // reason: duplicate | malformed | misrouted | unknown
	reconnects    *prometheus.CounterVec   // status: success | error
	resyncs       *prometheus.HistogramVec // status: success | error
}

func NewMetrics() (*Metrics, error) {
	applied, err := util.GetCounterVec("room_events_applied_total", "op")
	if err != nil {
		return nil, err
	}
	dropped, err := util.GetCounterVec("room_events_dropped_total", "reason")
	if err != nil {
		return nil, err
	}
	reconnects, err := util.GetCounterVec("room_reconnect_attempts_total", "status")
	if err != nil {
		return nil, err
	}
	resyncs, err := util.GetHistogramVec("room_resync_seconds", "status")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsApplied: applied,
		eventsDropped: dropped,
		reconnects:    reconnects,
		resyncs:       resyncs,
	}, nil
}

func (m *Metrics) applied(op string) {
	if m == nil {
		return
	}
	m.eventsApplied.WithLabelValues(op).Inc()
}

func (m *Metrics) dropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) reconnect(status string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(status).Inc()
}

func (m *Metrics) resync(status string, seconds float64) {
	if m == nil {
		return
	}
	m.resyncs.WithLabelValues(status).Observe(seconds)
}
