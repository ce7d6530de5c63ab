// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mtnptrsn/zon/logger"
)

type Metrics struct {
	OnlineSessions   prometheus.Gauge
	Rooms            *prometheus.GaugeVec
	Transitions      *prometheus.CounterVec
	Captures         prometheus.Counter
	SaveConflicts    prometheus.Counter
	MessagesReceived prometheus.Counter
	MessageLatency   prometheus.Histogram
	TickDuration     prometheus.Histogram
	TickFailures     prometheus.Counter
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlineSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_sessions",
			Help:      "Number of connected sessions",
		}),
		Rooms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Rooms seen by the last tick, by status",
		}, []string{"status"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_transitions_total",
			Help:      "Room status transitions",
		}, []string{"to"}),
		Captures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Zone captures recorded",
		}),
		SaveConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_conflicts_total",
			Help:      "Room saves rejected for a stale version",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent scanning active rooms",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		TickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_room_failures_total",
			Help:      "Rooms whose tick work failed or panicked",
		}),
	}

	reg.MustRegister(
		m.OnlineSessions,
		m.Rooms,
		m.Transitions,
		m.Captures,
		m.SaveConflicts,
		m.MessagesReceived,
		m.MessageLatency,
		m.TickDuration,
		m.TickFailures,
	)

	return m
}

// Monitor wraps Metrics. A nil *Monitor is valid and records nothing.
type Monitor struct {
	metrics      *Metrics
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
	server       *http.Server
}

// NewMonitor registers with the default registry.
func NewMonitor(namespace string) *Monitor {
	return NewMonitorWithRegistry(namespace, prometheus.DefaultRegisterer)
}

func NewMonitorWithRegistry(namespace string, reg prometheus.Registerer) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/vars", expvar.Handler())

	// 添加expvar指标
	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))

	expvar.Publish("requests", expvar.Func(func() interface{} {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		return m.requestCount
	}))

	m.server = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("metrics server: %v", err)
		}
	}()
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitor) IncOnlineSessions() {
	if m == nil {
		return
	}
	m.metrics.OnlineSessions.Inc()
}

func (m *Monitor) DecOnlineSessions() {
	if m == nil {
		return
	}
	m.metrics.OnlineSessions.Dec()
}

// SetRooms replaces the per-status room gauge.
func (m *Monitor) SetRooms(byStatus map[string]int) {
	if m == nil {
		return
	}
	m.metrics.Rooms.Reset()
	for status, n := range byStatus {
		m.metrics.Rooms.WithLabelValues(status).Set(float64(n))
	}
}

func (m *Monitor) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.metrics.Transitions.WithLabelValues(to).Inc()
}

func (m *Monitor) AddCaptures(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.metrics.Captures.Add(float64(n))
}

func (m *Monitor) IncSaveConflicts() {
	if m == nil {
		return
	}
	m.metrics.SaveConflicts.Inc()
}

func (m *Monitor) IncMessagesReceived() {
	if m == nil {
		return
	}
	m.metrics.MessagesReceived.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.MessageLatency.Observe(duration.Seconds())
}

func (m *Monitor) ObserveTick(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.TickDuration.Observe(duration.Seconds())
}

func (m *Monitor) IncTickFailures() {
	if m == nil {
		return
	}
	m.metrics.TickFailures.Inc()
}
