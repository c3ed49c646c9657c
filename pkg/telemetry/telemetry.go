// Package telemetry serves the agent's own internal self-observability
// surface: prometheus metrics plus a liveness endpoint on a
// loopback-only port. This is distinct from, and does not implement,
// the out-of-scope external read API (spec.md §6 "FULL").
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the prometheus collectors the agent updates as it runs.
type Metrics struct {
	HeartbeatAge *prometheus.GaugeVec
	QueueDepth   prometheus.Gauge
	EventsTotal  *prometheus.CounterVec
	AlertsTotal  *prometheus.CounterVec
}

// NewMetrics registers every collector against a fresh registry so
// multiple agent instances in the same test binary don't collide on the
// default global registry.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		HeartbeatAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hids_heartbeat_age_seconds",
			Help: "Seconds since each worker's last tick.",
		}, []string{"worker"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hids_writer_queue_depth",
			Help: "Current depth of the writer's persistence queue.",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hids_events_total",
			Help: "Total events produced, by type.",
		}, []string{"type"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hids_alerts_total",
			Help: "Total alerts produced, by rule name.",
		}, []string{"rule_name"}),
	}

	reg.MustRegister(m.HeartbeatAge, m.QueueDepth, m.EventsTotal, m.AlertsTotal)
	return m, reg
}

// HeartbeatSource reports the age of a worker's last heartbeat.
type HeartbeatSource interface {
	Unhealthy(name string, interval time.Duration) bool
	Heartbeat(name string) (time.Time, bool)
}

// Server serves /metrics and /healthz on a loopback-only address.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds a Server bound to addr (expected to be a loopback
// address, e.g. 127.0.0.1:9977). /healthz reports 503 if health reports
// any worker in workerIntervals unhealthy (spec.md §4.1: no heartbeat
// within 3x its tick interval), 200 otherwise.
func NewServer(addr string, reg *prometheus.Registry, health HeartbeatSource, workerIntervals map[string]time.Duration, log *zap.Logger) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		for name, interval := range workerIntervals {
			if health.Unhealthy(name, interval) {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("unhealthy: " + name))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: router},
		log:        log,
	}
}

// Serve blocks until ctx is cancelled, then shuts the HTTP server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
