// Package metrics exposes Prometheus counters for the investigation pipeline
// and a small HTTP listener serving /metrics and /healthz.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	investigationsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sleuthbot",
			Name:      "investigations_started_total",
			Help:      "Investigations dispatched onto the fan-out topic.",
		},
	)

	notificationsPosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleuthbot",
			Name:      "notifications_posted_total",
			Help:      "Notifications delivered to a conversation thread, by channel.",
		},
		[]string{"channel"},
	)

	inspectorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sleuthbot",
			Name:      "inspector_failures_total",
			Help:      "Inspector invocations that ended in the apology path, by inspector.",
		},
		[]string{"inspector"},
	)

	pollExhaustions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sleuthbot",
			Name:      "poll_exhaustions_total",
			Help:      "Asynchronous queries that never reached a terminal state.",
		},
	)

	inspectionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sleuthbot",
			Name:      "inspection_seconds",
			Help:      "Inspector invocation latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"inspector"},
	)
)

// Register attaches the sleuthbot collectors to reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		investigationsStarted,
		notificationsPosted,
		inspectorFailures,
		pollExhaustions,
		inspectionSeconds,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// InvestigationStarted records one dispatched investigation.
func InvestigationStarted() { investigationsStarted.Inc() }

// NotificationPosted records one delivered thread reply.
func NotificationPosted(channel string) { notificationsPosted.WithLabelValues(channel).Inc() }

// InspectorFailed records one apology-path invocation.
func InspectorFailed(inspector string) { inspectorFailures.WithLabelValues(inspector).Inc() }

// PollExhausted records one query that never completed.
func PollExhausted() { pollExhaustions.Inc() }

// ObserveInspection records one inspector invocation's latency.
func ObserveInspection(inspector string, d time.Duration) {
	inspectionSeconds.WithLabelValues(inspector).Observe(d.Seconds())
}

// Serve runs the metrics listener until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		logger.Info("metrics listener stopped")
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
