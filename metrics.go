package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-pluto/charon/imap"
	"github.com/go-pluto/charon/server"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Structs

// CharonMetrics bundles the instruments of sessions and
// of the connection handling together with the registry
// they are exposed from. Registry is nil when metrics
// are discarded.
type CharonMetrics struct {
	Session  imap.Metrics
	Server   server.Metrics
	Registry *prom.Registry
}

// Functions

// NewCharonMetrics creates Prometheus backed metrics if
// prometheusAddr is set and discarding ones otherwise.
func NewCharonMetrics(prometheusAddr string) *CharonMetrics {

	if prometheusAddr == "" {

		return &CharonMetrics{
			Session: imap.DiscardMetrics(),
			Server:  server.DiscardMetrics(),
		}
	}

	reg := prom.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	commands := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "charon",
		Subsystem: "imap",
		Name:      "commands_total",
		Help:      "Number of received command lines by command and dispatch outcome",
	}, []string{"command", "outcome"})

	upgrades := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "charon",
		Subsystem: "imap",
		Name:      "starttls_total",
		Help:      "Number of STARTTLS attempts by result",
	}, []string{"result"})

	framingFaults := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "charon",
		Subsystem: "imap",
		Name:      "framing_faults_total",
		Help:      "Number of sessions closed because of malformed line endings or overlong lines",
	}, []string{})

	connections := prom.NewCounterVec(prom.CounterOpts{
		Namespace: "charon",
		Subsystem: "server",
		Name:      "connections_total",
		Help:      "Number of handled connections by result",
	}, []string{"result"})

	active := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "charon",
		Subsystem: "server",
		Name:      "active_sessions",
		Help:      "Number of sessions currently served",
	}, []string{})

	duration := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: "charon",
		Subsystem: "server",
		Name:      "session_duration_seconds",
		Help:      "Time from accepting a connection until it was closed",
		Buckets:   prom.ExponentialBuckets(0.01, 4, 10),
	}, []string{})

	reg.MustRegister(commands, upgrades, framingFaults, connections, active, duration)

	return &CharonMetrics{
		Session: imap.Metrics{
			Commands:      prometheus.NewCounter(commands),
			Upgrades:      prometheus.NewCounter(upgrades),
			FramingFaults: prometheus.NewCounter(framingFaults),
		},
		Server: server.Metrics{
			Connections:     prometheus.NewCounter(connections),
			ActiveSessions:  prometheus.NewGauge(active),
			SessionDuration: prometheus.NewHistogram(duration),
		},
		Registry: reg,
	}
}

// runPromHTTP exposes reg on addr under /metrics until
// ctx is done.
func runPromHTTP(ctx context.Context, logger log.Logger, addr string, reg *prom.Registry) error {

	if (addr == "") || (reg == nil) {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)

	if err := srv.ListenAndServe(); (err != nil) && (err != http.ErrServerClosed) {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
		return err
	}

	return nil
}
