package server

import (
	"context"
	"net"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Structs

// Metrics are the connection level instruments of
// a service. Connections is labelled with "result".
type Metrics struct {
	Connections     metrics.Counter
	ActiveSessions  metrics.Gauge
	SessionDuration metrics.Histogram
}

type metricsService struct {
	service Service
	metrics Metrics
}

// Functions

// DiscardMetrics returns metrics that drop every update.
func DiscardMetrics() Metrics {

	return Metrics{
		Connections:     discard.NewCounter(),
		ActiveSessions:  discard.NewGauge(),
		SessionDuration: discard.NewHistogram(),
	}
}

// NewMetricsService wraps s and reports every handled
// connection to m.
func NewMetricsService(s Service, m Metrics) Service {

	return &metricsService{
		service: s,
		metrics: m,
	}
}

func (s *metricsService) HandleConnection(ctx context.Context, conn net.Conn) error {

	start := time.Now()
	s.metrics.ActiveSessions.Add(1)

	err := s.service.HandleConnection(ctx, conn)

	s.metrics.ActiveSessions.Add(-1)
	s.metrics.SessionDuration.Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.Connections.With("result", result).Add(1)

	return err
}
