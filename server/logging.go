package server

import (
	"context"
	"net"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-pluto/charon/imap"
	"github.com/pkg/errors"
)

type loggingService struct {
	logger  log.Logger
	service Service
}

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {
	return &loggingService{logger, s}
}

// HandleConnection wraps this service's HandleConnection
// method with added logging capabilities.
func (s *loggingService) HandleConnection(ctx context.Context, conn net.Conn) error {

	start := time.Now()
	remote := conn.RemoteAddr().String()

	err := s.service.HandleConnection(ctx, conn)

	logger := log.With(s.logger,
		"method", "HandleConnection",
		"remote", remote,
		"took", time.Since(start),
	)

	switch {
	case err == nil:
		level.Debug(logger).Log("msg", "session ended")
	case imap.IsFramingFault(err):
		level.Info(logger).Log("msg", "session ended after client framing fault", "err", err)
	case errors.Is(err, context.Canceled):
		level.Debug(logger).Log("msg", "session cancelled")
	default:
		level.Warn(logger).Log("msg", "session ended with error", "err", err)
	}

	return err
}
