package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"crypto/tls"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-pluto/charon/imap"
)

// Structs

// Options configure the sessions a service creates.
type Options struct {
	Greeting         string
	MaxLineLength    int
	HandshakeTimeout time.Duration

	// TLSConfig enables STARTTLS when set.
	TLSConfig *tls.Config

	// Authenticator checks LOGIN credentials. Without
	// one, every LOGIN is accepted unless LOGINDISABLED
	// is advertised.
	Authenticator imap.PlainAuthenticator

	Metrics imap.Metrics
}

type service struct {
	logger   log.Logger
	registry *imap.Registry
	options  Options
}

// Interfaces

// Service defines the interface a charon node provides
// for serving client connections.
type Service interface {

	// HandleConnection runs one IMAP session on conn
	// until the client logs out, disconnects or ctx
	// is cancelled. conn is closed afterwards.
	HandleConnection(ctx context.Context, conn net.Conn) error
}

// Functions

// NewService takes in all required parameters for
// serving IMAP sessions and returns a service struct
// wrapping all information.
func NewService(logger log.Logger, opts Options) Service {

	registry := imap.DefaultRegistry()
	registry.HandleFunc("LOGIN", imap.StateNotAuthenticated, 2, imap.LoginHandler(opts.Authenticator))

	return &service{
		logger:   logger,
		registry: registry,
		options:  opts,
	}
}

// HandleConnection creates a fresh session for conn
// and hands control to its serve loop.
func (s *service) HandleConnection(ctx context.Context, conn net.Conn) error {

	session, err := imap.NewSession(conn, imap.Options{
		Registry:         s.registry,
		Logger:           s.logger,
		Metrics:          s.options.Metrics,
		Greeting:         s.options.Greeting,
		MaxLineLength:    s.options.MaxLineLength,
		HandshakeTimeout: s.options.HandshakeTimeout,
		TLSConfig:        s.options.TLSConfig,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating session failed with: %v", err)
	}

	level.Debug(session.Logger()).Log("msg", "accepted connection")

	return session.Serve(ctx)
}

// Run loops over incoming connections on listener and
// dispatches each one to a goroutine handled by svc.
// When ctx is cancelled, listener is closed and Run
// returns after all running sessions ended. Errors of
// single connections are logged at debug level to logger.
func Run(ctx context.Context, logger log.Logger, listener net.Listener, svc Service) error {

	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	for {

		// Accept request or fail on error.
		conn, err := listener.Accept()
		if err != nil {

			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("accepting incoming connection failed with: %v", err)
		}

		wg.Add(1)

		// Dispatch into own goroutine.
		go func() {
			defer wg.Done()

			remote := conn.RemoteAddr().String()

			if err := svc.HandleConnection(ctx, conn); err != nil {
				level.Debug(logger).Log(
					"msg", "connection handler returned error",
					"remote", remote,
					"err", err,
				)
			}
		}()
	}
}
