package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crypto/tls"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-pluto/charon/auth"
	"github.com/go-pluto/charon/config"
	"github.com/go-pluto/charon/crypto"
	"github.com/go-pluto/charon/server"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// Functions

// initLogger initializes a JSON gokit-logger set
// to the according log level supplied via cli flag.
func initLogger(loglevel string) log.Logger {

	logger := log.NewJSONLogger(log.NewSyncWriter(os.Stdout))
	logger = log.With(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.DefaultCaller,
	)

	switch strings.ToLower(loglevel) {
	case "info":
		logger = level.NewFilter(logger, level.AllowInfo())
	case "warn":
		logger = level.NewFilter(logger, level.AllowWarn())
	case "error":
		logger = level.NewFilter(logger, level.AllowError())
	default:
		logger = level.NewFilter(logger, level.AllowDebug())
	}

	return logger
}

// initTLS builds the STARTTLS config from the TLS section
// of the config. If the key pair does not exist yet and
// genCert is set, a self-signed one is created first. The
// returned reloader is nil unless watching was requested.
func initTLS(logger log.Logger, conf *config.Config, genCert bool) (*tls.Config, *crypto.CertReloader, error) {

	if !conf.TLS.Enabled {
		return nil, nil, nil
	}

	if genCert {

		_, certErr := os.Stat(conf.TLS.CertLoc)
		_, keyErr := os.Stat(conf.TLS.KeyLoc)

		if os.IsNotExist(certErr) && os.IsNotExist(keyErr) {

			host, _, err := net.SplitHostPort(conf.Server.ListenAddr)
			if (err != nil) || (host == "") {
				host = "localhost"
			}

			err = crypto.WriteSelfSigned(conf.TLS.CertLoc, conf.TLS.KeyLoc, []string{host}, 365*24*time.Hour)
			if err != nil {
				return nil, nil, err
			}

			level.Warn(logger).Log(
				"msg", "generated self-signed certificate, do not use it in production",
				"cert", conf.TLS.CertLoc,
				"host", host,
			)
		}
	}

	if !conf.TLS.Watch {

		tlsConfig, err := crypto.NewPublicTLSConfig(conf.TLS.CertLoc, conf.TLS.KeyLoc)
		if err != nil {
			return nil, nil, err
		}

		return tlsConfig, nil, nil
	}

	reloader, err := crypto.NewCertReloader(logger, conf.TLS.CertLoc, conf.TLS.KeyLoc)
	if err != nil {
		return nil, nil, err
	}

	return crypto.NewReloadingTLSConfig(reloader), reloader, nil
}

// loadConfig reads the config file and applies
// overrides from the environment.
func loadConfig(configFile string, envFile string) (*config.Config, error) {

	conf, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}

	env, err := config.LoadEnv(envFile)
	if err != nil {
		return nil, err
	}

	if err := env.Apply(conf); err != nil {
		return nil, fmt.Errorf("invalid environment: %v", err)
	}

	return conf, nil
}

func main() {

	// Parse command-line flags.
	configFlag := flag.StringP("config", "c", "charon.toml", "Provide path to configuration file in TOML syntax.")
	envFlag := flag.String("env", ".env", "Provide path to an optional .env file with CHARON_ overrides.")
	loglevelFlag := flag.String("loglevel", "debug", "This flag sets the default logging level.")
	genCertFlag := flag.Bool("gen-cert", false, "Create a self-signed certificate at the configured location if none exists.")
	flag.Parse()

	logger := initLogger(*loglevelFlag)

	// Read configuration from file.
	conf, err := loadConfig(*configFlag, *envFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to load the config",
			"err", err,
		)
		os.Exit(1)
	}

	authenticator, err := auth.NewAuthenticator(conf.Auth)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize an authenticator",
			"err", err,
		)
		os.Exit(2)
	}

	tlsConfig, reloader, err := initTLS(logger, conf, *genCertFlag)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to initialize TLS",
			"err", err,
		)
		os.Exit(3)
	}

	metrics := NewCharonMetrics(conf.Server.PrometheusAddr)

	var svc server.Service
	svc = server.NewService(logger, server.Options{
		Greeting:         conf.IMAP.Greeting,
		MaxLineLength:    conf.IMAP.MaxLineBytes,
		HandshakeTimeout: conf.IMAP.HandshakeTimeLim,
		TLSConfig:        tlsConfig,
		Authenticator:    authenticator,
		Metrics:          metrics.Session,
	})
	svc = server.NewLoggingService(svc, logger)
	svc = server.NewMetricsService(svc, metrics.Server)

	listener, err := net.Listen("tcp", conf.Server.ListenAddr)
	if err != nil {
		level.Error(logger).Log(
			"msg", "failed to listen for IMAP connections",
			"addr", conf.Server.ListenAddr,
			"err", err,
		)
		os.Exit(4)
	}

	level.Info(logger).Log(
		"msg", "listening for incoming IMAP requests",
		"addr", listener.Addr(),
		"starttls", tlsConfig != nil,
		"auth", conf.Auth.Adapter,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(ctx, logger, listener, svc)
	})

	g.Go(func() error {
		return runPromHTTP(ctx, logger, conf.Server.PrometheusAddr, metrics.Registry)
	})

	if reloader != nil {

		g.Go(func() error {
			return reloader.Watch(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		level.Error(logger).Log(
			"msg", "charon stopped with error",
			"err", err,
		)
		os.Exit(5)
	}

	level.Info(logger).Log("msg", "charon stopped")
}
