package main

import (
	"fmt"
	"os"
	"time"

	"crypto/tls"

	"github.com/dustin/go-humanize"
	"github.com/emersion/go-imap/client"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	flag "github.com/spf13/pflag"
)

// Structs

// round holds the measured durations of one probe run.
type round struct {
	connect  time.Duration
	starttls time.Duration
	login    time.Duration
	logout   time.Duration
}

// Functions

func (r round) total() time.Duration {
	return r.connect + r.starttls + r.login + r.logout
}

// probe runs one connect, STARTTLS, LOGIN and LOGOUT cycle.
func probe(addr string, user string, password string, tlsConfig *tls.Config) (round, error) {

	var r round

	start := time.Now()

	c, err := client.Dial(addr)
	if err != nil {
		return r, fmt.Errorf("connecting failed: %v", err)
	}
	defer c.Terminate()

	r.connect = time.Since(start)

	if tlsConfig != nil {

		start = time.Now()

		if err := c.StartTLS(tlsConfig); err != nil {
			return r, fmt.Errorf("STARTTLS failed: %v", err)
		}

		r.starttls = time.Since(start)
	}

	start = time.Now()

	if err := c.Login(user, password); err != nil {
		return r, fmt.Errorf("LOGIN failed: %v", err)
	}

	r.login = time.Since(start)
	start = time.Now()

	if err := c.Logout(); err != nil {
		return r, fmt.Errorf("LOGOUT failed: %v", err)
	}

	r.logout = time.Since(start)

	return r, nil
}

func main() {

	addr := flag.String("addr", "127.0.0.1:1143", "Address of the IMAP server to probe.")
	user := flag.String("user", "", "User name to log in with (required).")
	password := flag.String("pass", "", "Password to log in with (required).")
	starttls := flag.Bool("starttls", true, "Upgrade every connection via STARTTLS before logging in.")
	insecure := flag.Bool("insecure", false, "Do not verify the server certificate.")
	rounds := flag.IntP("rounds", "n", 100, "Number of probe rounds.")
	flag.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stdout))

	if (*user == "") || (*password == "") {
		level.Error(logger).Log("msg", "user and password are required, try --help")
		os.Exit(1)
	}

	var tlsConfig *tls.Config
	if *starttls {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: *insecure,
			MinVersion:         tls.VersionTLS12,
		}
	}

	var sum time.Duration
	failed := 0

	for i := 0; i < *rounds; i++ {

		r, err := probe(*addr, *user, *password, tlsConfig)
		if err != nil {
			level.Warn(logger).Log("round", i, "err", err)
			failed++
			continue
		}

		sum += r.total()

		level.Info(logger).Log(
			"round", i,
			"connect", r.connect,
			"starttls", r.starttls,
			"login", r.login,
			"logout", r.logout,
		)
	}

	succeeded := *rounds - failed
	if succeeded == 0 {
		level.Error(logger).Log("msg", "no probe round succeeded")
		os.Exit(2)
	}

	level.Info(logger).Log(
		"msg", "probe finished",
		"rounds", humanize.Comma(int64(*rounds)),
		"failed", failed,
		"mean", sum/time.Duration(succeeded),
	)
}
