package imap

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
)

// Structs

// Metrics bundles the counters a session reports to.
// Commands is labelled with "command" and "outcome",
// Upgrades with "result".
type Metrics struct {
	Commands      metrics.Counter
	Upgrades      metrics.Counter
	FramingFaults metrics.Counter
}

// Functions

// DiscardMetrics returns metrics that drop every update.
func DiscardMetrics() Metrics {

	return Metrics{
		Commands:      discard.NewCounter(),
		Upgrades:      discard.NewCounter(),
		FramingFaults: discard.NewCounter(),
	}
}

// withDefaults fills every unset counter with a discarding one.
func (m Metrics) withDefaults() Metrics {

	if m.Commands == nil {
		m.Commands = discard.NewCounter()
	}

	if m.Upgrades == nil {
		m.Upgrades = discard.NewCounter()
	}

	if m.FramingFaults == nil {
		m.FramingFaults = discard.NewCounter()
	}

	return m
}
