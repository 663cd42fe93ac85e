package imap

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"
)

// Constants

// Possible results of dispatching one line.
const (
	OutcomeMalformed Outcome = iota
	OutcomeDuplicateTag
	OutcomeUnknownCommand
	OutcomeStateViolation
	OutcomeArityViolation
	OutcomeDefaultOK
	OutcomeHandled
)

// Structs

// Outcome classifies what the dispatcher did with a line.
// All outcomes except OutcomeHandled and OutcomeDefaultOK
// are rejections answered with BAD.
type Outcome int

// Functions

// String returns the metric label of an outcome.
func (o Outcome) String() string {

	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeDuplicateTag:
		return "duplicate_tag"
	case OutcomeUnknownCommand:
		return "unknown_command"
	case OutcomeStateViolation:
		return "state_violation"
	case OutcomeArityViolation:
		return "arity_violation"
	case OutcomeDefaultOK:
		return "ok"
	case OutcomeHandled:
		return "handled"
	}

	return "unknown"
}

// Rejected reports whether the line was refused before
// reaching a handler.
func (o Outcome) Rejected() bool {
	return o < OutcomeDefaultOK
}

// Dispatch runs one complete line through tag, registry,
// state and arity checks and finally the command handler.
// Recoverable faults are answered on the connection and
// reported only through the returned Outcome. A non-nil
// error is fatal for the session.
func (s *Session) Dispatch(ctx context.Context, line string) (Outcome, error) {

	req, ok := ParseRequest(line)
	if !ok {
		return s.reject(OutcomeMalformed, "", UntaggedStatus(StatusBAD, "Malformed line, expected tag and command"))
	}

	// Tags stay reserved for the session lifetime,
	// unknown commands consume their tag as well.
	if s.tags.Observe(req.Tag) {
		return s.reject(OutcomeDuplicateTag, req.Command, Tagged(req.Tag, StatusBAD, fmt.Sprintf("Tag '%s' already seen before", req.Tag)))
	}

	cmd, found := s.registry.Lookup(req.Command)
	if !found {
		return s.reject(OutcomeUnknownCommand, req.Command, Tagged(req.Tag, StatusBAD, fmt.Sprintf("Unknown command '%s'", req.RawCommand)))
	}

	if !cmd.AllowedStates.Has(s.state) {
		return s.reject(OutcomeStateViolation, cmd.Name, Tagged(req.Tag, StatusBAD, fmt.Sprintf("Command '%s' not allowed in state '%s'", cmd.Name, s.state)))
	}

	if len(req.Args) > cmd.MaxArgs {
		return s.reject(OutcomeArityViolation, cmd.Name, Tagged(req.Tag, StatusBAD, fmt.Sprintf("Too many arguments for command '%s', at most %d allowed", cmd.Name, cmd.MaxArgs)))
	}

	if cmd.Handler == nil {

		s.count(cmd.Name, OutcomeDefaultOK)

		return OutcomeDefaultOK, s.OK(req.Tag, cmd.Name)
	}

	s.count(cmd.Name, OutcomeHandled)

	err := cmd.Handler.Handle(ctx, s, req.Tag, req.Args)

	level.Debug(s.logger).Log(
		"msg", "dispatched command",
		"tag", req.Tag,
		"command", cmd.Name,
		"args", len(req.Args),
		"state", s.state,
		"err", err,
	)

	return OutcomeHandled, err
}

// reject sends resp for a refused line.
func (s *Session) reject(outcome Outcome, command string, resp Response) (Outcome, error) {

	s.count(command, outcome)

	level.Debug(s.logger).Log(
		"msg", "rejected command line",
		"tag", resp.Tag,
		"command", command,
		"outcome", outcome,
	)

	return outcome, s.Send(resp)
}

func (s *Session) count(command string, outcome Outcome) {

	// Unknown command names are client controlled and
	// must not create new label values.
	if (outcome == OutcomeUnknownCommand) || (outcome == OutcomeMalformed) || (outcome == OutcomeDuplicateTag) {
		command = "-"
	}

	s.metrics.Commands.With("command", command, "outcome", outcome.String()).Add(1)
}
