package imap

import (
	"context"
	"sort"
	"strings"
)

// Interfaces

// Handler implements one command. It is called with the
// request tag and the argument tokens after all dispatcher
// checks passed and owns the tagged completion of the
// command, including any state transition. A returned
// error is treated as fatal for the session.
type Handler interface {
	Handle(ctx context.Context, s *Session, tag string, args []string) error
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(ctx context.Context, s *Session, tag string, args []string) error

// Structs

// Command describes a registered command: the states it
// may run in, how many arguments it accepts at most and
// an optional handler. Commands without handler are
// answered with '<tag> OK <NAME>'.
type Command struct {
	Name          string
	AllowedStates State
	MaxArgs       int
	Handler       Handler
}

// Registry maps canonical command names to their
// descriptors. A registry is not safe for concurrent
// mutation; every session works on its own clone.
type Registry struct {
	commands map[string]Command
}

// Functions

// Handle calls f(ctx, s, tag, args).
func (f HandlerFunc) Handle(ctx context.Context, s *Session, tag string, args []string) error {
	return f(ctx, s, tag, args)
}

// NewRegistry returns a registry without any command.
func NewRegistry() *Registry {

	return &Registry{
		commands: make(map[string]Command),
	}
}

// DefaultRegistry returns a freshly built registry holding
// the baseline command set every session starts with.
func DefaultRegistry() *Registry {

	r := NewRegistry()

	r.Register(Command{Name: "CAPABILITY", AllowedStates: StateAny, MaxArgs: 0, Handler: HandlerFunc(Capability)})
	r.Register(Command{Name: "NOOP", AllowedStates: StateAny, MaxArgs: 0})
	r.Register(Command{Name: "LOGOUT", AllowedStates: StateAny, MaxArgs: 0, Handler: HandlerFunc(Logout)})
	r.Register(Command{Name: "STARTTLS", AllowedStates: StateNotAuthenticated, MaxArgs: 0, Handler: HandlerFunc(StartTLS)})
	r.Register(Command{Name: "AUTHENTICATE", AllowedStates: StateNotAuthenticated, MaxArgs: 1, Handler: HandlerFunc(Authenticate)})
	r.Register(Command{Name: "LOGIN", AllowedStates: StateNotAuthenticated, MaxArgs: 2, Handler: HandlerFunc(Login)})

	return r
}

// Register adds cmd under its upper-cased name, replacing
// any command registered under that name before.
func (r *Registry) Register(cmd Command) {

	cmd.Name = strings.ToUpper(cmd.Name)
	r.commands[cmd.Name] = cmd
}

// HandleFunc is a shorthand for registering a function.
func (r *Registry) HandleFunc(name string, allowed State, maxArgs int, f HandlerFunc) {

	r.Register(Command{
		Name:          name,
		AllowedStates: allowed,
		MaxArgs:       maxArgs,
		Handler:       f,
	})
}

// Lookup finds the command registered under name,
// regardless of its case.
func (r *Registry) Lookup(name string) (Command, bool) {

	cmd, found := r.commands[strings.ToUpper(name)]
	return cmd, found
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {

	c := &Registry{
		commands: make(map[string]Command, len(r.commands)),
	}

	for name, cmd := range r.commands {
		c.commands[name] = cmd
	}

	return c
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
