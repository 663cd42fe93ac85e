package imap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Functions

// TestDefaultRegistry checks the baseline command set.
func TestDefaultRegistry(t *testing.T) {

	r := DefaultRegistry()

	assert.Equal(t, []string{"AUTHENTICATE", "CAPABILITY", "LOGIN", "LOGOUT", "NOOP", "STARTTLS"}, r.Names())

	tests := []struct {
		name    string
		allowed State
		maxArgs int
		handler bool
	}{
		{"capability", StateAny, 0, true},
		{"Noop", StateAny, 0, false},
		{"LOGOUT", StateAny, 0, true},
		{"starttls", StateNotAuthenticated, 0, true},
		{"authenticate", StateNotAuthenticated, 1, true},
		{"login", StateNotAuthenticated, 2, true},
	}

	for _, tt := range tests {

		cmd, found := r.Lookup(tt.name)
		if !found {
			t.Fatalf("[imap.TestDefaultRegistry] Expected command '%s' to be registered", tt.name)
		}

		assert.Equal(t, tt.allowed, cmd.AllowedStates, tt.name)
		assert.Equal(t, tt.maxArgs, cmd.MaxArgs, tt.name)
		assert.Equal(t, tt.handler, cmd.Handler != nil, tt.name)
	}
}

// TestRegistryRegister checks name canonicalisation and
// replacement of existing entries.
func TestRegistryRegister(t *testing.T) {

	r := NewRegistry()
	assert.Empty(t, r.Names())

	r.Register(Command{Name: "select", AllowedStates: StateAuthenticated | StateSelected, MaxArgs: 1})

	cmd, found := r.Lookup("SeLeCt")
	assert.True(t, found)
	assert.Equal(t, "SELECT", cmd.Name)
	assert.Nil(t, cmd.Handler)

	r.HandleFunc("SELECT", StateAuthenticated, 2, func(ctx context.Context, s *Session, tag string, args []string) error {
		return nil
	})

	cmd, _ = r.Lookup("select")
	assert.Equal(t, StateAuthenticated, cmd.AllowedStates)
	assert.Equal(t, 2, cmd.MaxArgs)
	assert.NotNil(t, cmd.Handler)
	assert.Equal(t, []string{"SELECT"}, r.Names())

	_, found = r.Lookup("EXAMINE")
	assert.False(t, found)
}

// TestRegistryClone checks that clones are independent.
func TestRegistryClone(t *testing.T) {

	r := DefaultRegistry()
	c := r.Clone()

	c.Register(Command{Name: "NOOP", AllowedStates: StateSelected})
	c.Register(Command{Name: "IDLE", AllowedStates: StateSelected})

	cmd, _ := r.Lookup("NOOP")
	assert.Equal(t, StateAny, cmd.AllowedStates)

	_, found := r.Lookup("IDLE")
	assert.False(t, found)

	assert.Len(t, c.Names(), 7)
	assert.Len(t, r.Names(), 6)
}

// TestTagTracker checks observing and releasing tags.
func TestTagTracker(t *testing.T) {

	tags := NewTagTracker()

	assert.False(t, tags.Observe("a1"))
	assert.True(t, tags.Observe("a1"))
	assert.False(t, tags.Observe("A1"), "tags are case sensitive")
	assert.Equal(t, 2, tags.Len())

	tags.Release("a1")
	assert.Equal(t, 1, tags.Len())
	assert.False(t, tags.Observe("a1"))

	tags.Release("never-seen")
	assert.Equal(t, 2, tags.Len())
}

// TestState checks state masks and their names.
func TestState(t *testing.T) {

	assert.True(t, StateAny.Has(StateLogout))
	assert.True(t, (StateAuthenticated | StateSelected).Has(StateSelected))
	assert.False(t, (StateAuthenticated | StateSelected).Has(StateNotAuthenticated))
	assert.False(t, StateAny.Has(0))
	assert.False(t, State(0).Has(StateAuthenticated))

	assert.Equal(t, "not authenticated", StateNotAuthenticated.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "selected", StateSelected.String())
	assert.Equal(t, "logout", StateLogout.String())
	assert.Equal(t, "none", State(0).String())
	assert.Equal(t, "authenticated|selected", (StateAuthenticated | StateSelected).String())
	assert.Equal(t, "unknown", State(64).String())
}

// TestParseRequest checks tokenisation of command lines.
func TestParseRequest(t *testing.T) {

	req, ok := ParseRequest("a1 login smith sesame")
	assert.True(t, ok)
	assert.Equal(t, &Request{Tag: "a1", RawCommand: "login", Command: "LOGIN", Args: []string{"smith", "sesame"}}, req)

	req, ok = ParseRequest("a2 NOOP")
	assert.True(t, ok)
	assert.Empty(t, req.Args)

	req, ok = ParseRequest("a3 NOOP ")
	assert.True(t, ok)
	assert.Equal(t, []string{""}, req.Args)

	for _, line := range []string{"", "a4", "a4 ", " a4", "  ", "* NOOP", "* CAPABILITY x"} {
		_, ok = ParseRequest(line)
		assert.False(t, ok, "line %q", line)
	}
}
