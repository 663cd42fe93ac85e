package imap

import (
	"strings"
)

// Constants

// Session states as single bits so that a command descriptor
// can list all states it is legal in as one mask.
const (
	StateNotAuthenticated State = 1 << iota
	StateAuthenticated
	StateSelected
	StateLogout
)

// StateAny is the mask covering every session state.
const StateAny = StateNotAuthenticated | StateAuthenticated | StateSelected | StateLogout

// Structs

// State is either exactly one session state or, when used
// in a Command, a mask of states.
type State uint8

// Functions

// Has reports whether all bits of other are set in s.
func (s State) Has(other State) bool {
	return other != 0 && s&other == other
}

// String returns the lower-case RFC 3501 name of a state.
// Masks are rendered as their member names joined by '|'.
func (s State) String() string {

	switch s {
	case StateNotAuthenticated:
		return "not authenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateSelected:
		return "selected"
	case StateLogout:
		return "logout"
	case 0:
		return "none"
	}

	names := make([]string, 0, 4)
	for _, single := range []State{StateNotAuthenticated, StateAuthenticated, StateSelected, StateLogout} {
		if s&single != 0 {
			names = append(names, single.String())
		}
	}

	if len(names) == 0 {
		return "unknown"
	}

	return strings.Join(names, "|")
}
