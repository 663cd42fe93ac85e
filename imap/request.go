package imap

import (
	"strings"
)

// Structs

// Request represents the parsed content of a client
// command line. Command is upper-cased, Args holds every
// token after the command in order.
type Request struct {
	Tag        string
	RawCommand string
	Command    string
	Args       []string
}

// Functions

// ParseRequest splits a received line on every single
// space character. It reports false if the line does not
// carry at least a non-empty tag and a non-empty command,
// or if the tag is '*', which marks untagged responses.
// Consecutive spaces produce empty argument tokens that
// count against a command's argument limit.
func ParseRequest(line string) (*Request, bool) {

	tokens := strings.Split(line, " ")

	// There exists no command line with less
	// than a tag and a command token.
	if (len(tokens) < 2) || (tokens[0] == "") || (tokens[0] == UntaggedTag) || (tokens[1] == "") {
		return nil, false
	}

	return &Request{
		Tag:        tokens[0],
		RawCommand: tokens[1],
		Command:    strings.ToUpper(tokens[1]),
		Args:       tokens[2:],
	}, true
}
