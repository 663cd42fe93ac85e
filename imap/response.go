package imap

import (
	"strings"
)

// Constants

// Status words used in response lines.
const (
	StatusOK  Status = "OK"
	StatusNO  Status = "NO"
	StatusBAD Status = "BAD"
	StatusBYE Status = "BYE"
)

// UntaggedTag is the tag of all responses that do not
// complete a client request.
const UntaggedTag = "*"

// Structs

// Status is the condition word of a status response.
type Status string

// Response is one line sent to the client. An empty Status
// denotes untagged data such as '* CAPABILITY ...'.
type Response struct {
	Tag    string
	Status Status
	Text   string
}

// Functions

// Tagged builds a response completing the request tag.
func Tagged(tag string, status Status, text string) Response {

	if tag == "" {
		tag = UntaggedTag
	}

	return Response{
		Tag:    tag,
		Status: status,
		Text:   text,
	}
}

// Untagged builds an untagged data response.
func Untagged(text string) Response {

	return Response{
		Tag:  UntaggedTag,
		Text: text,
	}
}

// UntaggedStatus builds an untagged status response.
func UntaggedStatus(status Status, text string) Response {
	return Tagged(UntaggedTag, status, text)
}

// String renders r without the line terminator.
func (r Response) String() string {

	var b strings.Builder

	tag := r.Tag
	if tag == "" {
		tag = UntaggedTag
	}

	b.WriteString(tag)

	if r.Status != "" {
		b.WriteByte(' ')
		b.WriteString(string(r.Status))
	}

	if r.Text != "" {
		b.WriteByte(' ')
		b.WriteString(r.Text)
	}

	return b.String()
}

// Encode renders r including the CRLF terminator. Any CR or
// LF inside the text is dropped so a response can never
// inject an additional line.
func (r Response) Encode() []byte {

	line := strings.Map(func(c rune) rune {
		if (c == '\r') || (c == '\n') {
			return -1
		}
		return c
	}, r.String())

	return []byte(line + "\r\n")
}
