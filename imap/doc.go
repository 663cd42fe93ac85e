/*
Package imap implements the session engine of charon: a line-oriented, tag-based request and
response protocol following IMAP's command grammar. Clients send '<tag> <COMMAND> [args...]'
terminated by CRLF, the server answers with tagged or untagged status lines.

A Session owns everything belonging to one connection: the strict CRLF line framer, the set
of tags the client already used, its own copy of the command registry, the current state
(not authenticated, authenticated, selected, logout) and the transport it talks over. The
dispatcher only gates commands by state and argument count, transitions between states are
performed by command handlers.

Command handlers return an error only when communication with the client broke down or the
connection is otherwise unusable, for example after a failed STARTTLS handshake. Protocol
level problems such as wrong credentials are answered with NO or BAD and handlers return nil
because communication went according to plan.

Please refer to https://tools.ietf.org/html/rfc3501#section-3 for full documentation
on the states and https://tools.ietf.org/html/rfc3501 for the full IMAP v4 rev1 RFC.
*/
package imap
