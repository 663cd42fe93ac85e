/*
Command evaluation probes a running charon or any other IMAP server. It repeatedly connects,
optionally upgrades the connection via STARTTLS, logs in and out again, and reports how long
each of these steps took. Results are meant to compare setups against each other.
*/
package main
