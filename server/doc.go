/*
Package server accepts client connections for charon and runs one IMAP session per
connection. The connection handling is expressed as a Service that can be wrapped by
logging and metrics middlewares.
*/
package server
