/*
Package crypto provides the TLS material for charon's STARTTLS upgrades. Other than building
strict TLS configurations from certificate and key files, it can generate self-signed pairs for
tests and first start-ups and watch certificate files to swap in renewed certificates without
restarting the server.
*/
package crypto
