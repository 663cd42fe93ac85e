package crypto

import (
	"fmt"

	"crypto/tls"
)

// Functions

// baseTLSConfig returns the strict defaults used for every
// TLS layer charon installs via STARTTLS.
func baseTLSConfig() *tls.Config {

	return &tls.Config{
		MinVersion:       tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{tls.X25519, tls.CurveP384, tls.CurveP256},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}
}

// NewPublicTLSConfig returns a TLS config that is to be used
// when upgrading public client connections. It loads the
// certificate and key from the supplied PEM files.
func NewPublicTLSConfig(certPath string, keyPath string) (*tls.Config, error) {

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS cert and key: %v", err)
	}

	config := baseTLSConfig()
	config.Certificates = []tls.Certificate{cert}

	return config, nil
}

// NewTLSConfigFromPEM works like NewPublicTLSConfig but
// takes the PEM encoded certificate and key directly.
func NewTLSConfigFromPEM(certPEM []byte, keyPEM []byte) (*tls.Config, error) {

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TLS cert and key: %v", err)
	}

	config := baseTLSConfig()
	config.Certificates = []tls.Certificate{cert}

	return config, nil
}

// NewReloadingTLSConfig serves whatever certificate the
// reloader currently holds.
func NewReloadingTLSConfig(reloader *CertReloader) *tls.Config {

	config := baseTLSConfig()
	config.GetCertificate = reloader.GetCertificate

	return config
}
