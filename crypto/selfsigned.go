package crypto

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"time"

	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
)

// Functions

// BootstrapCertTempl returns a certificate template that
// has all default values for our certificates already set.
func BootstrapCertTempl(nBef time.Time, nAft time.Time) (*x509.Certificate, error) {

	// For serial number generation we need a biggest
	// number to mark the range of the serial number.
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)

	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return nil, fmt.Errorf("could not generate random serial number: %v", err)
	}

	return &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{Organization: []string{"charon self-signed"}},
		NotBefore:             nBef,
		NotAfter:              nAft,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}, nil
}

// GenerateSelfSigned creates a self-signed ECDSA P-256
// certificate valid for validFor and all supplied hosts,
// which may be IP addresses or DNS names. Certificate and
// key are returned PEM encoded.
func GenerateSelfSigned(hosts []string, validFor time.Duration) ([]byte, []byte, error) {

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key: %v", err)
	}

	notBefore := time.Now().Add(-1 * time.Minute)

	template, err := BootstrapCertTempl(notBefore, notBefore.Add(validFor))
	if err != nil {
		return nil, nil, err
	}

	for _, host := range hosts {

		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if host != "" {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create DER byte representation of certificate: %v", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal private key: %v", err)
	}

	var certPEM, keyPEM bytes.Buffer

	if err := pem.Encode(&certPEM, &pem.Block{Type: "CERTIFICATE", Bytes: certDER}); err != nil {
		return nil, nil, fmt.Errorf("failed to encode certificate in PEM format: %v", err)
	}

	if err := pem.Encode(&keyPEM, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}); err != nil {
		return nil, nil, fmt.Errorf("failed to encode key in PEM format: %v", err)
	}

	return certPEM.Bytes(), keyPEM.Bytes(), nil
}

// WriteSelfSigned generates a self-signed pair with
// GenerateSelfSigned and stores it at certPath and keyPath.
// The key file is only readable by its owner.
func WriteSelfSigned(certPath string, keyPath string, hosts []string, validFor time.Duration) error {

	certPEM, keyPEM, err := GenerateSelfSigned(hosts, validFor)
	if err != nil {
		return err
	}

	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to write certificate to '%s': %v", certPath, err)
	}

	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write key to '%s': %v", keyPath, err)
	}

	return nil
}
