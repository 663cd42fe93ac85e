package main

import (
	"os"
	"testing"

	"path/filepath"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Functions

func TestLoadConfig(t *testing.T) {

	dir := t.TempDir()
	configFile := filepath.Join(dir, "charon.toml")

	require.Nil(t, os.WriteFile(configFile, []byte("[Server]\nListenAddr = \"127.0.0.1:1143\"\n"), 0644))

	for _, name := range []string{"CHARON_LISTEN_ADDR", "CHARON_TLS_CERT", "CHARON_TLS_KEY"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	conf, err := loadConfig(configFile, filepath.Join(dir, "missing.env"))
	require.Nil(t, err)
	assert.Equal(t, "127.0.0.1:1143", conf.Server.ListenAddr)

	t.Setenv("CHARON_LISTEN_ADDR", "127.0.0.1:2143")

	conf, err = loadConfig(configFile, "")
	require.Nil(t, err)
	assert.Equal(t, "127.0.0.1:2143", conf.Server.ListenAddr)

	_, err = loadConfig(filepath.Join(dir, "missing.toml"), "")
	assert.NotNil(t, err)
}

func TestInitTLS(t *testing.T) {

	dir := t.TempDir()
	configFile := filepath.Join(dir, "charon.toml")

	require.Nil(t, os.WriteFile(configFile, []byte("[TLS]\nEnabled = true\nCertLoc = \"cert.pem\"\nKeyLoc = \"key.pem\"\n"), 0644))

	for _, name := range []string{"CHARON_LISTEN_ADDR", "CHARON_TLS_CERT", "CHARON_TLS_KEY"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	conf, err := loadConfig(configFile, "")
	require.Nil(t, err)

	// The key pair does not exist yet.
	_, _, err = initTLS(log.NewNopLogger(), conf, false)
	assert.NotNil(t, err)

	tlsConfig, reloader, err := initTLS(log.NewNopLogger(), conf, true)
	require.Nil(t, err)
	assert.NotNil(t, tlsConfig)
	assert.Nil(t, reloader)
	assert.FileExists(t, filepath.Join(dir, "cert.pem"))

	conf.TLS.Watch = true

	tlsConfig, reloader, err = initTLS(log.NewNopLogger(), conf, false)
	require.Nil(t, err)
	assert.NotNil(t, tlsConfig.GetCertificate)
	assert.NotNil(t, reloader)

	conf.TLS.Enabled = false

	tlsConfig, _, err = initTLS(log.NewNopLogger(), conf, false)
	require.Nil(t, err)
	assert.Nil(t, tlsConfig)
}
