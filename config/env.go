package config

import (
	"fmt"
	"os"

	"path/filepath"

	"github.com/joho/godotenv"
)

// Structs

// Env holds information specific to the
// system where charon is deployed. This
// enables host adaptions without needing
// to maintain two different config files.
type Env struct {
	ListenAddr string
	CertLoc    string
	KeyLoc     string
}

// Functions

// LoadEnv reads in the optional .env file at
// envFile and collects all CHARON_ prefixed
// variables. Variables already present in the
// process environment take precedence over
// the file. An empty envFile skips the file.
func LoadEnv(envFile string) (*Env, error) {

	if envFile != "" {

		err := godotenv.Load(envFile)
		if (err != nil) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("[config.LoadEnv] Failed to read in .env file with: %v", err)
		}
	}

	env := &Env{
		ListenAddr: os.Getenv("CHARON_LISTEN_ADDR"),
		CertLoc:    os.Getenv("CHARON_TLS_CERT"),
		KeyLoc:     os.Getenv("CHARON_TLS_KEY"),
	}

	return env, nil
}

// Apply overrides values of conf with all values
// set in env. Supplying both certificate and key
// enables TLS.
func (env *Env) Apply(conf *Config) error {

	if env.ListenAddr != "" {
		conf.Server.ListenAddr = env.ListenAddr
	}

	if (env.CertLoc == "") != (env.KeyLoc == "") {
		return fmt.Errorf("CHARON_TLS_CERT and CHARON_TLS_KEY have to be set together")
	}

	if env.CertLoc != "" {

		certLoc, err := filepath.Abs(env.CertLoc)
		if err != nil {
			return fmt.Errorf("could not get absolute path of CHARON_TLS_CERT: %v", err)
		}

		keyLoc, err := filepath.Abs(env.KeyLoc)
		if err != nil {
			return fmt.Errorf("could not get absolute path of CHARON_TLS_KEY: %v", err)
		}

		conf.TLS.Enabled = true
		conf.TLS.CertLoc = certLoc
		conf.TLS.KeyLoc = keyLoc
	}

	return nil
}
