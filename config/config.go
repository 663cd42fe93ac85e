package config

import (
	"fmt"
	"time"

	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
)

// Constants

// Defaults applied to values left empty in the
// config file.
const (
	DefaultListenAddr       = "127.0.0.1:1143"
	DefaultMaxLineLength    = "64KiB"
	DefaultHandshakeTimeout = "30s"
	DefaultAuthSeparator    = ":"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	IMAP   IMAP
	Server Server
	TLS    TLS
	Auth   Auth
}

// IMAP is the protocol related part
// of the TOML config file.
type IMAP struct {
	Greeting         string
	MaxLineLength    string
	HandshakeTimeout string

	// Parsed forms of the above.
	MaxLineBytes     int           `toml:"-"`
	HandshakeTimeLim time.Duration `toml:"-"`
}

// Server describes where charon accepts
// IMAP connections and exposes metrics.
type Server struct {
	ListenAddr     string
	PrometheusAddr string
}

// TLS points to the certificate and key used
// for STARTTLS. Watch enables reloading both
// files whenever they change on disk.
type TLS struct {
	Enabled bool
	CertLoc string
	KeyLoc  string
	Watch   bool
}

// Auth selects how LOGIN credentials are checked,
// either "AcceptAll" or "AuthFile".
type Auth struct {
	Adapter   string
	File      string
	Separator string
}

// Functions

// LoadConfig takes in the path to the main config
// file of charon in TOML syntax and places the values
// from the file in the corresponding struct. Relative
// paths are resolved against the directory of the
// config file.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	meta, err := toml.DecodeFile(configFile, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read in TOML config file at '%s' with: %v", configFile, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key '%s' in config file at '%s'", undecoded[0], configFile)
	}

	absConfigFile, err := filepath.Abs(configFile)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute path of config file: %v", err)
	}

	if err := conf.complete(filepath.Dir(absConfigFile)); err != nil {
		return nil, err
	}

	return conf, nil
}

// complete fills in defaults, parses the human
// readable values and makes all paths absolute.
func (conf *Config) complete(baseDir string) error {

	if conf.Server.ListenAddr == "" {
		conf.Server.ListenAddr = DefaultListenAddr
	}

	if conf.IMAP.MaxLineLength == "" {
		conf.IMAP.MaxLineLength = DefaultMaxLineLength
	}

	if conf.IMAP.HandshakeTimeout == "" {
		conf.IMAP.HandshakeTimeout = DefaultHandshakeTimeout
	}

	maxLine, err := humanize.ParseBytes(conf.IMAP.MaxLineLength)
	if err != nil {
		return fmt.Errorf("invalid IMAP.MaxLineLength '%s': %v", conf.IMAP.MaxLineLength, err)
	}
	conf.IMAP.MaxLineBytes = int(maxLine)

	timeout, err := time.ParseDuration(conf.IMAP.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("invalid IMAP.HandshakeTimeout '%s': %v", conf.IMAP.HandshakeTimeout, err)
	}

	if timeout <= 0 {
		return fmt.Errorf("IMAP.HandshakeTimeout has to be positive, got '%s'", conf.IMAP.HandshakeTimeout)
	}
	conf.IMAP.HandshakeTimeLim = timeout

	if conf.TLS.Enabled {

		if (conf.TLS.CertLoc == "") || (conf.TLS.KeyLoc == "") {
			return fmt.Errorf("TLS is enabled but TLS.CertLoc or TLS.KeyLoc is missing")
		}

		conf.TLS.CertLoc = absolute(baseDir, conf.TLS.CertLoc)
		conf.TLS.KeyLoc = absolute(baseDir, conf.TLS.KeyLoc)
	}

	switch conf.Auth.Adapter {
	case "", "AcceptAll":
		conf.Auth.Adapter = "AcceptAll"
	case "AuthFile":

		if conf.Auth.File == "" {
			return fmt.Errorf("auth adapter 'AuthFile' requires Auth.File")
		}

		if conf.Auth.Separator == "" {
			conf.Auth.Separator = DefaultAuthSeparator
		}

		conf.Auth.File = absolute(baseDir, conf.Auth.File)
	default:
		return fmt.Errorf("unknown auth adapter '%s'", conf.Auth.Adapter)
	}

	return nil
}

func absolute(baseDir string, path string) string {

	if (path == "") || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(baseDir, path)
}
