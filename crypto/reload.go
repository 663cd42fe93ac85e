package crypto

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"crypto/tls"

	"github.com/fsnotify/fsnotify"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Structs

// CertReloader holds the certificate handed out to TLS
// handshakes and replaces it whenever the files it was
// loaded from change on disk.
type CertReloader struct {
	lock     sync.RWMutex
	logger   log.Logger
	certPath string
	keyPath  string
	cert     *tls.Certificate
}

// Functions

// NewCertReloader loads the key pair once and returns a
// reloader serving it. Call Watch to follow file changes.
func NewCertReloader(logger log.Logger, certPath string, keyPath string) (*CertReloader, error) {

	r := &CertReloader{
		logger:   logger,
		certPath: filepath.Clean(certPath),
		keyPath:  filepath.Clean(keyPath),
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// Reload reads certificate and key from disk again. The
// previous certificate stays active if loading fails.
func (r *CertReloader) Reload() error {

	cert, err := tls.LoadX509KeyPair(r.certPath, r.keyPath)
	if err != nil {
		return fmt.Errorf("failed to load TLS cert and key: %v", err)
	}

	r.lock.Lock()
	r.cert = &cert
	r.lock.Unlock()

	return nil
}

// GetCertificate satisfies tls.Config.GetCertificate.
func (r *CertReloader) GetCertificate(_ *tls.ClientHelloInfo) (*tls.Certificate, error) {

	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.cert, nil
}

// Watch reloads the key pair on every change to one of
// its files until ctx is done. The containing directories
// are watched so that files replaced by rename are seen.
func (r *CertReloader) Watch(ctx context.Context) error {

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %v", err)
	}
	defer watcher.Close()

	dirs := map[string]struct{}{
		filepath.Dir(r.certPath): {},
		filepath.Dir(r.keyPath):  {},
	}

	for dir := range dirs {

		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch '%s': %v", dir, err)
		}
	}

	level.Debug(r.logger).Log(
		"msg", "watching TLS key pair",
		"cert", r.certPath,
		"key", r.keyPath,
	)

	for {

		select {

		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:

			if !ok {
				return nil
			}

			if !r.concerns(event) {
				continue
			}

			if err := r.Reload(); err != nil {

				// Certificate and key are often replaced one
				// after the other, the next event retries.
				level.Debug(r.logger).Log(
					"msg", "TLS key pair not reloadable yet",
					"file", event.Name,
					"err", err,
				)

				continue
			}

			level.Info(r.logger).Log("msg", "reloaded TLS key pair", "file", event.Name)

		case err, ok := <-watcher.Errors:

			if !ok {
				return nil
			}

			level.Warn(r.logger).Log("msg", "file watcher reported an error", "err", err)
		}
	}
}

func (r *CertReloader) concerns(event fsnotify.Event) bool {

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Clean(event.Name)

	return (name == r.certPath) || (name == r.keyPath)
}
