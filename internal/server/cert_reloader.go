package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"jobapplicator/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// CertReloader serves the server key pair and reloads it when the files
// change on disk. A failed reload keeps the previous pair.
type CertReloader struct {
	certFile string
	keyFile  string
	debounce time.Duration
	logger   *errors.Logger

	mu   sync.RWMutex
	cert *tls.Certificate
}

// NewCertReloader loads the key pair once; debounce defaults to one second.
func NewCertReloader(certFile, keyFile string, debounce time.Duration, logger *errors.Logger) (*CertReloader, error) {
	if debounce <= 0 {
		debounce = time.Second
	}
	cr := &CertReloader{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		debounce: debounce,
		logger:   logger,
	}
	if err := cr.Reload(); err != nil {
		return nil, err
	}
	return cr, nil
}

// Reload reads the key pair from disk.
func (cr *CertReloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(cr.certFile, cr.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load server cert/key from files: %w", err)
	}
	cr.mu.Lock()
	cr.cert = &cert
	cr.mu.Unlock()
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (cr *CertReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()
	return cr.cert, nil
}

// Run watches the certificate directories until ctx is done.
func (cr *CertReloader) Run(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cr.logger.LogError(err, "Failed to create certificate file watcher")
		return
	}
	defer func() { _ = watcher.Close() }()

	// Secret mounts and editors replace files by rename, so watch directories
	watched := map[string]bool{cr.certFile: true, cr.keyFile: true}
	for _, dir := range []string{filepath.Dir(cr.certFile), filepath.Dir(cr.keyFile)} {
		if err := watcher.Add(dir); err != nil {
			cr.logger.Warn("Failed to watch certificate directory", "directory", dir, "error", err)
		}
	}
	cr.logger.Info("Certificate file watcher started",
		"cert_file", cr.certFile,
		"key_file", cr.keyFile,
		"debounce_delay", cr.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(cr.debounce)
			timerC = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			cr.logger.Warn("Certificate file watcher error", "error", err)
		case <-timerC:
			timerC = nil
			if err := cr.Reload(); err != nil {
				cr.logger.LogError(err, "Failed to reload TLS certificates, keeping previous pair")
				continue
			}
			cr.logger.Info("TLS certificates reloaded successfully")
		}
	}
}
