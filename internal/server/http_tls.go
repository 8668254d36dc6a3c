package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// configureTLS sets up TLS configuration based on the mode
func (s *Server) configureTLS(httpServer *http.Server) error {
	addr := httpServer.Addr

	switch s.TLSConfig.Mode {
	case "server":
		fmt.Printf("Starting server with HTTPS (server-only TLS) on https://%s\n", addr)
		fmt.Println("TLS mode: Server-only (no client certificates required)")
	case "mutual":
		fmt.Printf("Starting server with mTLS (mutual TLS) on https://%s\n", addr)
		fmt.Println("TLS mode: Mutual (client certificates required)")
	case "disabled", "":
		fmt.Printf("Starting server on http://%s\n", addr)
		fmt.Println("TLS mode: Disabled (HTTP only)")
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", s.TLSConfig.Mode)
	}

	tlsConfig, err := s.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to set up TLS: %w", err)
	}
	httpServer.TLSConfig = tlsConfig
	return nil
}

// buildTLSConfig creates the TLS configuration
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if err := s.configureCertificates(tlsConfig); err != nil {
		return nil, err
	}

	s.configureTLSVersion(tlsConfig)

	if err := s.configureClientAuthentication(tlsConfig); err != nil {
		return nil, err
	}

	return tlsConfig, nil
}

// configureCertificates loads the server key pair, through the reloader when
// file watching is enabled.
func (s *Server) configureCertificates(tlsConfig *tls.Config) error {
	if s.TLSConfig.CertFile == "" || s.TLSConfig.KeyFile == "" {
		return fmt.Errorf("TLS certificate and key files are required")
	}

	if s.TLSConfig.WatchFiles {
		reloader, err := NewCertReloader(s.TLSConfig.CertFile, s.TLSConfig.KeyFile, 0, s.Logger)
		if err != nil {
			return err
		}
		s.CertReloader = reloader
		tlsConfig.GetCertificate = reloader.GetCertificate
		fmt.Println("TLS auto-reload: ENABLED (watching certificate files)")
		return nil
	}

	cert, err := tls.LoadX509KeyPair(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load server cert/key from files: %w", err)
	}
	tlsConfig.Certificates = []tls.Certificate{cert}
	return nil
}

// configureTLSVersion sets the minimum TLS version
func (s *Server) configureTLSVersion(tlsConfig *tls.Config) {
	switch s.TLSConfig.MinVersion {
	case "1.3":
		tlsConfig.MinVersion = tls.VersionTLS13
	default:
		tlsConfig.MinVersion = tls.VersionTLS12
	}
}

// configureClientAuthentication sets up client authentication for mutual TLS
func (s *Server) configureClientAuthentication(tlsConfig *tls.Config) error {
	if s.TLSConfig.Mode != "mutual" {
		tlsConfig.ClientAuth = tls.NoClientCert
		return nil
	}

	if s.TLSConfig.CAFile == "" {
		return fmt.Errorf("CA certificate file is required for mutual TLS mode")
	}
	caCert, err := os.ReadFile(s.TLSConfig.CAFile)
	if err != nil {
		return fmt.Errorf("failed to read CA file: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
		return fmt.Errorf("failed to append CA cert")
	}

	tlsConfig.ClientCAs = caCertPool
	tlsConfig.ClientAuth = s.getClientAuthPolicy()
	return nil
}

// getClientAuthPolicy returns the appropriate client authentication policy
func (s *Server) getClientAuthPolicy() tls.ClientAuthType {
	switch s.TLSConfig.ClientAuthPolicy {
	case "request":
		return tls.RequestClientCert
	case "verify":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert // Default for mutual TLS
	}
}
