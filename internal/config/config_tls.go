package config

import "fmt"

// ValidateTLSConfig validates the TLS configuration
func (c *Config) ValidateTLSConfig() error {
	tls := c.Server.TLS

	switch tls.Mode {
	case "disabled", "":
		return nil
	case "server":
		if tls.CertFile == "" || tls.KeyFile == "" {
			return fmt.Errorf("TLS certFile and keyFile are required for server mode")
		}
	case "mutual":
		if tls.CertFile == "" || tls.KeyFile == "" {
			return fmt.Errorf("TLS certFile and keyFile are required for mutual mode")
		}
		if tls.CAFile == "" {
			return fmt.Errorf("caFile is required for mutual TLS mode")
		}
		switch tls.ClientAuthPolicy {
		case "require", "request", "verify", "":
		default:
			return fmt.Errorf("invalid clientAuthPolicy: %s (must be 'require', 'request', or 'verify')", tls.ClientAuthPolicy)
		}
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", tls.Mode)
	}

	switch tls.MinVersion {
	case "", "1.2", "1.3":
		return nil
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}
}
