package security

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

// TLSConfig describes the trust store and client identity used for outgoing
// TLS connections. The zero value means "system roots, no client cert".
type TLSConfig struct {
	// SkipVerify disables server certificate verification.
	// Not recommended for production.
	SkipVerify bool `yaml:"skip_verify" mapstructure:"skip_verify"`

	// CAFile is a PEM bundle of trusted roots replacing the system pool.
	CAFile string `yaml:"ca_file" mapstructure:"ca_file"`

	// CAPEM is an inline PEM bundle, appended to the roots from CAFile.
	CAPEM string `yaml:"ca_pem" mapstructure:"ca_pem"`

	// CertFile is the path to the client TLS certificate file (for mTLS).
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`

	// KeyFile is the path to the client TLS key file (for mTLS).
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`

	// ServerName overrides the server name used for certificate verification.
	ServerName string `yaml:"server_name" mapstructure:"server_name"`

	// MinVersion is "1.2" or "1.3". Defaults to 1.2.
	MinVersion string `yaml:"min_version" mapstructure:"min_version" validate:"omitempty,oneof=1.2 1.3"`
}

// ParseVersion converts "1.2" or "1.3" to a crypto/tls version constant.
func ParseVersion(v string) (uint16, error) {
	switch strings.TrimPrefix(strings.TrimSpace(v), "TLS") {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("security: unsupported TLS min_version %q", v)
	}
}

// DefaultClientConfig returns the client config used when no TLS settings
// are configured.
func DefaultClientConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

// Build creates a *tls.Config from the configuration.
// Returns nil if no TLS settings are configured; callers then use a shared
// default config.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if !c.IsEnabled() {
		return nil, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	minVersion, err := ParseVersion(c.MinVersion)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		InsecureSkipVerify: c.SkipVerify,
		ServerName:         c.ServerName,
		MinVersion:         minVersion,
	}
	if err := c.loadRoots(cfg); err != nil {
		return nil, err
	}
	if err := c.loadClientCert(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the TLS configuration is consistent.
func (c *TLSConfig) Validate() error {
	if c == nil {
		return nil
	}
	if (c.CertFile != "") != (c.KeyFile != "") {
		return fmt.Errorf("security: both cert_file and key_file must be provided together")
	}
	if _, err := ParseVersion(c.MinVersion); err != nil {
		return err
	}
	return nil
}

// IsEnabled reports whether any setting differs from the default client
// config.
func (c *TLSConfig) IsEnabled() bool {
	if c == nil {
		return false
	}
	return c.SkipVerify || c.CAFile != "" || c.CAPEM != "" || c.CertFile != "" ||
		c.ServerName != "" || (c.MinVersion != "" && c.MinVersion != "1.2")
}

func (c *TLSConfig) loadRoots(cfg *tls.Config) error {
	if c.CAFile == "" && c.CAPEM == "" {
		return nil
	}
	pool := x509.NewCertPool()
	if c.CAFile != "" {
		ca, err := os.ReadFile(c.CAFile)
		if err != nil {
			return fmt.Errorf("security: failed to read CA file: %w", err)
		}
		if !pool.AppendCertsFromPEM(ca) {
			return fmt.Errorf("security: no certificates found in CA file %s", c.CAFile)
		}
	}
	if c.CAPEM != "" && !pool.AppendCertsFromPEM([]byte(c.CAPEM)) {
		return fmt.Errorf("security: no certificates found in inline CA PEM")
	}
	cfg.RootCAs = pool
	return nil
}

func (c *TLSConfig) loadClientCert(cfg *tls.Config) error {
	if c.CertFile == "" || c.KeyFile == "" {
		return nil
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return fmt.Errorf("security: failed to load client certificate: %w", err)
	}
	cfg.Certificates = []tls.Certificate{cert}
	return nil
}
