package httpclient

import (
	"fmt"
	"time"

	"github.com/kbukum/sdkcore/connector"
)

const (
	defaultIdleConnTimeout     = 90 * time.Second
	defaultMaxIdleConnsPerHost = 16
)

// Config configures the HTTP connection.
type Config struct {
	// Connector configures dialing, TLS and proxies.
	Connector connector.Config `yaml:"connector" mapstructure:"connector"`

	// ReadTimeout bounds the wait for response headers. Zero disables it.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`

	// IdleConnTimeout closes pooled connections idle for longer. Defaults to 90s.
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout" mapstructure:"idle_conn_timeout"`

	// MaxIdleConnsPerHost caps the pool per host. Defaults to 16.
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`

	// Headers are added to every request that does not already set them.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	c.Connector.ApplyDefaults()
	if c.IdleConnTimeout <= 0 {
		c.IdleConnTimeout = defaultIdleConnTimeout
	}
	if c.MaxIdleConnsPerHost <= 0 {
		c.MaxIdleConnsPerHost = defaultMaxIdleConnsPerHost
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ReadTimeout < 0 {
		return fmt.Errorf("httpclient: read_timeout must not be negative")
	}
	if c.Connector.ConnectTimeout < 0 {
		return fmt.Errorf("httpclient: connect_timeout must not be negative")
	}
	if err := c.Connector.TLS.Validate(); err != nil {
		return err
	}
	return nil
}
