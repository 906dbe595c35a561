package sdk

import (
	"time"

	"github.com/kbukum/sdkcore/checksum"
	"github.com/kbukum/sdkcore/config"
	"github.com/kbukum/sdkcore/connector"
	"github.com/kbukum/sdkcore/retries"
	"github.com/kbukum/sdkcore/security"
	"github.com/kbukum/sdkcore/throughput"
	"github.com/kbukum/sdkcore/validation"
)

// DefaultName names clients whose config leaves name empty.
const DefaultName = "sdk"

// Config is the file and environment form of a client.
type Config struct {
	config.BaseConfig `yaml:",inline" mapstructure:",squash"`

	// Endpoint is the base URL requests are sent to.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Headers are added to every request that does not already set them.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	Retry         retries.Config        `yaml:"retry" mapstructure:"retry"`
	Timeouts      TimeoutConfig         `yaml:"timeouts" mapstructure:"timeouts"`
	StalledStream throughput.Config     `yaml:"stalled_stream" mapstructure:"stalled_stream"`
	Proxy         connector.ProxyConfig `yaml:"proxy" mapstructure:"proxy"`
	TLS           *security.TLSConfig   `yaml:"tls" mapstructure:"tls"`
	Checksum      checksum.Config       `yaml:"checksum" mapstructure:"checksum"`
}

// TimeoutConfig bounds connecting, waiting for headers, each attempt and the
// whole operation. Zero disables a timeout, except Connect which defaults.
type TimeoutConfig struct {
	Connect          time.Duration `yaml:"connect" mapstructure:"connect" validate:"gte=0"`
	Read             time.Duration `yaml:"read" mapstructure:"read" validate:"gte=0"`
	Operation        time.Duration `yaml:"operation" mapstructure:"operation" validate:"gte=0"`
	OperationAttempt time.Duration `yaml:"operation_attempt" mapstructure:"operation_attempt" validate:"gte=0"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	c.BaseConfig.ApplyDefaults()
	c.Retry.ApplyDefaults()
	if c.StalledStream.Enabled {
		c.StalledStream.ApplyDefaults()
	}
	if c.Timeouts.Connect == 0 {
		conn := connector.Config{}
		conn.ApplyDefaults()
		c.Timeouts.Connect = conn.ConnectTimeout
	}
}

// Validate checks every section and reports all problems at once as a
// CONFIGURATION error.
func (c *Config) Validate() error {
	v := validation.New()
	v.Merge("", validation.Struct(c))
	v.Merge("config", c.BaseConfig.Validate())
	v.URL("endpoint", c.Endpoint)
	v.Merge("tls", c.TLS.Validate())
	if c.Timeouts.Operation > 0 && c.Timeouts.OperationAttempt > c.Timeouts.Operation {
		v.AddError("timeouts.operation_attempt", "must not exceed timeouts.operation")
	}
	if c.Retry.MaxBackoff > 0 && c.Retry.InitialBackoff > c.Retry.MaxBackoff {
		v.AddError("retry.initial_backoff", "must not exceed retry.max_backoff")
	}
	return v.Err()
}

// Load reads a Config for name through config.LoadConfig, then applies
// defaults and validates it. Environment variables prefixed with SDK_
// override file values, for example SDK_RETRY_MAX_ATTEMPTS.
func Load(name string, opts ...config.LoaderOption) (*Config, error) {
	opts = append([]config.LoaderOption{config.WithEnvPrefix("SDK")}, opts...)
	return config.Load[Config](name, opts...)
}
