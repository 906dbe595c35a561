package retries

import (
	"time"

	"github.com/kbukum/sdkcore/orchestrator"
	"github.com/kbukum/sdkcore/resilience"
)

// Retry modes.
const (
	ModeStandard = "standard"
	ModeAdaptive = "adaptive"
	ModeOff      = "off"
)

// Config selects and tunes a retry strategy.
type Config struct {
	// Mode is one of standard, adaptive or off. Defaults to standard.
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=standard adaptive off"`
	// MaxAttempts counts the initial request. Defaults to 3.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gte=0"`
	// InitialBackoff is the base delay. Defaults to 1s.
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff" validate:"gte=0"`
	// MaxBackoff caps the delay. Defaults to 20s.
	MaxBackoff time.Duration `yaml:"max_backoff" mapstructure:"max_backoff" validate:"gte=0"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeStandard
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	b := resilience.DefaultBackoffConfig()
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = b.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = b.MaxBackoff
	}
}

// New builds the strategy cfg selects. Strategies hold the retry quota, so
// build one per client and share it across operations.
func New(cfg Config) orchestrator.RetryStrategy {
	cfg.ApplyDefaults()
	std := StandardOptions{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: resilience.BackoffConfig{
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BackoffFactor:  2.0,
			Jitter:         1.0,
		},
	}
	switch cfg.Mode {
	case ModeOff:
		return NeverRetry{}
	case ModeAdaptive:
		return NewAdaptive(AdaptiveOptions{StandardOptions: std})
	default:
		return NewStandard(std)
	}
}
