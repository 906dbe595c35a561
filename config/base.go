package config

import (
	"fmt"

	"github.com/kbukum/sdkcore/logger"
)

// BaseConfig holds the fields every client configuration carries. Embed it
// with `mapstructure:",squash"` to keep its keys at the top level.
type BaseConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// ApplyDefaults applies default values to base configuration.
func (c *BaseConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
}

// Validate validates base configuration.
func (c *BaseConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("environment must be one of [development, staging, production] (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Defaulter is implemented by configs that fill in unset fields.
type Defaulter interface {
	ApplyDefaults()
}

// Validator is implemented by configs that check themselves.
type Validator interface {
	Validate() error
}

// Load loads configuration for name into a new T, then applies defaults and
// validates it when *T implements Defaulter or Validator.
func Load[T any](name string, opts ...LoaderOption) (*T, error) {
	cfg := new(T)
	if err := LoadConfig(name, cfg, opts...); err != nil {
		return nil, err
	}
	if d, ok := any(cfg).(Defaulter); ok {
		d.ApplyDefaults()
	}
	if v, ok := any(cfg).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
