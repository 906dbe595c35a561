// Package validation checks client configuration before it is turned into a
// config bag.
//
// It supports struct tag validation (using the validator library) and
// programmatic checks with error collection. Both report failures as
// CONFIGURATION errors listing every offending field.
//
// # Struct Tag Validation
//
//	type RetryConfig struct {
//	    Mode        string `mapstructure:"mode" validate:"omitempty,oneof=standard adaptive off"`
//	    MaxAttempts int    `mapstructure:"max_attempts" validate:"gte=0"`
//	}
//	err := validation.Struct(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.NonNegative("timeouts.connect", cfg.Connect)
//	err := v.Err()
package validation
