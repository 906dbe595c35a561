// Package config loads client configuration from YAML files, .env files and
// the process environment.
//
// It uses Viper to read the file and godotenv to load .env files, then binds
// every environment variable under several nested key spellings so that
// SDK_RETRY_MAX_ATTEMPTS can override retry.max_attempts.
//
// # Usage
//
//	var cfg sdk.Config
//	err := config.LoadConfig("billing", &cfg, config.WithEnvPrefix("SDK"))
//
// Load combines loading with ApplyDefaults and Validate for config types
// that implement them.
package config
