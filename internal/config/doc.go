// Package config loads modectl configuration with Viper.
//
// The configuration lives at ~/.modectl/config.yaml and is created with defaults
// on first use. Every key can be overridden from the environment with the MODECTL_
// prefix, nested keys joined by underscores:
//
//   - MODECTL_SERVER_ADDR=0.0.0.0:7890
//   - MODECTL_LIFECYCLE_HOOK_TIMEOUT=10s
//   - MODECTL_CATALOG_API_CONSTRAINT=^1.2
//   - MODECTL_LOGGING_LEVEL=debug
//
// Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
package config
