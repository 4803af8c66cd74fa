// Package config reads the application settings from .env files and the
// environment.
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	if err := cfg.Validate(config.HostWeb); err != nil {
//		return err
//	}
package config
