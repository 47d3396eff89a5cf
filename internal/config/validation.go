package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for consistency. Called by Load before
// the config is handed to the application; a failed validation aborts
// startup.
func (c *Config) Validate() error {
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.CompletionRateLimit <= 0 {
		return fmt.Errorf("%w: %v (must be positive)", ErrInvalidRateLimit, c.CompletionRateLimit)
	}
	return nil
}

func (c *Config) validateModels() error {
	if len(c.Models) == 0 {
		return ErrNoModels
	}
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("%w: empty name (provider %q)", ErrInvalidModelName, m.Provider)
		}
		if m.Provider != ProviderLocal && m.Provider != ProviderHosted {
			return fmt.Errorf("%w: model %q has provider %q (want %q or %q)",
				ErrInvalidModelProvider, m.Name, m.Provider, ProviderLocal, ProviderHosted)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.UsePostgres() {
		return nil
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
}
