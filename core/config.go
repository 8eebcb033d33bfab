package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts       = 3
	DefaultSkewSeconds       = 300
	DefaultStaleAfterSeconds = 300
	DefaultDLQPerPage        = 25
)

type SigningConfig struct {
	Secret      string `koanf:"secret" mapstructure:"secret"`
	SkewSeconds int    `koanf:"skew_seconds" mapstructure:"skew_seconds"`
}

func (c SigningConfig) SkewTolerance() time.Duration {
	if c.SkewSeconds <= 0 {
		return time.Duration(DefaultSkewSeconds) * time.Second
	}
	return time.Duration(c.SkewSeconds) * time.Second
}

type RetryConfig struct {
	// MaxAttempts is per deployment, not per event type.
	MaxAttempts int `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type ClaimsConfig struct {
	// StaleAfterSeconds bounds how long a processing claim survives a
	// crashed or disconnected worker before the reaper reverts it.
	StaleAfterSeconds int `koanf:"stale_after_seconds" mapstructure:"stale_after_seconds"`
}

func (c ClaimsConfig) StaleAfter() time.Duration {
	if c.StaleAfterSeconds <= 0 {
		return time.Duration(DefaultStaleAfterSeconds) * time.Second
	}
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

type DeadLetterConfig struct {
	PerPage int `koanf:"per_page" mapstructure:"per_page"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Signing     SigningConfig    `koanf:"signing" mapstructure:"signing"`
	Retry       RetryConfig      `koanf:"retry" mapstructure:"retry"`
	Claims      ClaimsConfig     `koanf:"claims" mapstructure:"claims"`
	DeadLetter  DeadLetterConfig `koanf:"dead_letter" mapstructure:"dead_letter"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "webhooks",
		Signing: SigningConfig{
			SkewSeconds: DefaultSkewSeconds,
		},
		Retry: RetryConfig{
			MaxAttempts: DefaultMaxAttempts,
		},
		Claims: ClaimsConfig{
			StaleAfterSeconds: DefaultStaleAfterSeconds,
		},
		DeadLetter: DeadLetterConfig{
			PerPage: DefaultDLQPerPage,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("core: retry.max_attempts must not be negative")
	}
	if c.Signing.SkewSeconds < 0 {
		return fmt.Errorf("core: signing.skew_seconds must not be negative")
	}
	if c.Claims.StaleAfterSeconds < 0 {
		return fmt.Errorf("core: claims.stale_after_seconds must not be negative")
	}
	if c.DeadLetter.PerPage < 0 {
		return fmt.Errorf("core: dead_letter.per_page must not be negative")
	}
	return nil
}

func (c Config) maxAttempts() int {
	if c.Retry.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.Retry.MaxAttempts
}

func (c Config) dlqPerPage() int {
	if c.DeadLetter.PerPage <= 0 {
		return DefaultDLQPerPage
	}
	return c.DeadLetter.PerPage
}
