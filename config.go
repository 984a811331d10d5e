package migrasi

import (
	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultIssuer is the issuer tag stamped on every token we sign.
const DefaultIssuer = "migrasi"

// Config holds every secret and expiry the package needs. It is built once at
// process start and passed by reference; nothing in this package reads the
// environment after construction.
type Config struct {
	Issuer  string `env:"MIGRASI_ISSUER" envDefault:"migrasi"`
	BaseURL string `env:"MIGRASI_BASE_URL" envDefault:"http://localhost:3000"`

	WebSecret           string `env:"AUTH_SECRET"`
	WebExpireInDays     int    `env:"AUTH_EXPIRE_IN_DAY" envDefault:"30"`
	CLISecret           string `env:"CLI_AUTH_SECRET"`
	CLIExpireInDays     int    `env:"CLI_AUTH_EXPIRE_IN_DAY" envDefault:"90"`
	ConfirmSecret       string `env:"AUTH_EMAIL_CONFIRMATION_SECRET"`
	ConfirmExpireInDays int    `env:"AUTH_EMAIL_CONFIRMATION_EXPIRE_IN_DAY" envDefault:"1"`
}

// LoadConfig reads the configuration from environment variables and validates
// it. Use it from your binary's main; tests build Config literals instead.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse environment configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures every channel has a secret and a positive expiry.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Issuer, validation.Required),
		validation.Field(&c.WebSecret, validation.Required),
		validation.Field(&c.CLISecret, validation.Required),
		validation.Field(&c.ConfirmSecret, validation.Required),
		validation.Field(&c.WebExpireInDays, validation.Required, validation.Min(1)),
		validation.Field(&c.CLIExpireInDays, validation.Required, validation.Min(1)),
		validation.Field(&c.ConfirmExpireInDays, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid configuration")
	}
	return nil
}

// ChannelSecret returns the signing secret for a channel.
func (c Config) ChannelSecret(channel Channel) []byte {
	if channel.IsCLI() {
		return []byte(c.CLISecret)
	}
	return []byte(c.WebSecret)
}

// ChannelExpireInDays returns the token and session expiry for a channel.
func (c Config) ChannelExpireInDays(channel Channel) int {
	if channel.IsCLI() {
		return c.CLIExpireInDays
	}
	return c.WebExpireInDays
}
