package migrasi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	cfg := testConfig()
	assert.NoError(t, cfg.Validate())

	t.Run("missing secrets", func(t *testing.T) {
		c := testConfig()
		c.WebSecret = ""
		assert.Error(t, c.Validate())

		c = testConfig()
		c.CLISecret = ""
		assert.Error(t, c.Validate())

		c = testConfig()
		c.ConfirmSecret = ""
		assert.Error(t, c.Validate())
	})

	t.Run("non positive expiry", func(t *testing.T) {
		c := testConfig()
		c.WebExpireInDays = 0
		assert.Error(t, c.Validate())
	})
}

func TestConfigChannelAccessors(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, []byte(cfg.WebSecret), cfg.ChannelSecret(ChannelWeb))
	assert.Equal(t, []byte(cfg.CLISecret), cfg.ChannelSecret(ChannelCLI))
	assert.Equal(t, cfg.WebExpireInDays, cfg.ChannelExpireInDays(ChannelWeb))
	assert.Equal(t, cfg.CLIExpireInDays, cfg.ChannelExpireInDays(ChannelCLI))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("AUTH_SECRET", "web-secret")
	t.Setenv("CLI_AUTH_SECRET", "cli-secret")
	t.Setenv("AUTH_EMAIL_CONFIRMATION_SECRET", "confirm-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultIssuer, cfg.Issuer)
	assert.Equal(t, "web-secret", cfg.WebSecret)
	assert.Equal(t, 30, cfg.WebExpireInDays)
	assert.Equal(t, 90, cfg.CLIExpireInDays)
	assert.Equal(t, 1, cfg.ConfirmExpireInDays)
}
