package migrasi

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	cfg := testConfig()
	ts := NewTokenService(cfg, ChannelWeb, nil)

	id := uuid.New()
	token, err := ts.Issue(id)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestTokenServiceRejectsCrossChannelToken(t *testing.T) {
	cfg := testConfig()
	web := NewTokenService(cfg, ChannelWeb, nil)
	cli := NewTokenService(cfg, ChannelCLI, nil)

	token, err := web.Issue(uuid.New())
	require.NoError(t, err)

	_, err = cli.Validate(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	cfg.WebExpireInDays = -1

	ts := NewTokenService(cfg, ChannelWeb, nil)

	token, err := ts.Issue(uuid.New())
	require.NoError(t, err)

	fresh := NewTokenService(testConfig(), ChannelWeb, nil)
	_, err = fresh.Validate(token)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestTokenServiceRejectsWrongIssuer(t *testing.T) {
	other := testConfig()
	other.Issuer = "someone-else"

	token, err := NewTokenService(other, ChannelWeb, nil).Issue(uuid.New())
	require.NoError(t, err)

	_, err = NewTokenService(testConfig(), ChannelWeb, nil).Validate(token)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	ts := NewTokenService(testConfig(), ChannelWeb, nil)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := ts.Validate(token)
		assert.ErrorIs(t, err, ErrAuthFailed, "token %q", token)
	}
}

func TestEmailTokenServiceIsItsOwnKeyspace(t *testing.T) {
	cfg := testConfig()
	emails := NewEmailTokenService(cfg, nil)
	web := NewTokenService(cfg, ChannelWeb, nil)

	userID := uuid.New()
	token, err := emails.Issue(userID)
	require.NoError(t, err)

	got, err := emails.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// A confirmation token must never pass as a login token.
	_, err = web.Validate(token)
	assert.ErrorIs(t, err, ErrAuthFailed)
}
