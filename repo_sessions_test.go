package migrasi

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsStartSupersedesPreviousLogin(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	user := mustCreateUser(t, repo, "Ana", "ana@example.com", true)

	first, err := repo.Sessions().Start(ctx, user.ID, ChannelWeb, 24*time.Hour)
	require.NoError(t, err)

	second, err := repo.Sessions().Start(ctx, user.ID, ChannelWeb, 24*time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// The first session is gone, only the second survives.
	_, err = repo.Sessions().GetWithUser(ctx, first.ID)
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))

	found, err := repo.Sessions().GetWithUser(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.UserID)
}

func TestSessionsChannelsDoNotInterfere(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	user := mustCreateUser(t, repo, "Ana", "ana@example.com", true)

	web, err := repo.Sessions().Start(ctx, user.ID, ChannelWeb, 24*time.Hour)
	require.NoError(t, err)

	cli, err := repo.Sessions().Start(ctx, user.ID, ChannelCLI, 24*time.Hour)
	require.NoError(t, err)

	// CLI login leaves the web session alone.
	_, err = repo.Sessions().GetWithUser(ctx, web.ID)
	assert.NoError(t, err)

	assert.Equal(t, ChannelWeb, web.Channel())
	assert.Equal(t, ChannelCLI, cli.Channel())

	// Ending the CLI session keeps web alive.
	require.NoError(t, repo.Sessions().End(ctx, user.ID, ChannelCLI))

	_, err = repo.Sessions().GetWithUser(ctx, cli.ID)
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = repo.Sessions().GetWithUser(ctx, web.ID)
	assert.NoError(t, err)
}

func TestSessionsGetWithUserLoadsRelation(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	user := mustCreateUser(t, repo, "Ana", "ana@example.com", true)

	session, err := repo.Sessions().Start(ctx, user.ID, ChannelWeb, 24*time.Hour)
	require.NoError(t, err)

	found, err := repo.Sessions().GetWithUser(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, found.User)
	assert.Equal(t, "ana@example.com", found.User.Email)
	assert.True(t, found.User.EmailConfirmed)
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()

	live := &Session{ExpiredAt: now.Add(time.Hour)}
	assert.False(t, live.Expired(now))

	dead := &Session{ExpiredAt: now.Add(-time.Hour)}
	assert.True(t, dead.Expired(now))
}
