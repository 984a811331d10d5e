package migrasi

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMasksEveryRefusalIdentically(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	resolver := NewProjectResolver(repo)

	author := mustCreateUser(t, repo, "Ana", "ana@example.com", true)
	member := mustCreateUser(t, repo, "Bob", "bob@example.com", true)
	stranger := mustCreateUser(t, repo, "Eve", "eve@example.com", true)

	project := mustCreateProject(t, repo, author, "acme")
	require.NoError(t, repo.Projects().AddMembers(ctx, project.ID, []uuid.UUID{member.ID}))

	cases := []struct {
		name   string
		caller Context
		slug   string
		level  AccessLevel
		reason string
	}{
		{
			name:   "unknown slug",
			caller: callerFor(author, ChannelWeb),
			slug:   "no-such-project",
			level:  AccessMember,
			reason: TextCodeNotFound,
		},
		{
			name:   "stranger",
			caller: callerFor(stranger, ChannelWeb),
			slug:   project.Slug,
			level:  AccessMember,
			reason: TextCodeNotMember,
		},
		{
			name:   "member needs author",
			caller: callerFor(member, ChannelWeb),
			slug:   project.Slug,
			level:  AccessAuthor,
			reason: TextCodeNotAuthor,
		},
	}

	var messages []string
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(ctx, tc.caller, tc.slug, tc.level)
			require.Error(t, err)

			var richErr *goerrors.Error
			require.True(t, goerrors.As(err, &richErr))
			assert.Equal(t, tc.reason, richErr.TextCode)
			assert.Equal(t, goerrors.CategoryNotFound, richErr.Category)

			messages = append(messages, richErr.Message)
		})
	}

	// The outward message never distinguishes the reasons.
	require.Len(t, messages, 3)
	assert.Equal(t, messages[0], messages[1])
	assert.Equal(t, messages[1], messages[2])
}

func TestResolveAdmitsAuthorAndMember(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	resolver := NewProjectResolver(repo)

	author := mustCreateUser(t, repo, "Ana", "ana@example.com", true)
	member := mustCreateUser(t, repo, "Bob", "bob@example.com", true)

	project := mustCreateProject(t, repo, author, "acme")
	require.NoError(t, repo.Projects().AddMembers(ctx, project.ID, []uuid.UUID{member.ID}))

	found, err := resolver.Resolve(ctx, callerFor(author, ChannelWeb), project.Slug, AccessAuthor)
	require.NoError(t, err)
	assert.Equal(t, project.ID, found.ID)

	// Author passes the member gate too.
	_, err = resolver.Resolve(ctx, callerFor(author, ChannelWeb), project.Slug, AccessMember)
	assert.NoError(t, err)

	_, err = resolver.Resolve(ctx, callerFor(member, ChannelWeb), project.Slug, AccessMember)
	assert.NoError(t, err)
}

func TestFilterValidNewMembers(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	resolver := NewProjectResolver(repo)

	author := mustCreateUser(t, repo, "Ana", "ana@example.com", true)
	existing := mustCreateUser(t, repo, "Bob", "bob@example.com", true)
	fresh := mustCreateUser(t, repo, "Cleo", "cleo@example.com", true)

	project := mustCreateProject(t, repo, author, "acme")
	require.NoError(t, repo.Projects().AddMembers(ctx, project.ID, []uuid.UUID{existing.ID}))

	valid, err := resolver.FilterValidNewMembers(ctx, project, []string{
		"ana@example.com",     // the author
		"bob@example.com",     // already a member
		"cleo@example.com",    // eligible account
		"CLEO@example.com",    // duplicate, different case
		"nobody@example.com",  // no account, invitation side channel
		" cleo@example.com  ", // duplicate with whitespace
	})
	require.NoError(t, err)

	// Cleo joins as a registered candidate; the unknown address survives the
	// screen too, as a bare email to invite.
	require.Len(t, valid, 2)

	require.True(t, valid[0].Registered())
	assert.Equal(t, fresh.ID, valid[0].User.ID)

	require.False(t, valid[1].Registered())
	assert.Nil(t, valid[1].User)
	assert.Equal(t, "nobody@example.com", valid[1].Email)
}
