package migrasi

import (
	"context"
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"standard scheme", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"lowercase scheme", "bearer abc.def.ghi", "abc.def.ghi"},
		{"raw token", "abc.def.ghi", "abc.def.ghi"},
		{"padded header", "  Bearer abc.def.ghi ", "abc.def.ghi"},
		{"empty header", "", ""},
		{"blank header", "   ", ""},
		{"unknown scheme passes through", "Basic abc", "Basic abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, bearerToken(tt.header))
		})
	}
}

func TestStatusFromCategory(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFromCategory(goerrors.CategoryAuth))
	assert.Equal(t, http.StatusForbidden, statusFromCategory(goerrors.CategoryAuthz))
	assert.Equal(t, http.StatusNotFound, statusFromCategory(goerrors.CategoryNotFound))
	assert.Equal(t, http.StatusConflict, statusFromCategory(goerrors.CategoryConflict))
	assert.Equal(t, http.StatusBadRequest, statusFromCategory(goerrors.CategoryValidation))
	assert.Equal(t, http.StatusBadRequest, statusFromCategory(goerrors.CategoryBadInput))
	assert.Equal(t, http.StatusInternalServerError, statusFromCategory(goerrors.CategoryInternal))
}

func TestProtectedRouteStoresCaller(t *testing.T) {
	auther, _, mailer := setupAuther(t)
	ctx := context.Background()

	token, err := auther.Register(ctx, "Ana", "ana@example.com", "s3cret-password")
	require.NoError(t, err)
	require.NoError(t, auther.ConfirmEmail(ctx, mailer.lastToken()))

	routeAuth := NewHTTPAuthenticator(auther)
	handler := routeAuth.ProtectedRoute(ChannelWeb)(func(c router.Context) error {
		return nil
	})

	mc := router.NewMockContext()
	mc.On("Context").Return(ctx)
	mc.On("GetString", "Authorization", "").Return("Bearer " + token)
	mc.On("Locals", CallerContextKey, mock.AnythingOfType("migrasi.Context")).Return(nil)

	require.NoError(t, handler(mc))
	assert.True(t, mc.NextCalled)
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	auther, _, _ := setupAuther(t)

	routeAuth := NewHTTPAuthenticator(auther)
	handler := routeAuth.ProtectedRoute(ChannelWeb)(func(c router.Context) error {
		return nil
	})

	mc := router.NewMockContext()
	mc.On("GetString", "Authorization", "").Return("")

	var payload map[string]any
	mc.On("JSON", http.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, handler(mc))
	assert.False(t, mc.NextCalled)
	assert.Equal(t, "auth failed", payload["error"])
}

func TestProtectedRouteRejectsCrossChannelToken(t *testing.T) {
	auther, _, mailer := setupAuther(t)
	ctx := context.Background()

	_, err := auther.Register(ctx, "Ana", "ana@example.com", "s3cret-password")
	require.NoError(t, err)
	require.NoError(t, auther.ConfirmEmail(ctx, mailer.lastToken()))

	cliToken, err := auther.CLILogin(ctx, "ana@example.com", "s3cret-password")
	require.NoError(t, err)

	routeAuth := NewHTTPAuthenticator(auther)
	handler := routeAuth.ProtectedRoute(ChannelWeb)(func(c router.Context) error {
		return nil
	})

	mc := router.NewMockContext()
	mc.On("Context").Return(ctx)
	mc.On("GetString", "Authorization", "").Return("Bearer " + cliToken)
	mc.On("OriginalURL").Return("/projects").Maybe()

	var status int
	mc.On("JSON", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		status = args.Int(0)
	}).Return(nil)

	require.NoError(t, handler(mc))
	assert.False(t, mc.NextCalled)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestWriteJSONErrorMapsMaskedErrors(t *testing.T) {
	mc := router.NewMockContext()

	var payload map[string]any
	mc.On("JSON", http.StatusNotFound, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err := WriteJSONError(mc, nil, NewProjectNotFound(TextCodeNotMember, map[string]any{"slug": "foo"}))
	require.NoError(t, err)

	// The reason never reaches the response body.
	assert.Equal(t, map[string]any{"error": "project cannot be found"}, payload)
}

func TestWriteJSONErrorWrapsUnknownErrors(t *testing.T) {
	mc := router.NewMockContext()

	var payload map[string]any
	mc.On("JSON", http.StatusInternalServerError, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]any)
	}).Return(nil)

	err := WriteJSONError(mc, nil, errors.New("pq: connection refused"))
	require.NoError(t, err)

	// Internal details stay out of the body.
	assert.Equal(t, "An unexpected server error occurred", payload["error"])
}
