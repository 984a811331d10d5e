package migrasi

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Logger is the minimal logging surface this package needs
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Channel identifies the caller context. Each channel has its own signing
// secret, token expiry, and session slot.
type Channel string

const (
	// ChannelWeb is a browser session
	ChannelWeb Channel = "web"
	// ChannelCLI is a command line session
	ChannelCLI Channel = "cli"
)

// IsCLI reports whether the channel is the CLI channel.
func (c Channel) IsCLI() bool {
	return c == ChannelCLI
}

// Context is the resolved identity attached to an authorized request.
type Context struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	Channel   Channel
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Register(ctx context.Context, name, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	CLILogin(ctx context.Context, email, password string) (string, error)
	Authorize(ctx context.Context, token string, channel Channel) (Context, error)
	Logout(ctx context.Context, sessionID uuid.UUID) error
	CLILogout(ctx context.Context, sessionID uuid.UUID) error
	ConfirmEmail(ctx context.Context, token string) error
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] MIGRASI "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] MIGRASI "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] MIGRASI "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] MIGRASI "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
