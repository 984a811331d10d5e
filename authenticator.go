package migrasi

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther implements Authenticator on top of the repositories. Each channel
// carries its own token service; the email token service exists only to sign
// and resolve confirmation links.
type Auther struct {
	repo        RepositoryManager
	webTokens   *TokenService
	cliTokens   *TokenService
	emailTokens *TokenService
	mailer      Mailer
	logger      Logger
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, cfg *Config) *Auther {
	logger := defLogger{}
	return &Auther{
		repo:        repo,
		webTokens:   NewTokenService(cfg, ChannelWeb, logger),
		cliTokens:   NewTokenService(cfg, ChannelCLI, logger),
		emailTokens: NewEmailTokenService(cfg, logger),
		mailer:      noopMailer{},
		logger:      logger,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	return s
}

// WithMailer configures the mailer used for confirmation emails.
func (s *Auther) WithMailer(mailer Mailer) *Auther {
	if mailer == nil {
		mailer = noopMailer{}
	}
	s.mailer = mailer
	return s
}

// TokenServiceFor returns the token service of a channel.
func (s *Auther) TokenServiceFor(channel Channel) *TokenService {
	if channel.IsCLI() {
		return s.cliTokens
	}
	return s.webTokens
}

// Register creates the account, opens a web session, and queues the
// confirmation email. The returned token is a live web login: the new user is
// signed in immediately, just not yet confirmed.
func (s *Auther) Register(ctx context.Context, name, email, password string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	var token string
	var user *User
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Users().GetByIdentifierTx(ctx, tx, email); err == nil {
			s.logger.Warn("Register rejected duplicate email", "email", email)
			return ErrDuplicateRegistration
		} else if !repository.IsRecordNotFound(err) {
			return err
		}

		user, err = s.repo.Users().RegisterTx(ctx, tx, &User{
			Name:         name,
			Email:        email,
			PasswordHash: hash,
		})
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register user")
		}

		token, err = s.startSessionTx(ctx, tx, user.ID, ChannelWeb)
		return err
	})
	if err != nil {
		return "", err
	}

	s.sendConfirmationEmail(user)

	return token, nil
}

// Login verifies credentials and opens a web session, superseding any previous
// web session of the same user.
func (s *Auther) Login(ctx context.Context, email, password string) (string, error) {
	return s.login(ctx, email, password, ChannelWeb)
}

// CLILogin is Login on the CLI channel. The two channels never interfere: a
// CLI login leaves an open web session untouched.
func (s *Auther) CLILogin(ctx context.Context, email, password string) (string, error) {
	return s.login(ctx, email, password, ChannelCLI)
}

func (s *Auther) login(ctx context.Context, email, password string, channel Channel) (string, error) {
	user, err := s.repo.Users().GetByIdentifier(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Warn("Login rejected unknown email", "email", email)
			return "", ErrAuthFailed
		}
		return "", err
	}

	if !user.EmailConfirmed {
		s.logger.Warn("Login rejected unconfirmed account", "user", user.ID)
		return "", ErrEmailUnconfirmed
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Warn("Login rejected bad password", "user", user.ID)
		return "", ErrAuthFailed
	}

	var token string
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err = s.startSessionTx(ctx, tx, user.ID, channel)
		return err
	})
	if err != nil {
		return "", err
	}

	return token, nil
}

func (s *Auther) startSessionTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, channel Channel) (string, error) {
	ts := s.TokenServiceFor(channel)
	ttl := time.Duration(ts.ExpireInDays()) * 24 * time.Hour

	session, err := s.repo.Sessions().StartTx(ctx, tx, userID, channel, ttl)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to start session")
	}

	return ts.Issue(session.ID)
}

// Authorize resolves a bearer token into a request Context. The token must
// verify against the channel's secret, reference a live unexpired session, and
// belong to a confirmed account. Every failure except the unconfirmed email
// collapses into ErrAuthFailed.
func (s *Auther) Authorize(ctx context.Context, token string, channel Channel) (Context, error) {
	sessionID, err := s.TokenServiceFor(channel).Validate(token)
	if err != nil {
		return Context{}, ErrAuthFailed
	}

	session, err := s.repo.Sessions().GetWithUser(ctx, sessionID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Warn("Authorize rejected unknown session", "session", sessionID)
			return Context{}, ErrAuthFailed
		}
		return Context{}, err
	}

	if session.Channel() != channel {
		s.logger.Warn("Authorize rejected cross channel session", "session", sessionID)
		return Context{}, ErrAuthFailed
	}

	if session.Expired(time.Now()) {
		s.logger.Warn("Authorize rejected expired session", "session", sessionID)
		return Context{}, ErrAuthFailed.Clone().WithTextCode(TextCodeSessionExpired)
	}

	if session.User == nil || !session.User.EmailConfirmed {
		return Context{}, ErrEmailUnconfirmed
	}

	return Context{
		SessionID: session.ID,
		UserID:    session.UserID,
		Channel:   channel,
	}, nil
}

// Logout deletes the web session of the user owning sessionID. Logging out an
// already dead session is a no-op.
func (s *Auther) Logout(ctx context.Context, sessionID uuid.UUID) error {
	return s.logout(ctx, sessionID, ChannelWeb)
}

// CLILogout is Logout on the CLI channel.
func (s *Auther) CLILogout(ctx context.Context, sessionID uuid.UUID) error {
	return s.logout(ctx, sessionID, ChannelCLI)
}

func (s *Auther) logout(ctx context.Context, sessionID uuid.UUID, channel Channel) error {
	return s.repo.Sessions().EndByID(ctx, sessionID, channel)
}

// ConfirmEmail resolves a confirmation token and flips the account flag.
// Confirming twice is harmless.
func (s *Auther) ConfirmEmail(ctx context.Context, token string) error {
	userID, err := s.emailTokens.Validate(token)
	if err != nil {
		return ErrAuthFailed
	}

	if err := s.repo.Users().ConfirmEmail(ctx, userID); err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAuthFailed
		}
		return err
	}

	return nil
}

// RequestEmailConfirmation re-issues the confirmation email for an account
// that lost the first one.
func (s *Auther) RequestEmailConfirmation(ctx context.Context, userID uuid.UUID) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAuthFailed
		}
		return err
	}

	s.sendConfirmationEmail(user)
	return nil
}

func (s *Auther) sendConfirmationEmail(user *User) {
	token, err := s.emailTokens.Issue(user.ID)
	if err != nil {
		s.logger.Error("failed to issue confirmation token", "user", user.ID, "error", err)
		return
	}

	s.mailer.SendEmailConfirmation(user.Name, user.Email, token)
}

var _ Authenticator = (*Auther)(nil)
