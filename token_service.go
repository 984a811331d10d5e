package migrasi

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenClaims is the wire shape of every token we sign: the registered JWT
// claims plus an "id" payload. For channel tokens the id is a session id, for
// email confirmation tokens it is a user id.
type TokenClaims struct {
	jwt.RegisteredClaims
	ID string `json:"id"`
}

// TokenService signs and verifies the tokens of one channel. Web and CLI each
// get their own instance with a disjoint secret, so a token minted for one
// channel fails the other's signature check outright.
type TokenService struct {
	signingKey   []byte
	expireInDays int
	issuer       string
	logger       Logger
}

// NewTokenService creates a TokenService for the given channel of cfg.
func NewTokenService(cfg *Config, channel Channel, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		signingKey:   cfg.ChannelSecret(channel),
		expireInDays: cfg.ChannelExpireInDays(channel),
		issuer:       cfg.Issuer,
		logger:       logger,
	}
}

// NewEmailTokenService creates the single-purpose token service used for
// email confirmation links. It signs user ids with its own secret and a short
// expiry; validating one of its tokens resolves a user id, not a session.
func NewEmailTokenService(cfg *Config, logger Logger) *TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenService{
		signingKey:   []byte(cfg.ConfirmSecret),
		expireInDays: cfg.ConfirmExpireInDays,
		issuer:       cfg.Issuer,
		logger:       logger,
	}
}

// Issue mints a signed token carrying id and expiring after the service's
// configured number of days.
func (ts *TokenService) Issue(id uuid.UUID) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.expireInDays) * 24 * time.Hour)),
		},
		ID: id.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Validate parses and verifies a token, returning the id it carries. Any
// signature, issuer, or expiry failure collapses into ErrAuthFailed; the
// specific cause is logged, never surfaced.
func (ts *TokenService) Validate(tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, ErrAuthFailed
		}
		return ts.signingKey, nil
	}, jwt.WithIssuer(ts.issuer))

	if err != nil {
		ts.logger.Debug("token validation failed", "error", err)
		return uuid.Nil, ErrAuthFailed
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token validate could not decode claims")
		return uuid.Nil, ErrAuthFailed
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		ts.logger.Error("token carries a malformed id claim", "error", err)
		return uuid.Nil, ErrAuthFailed
	}

	return id, nil
}

// ExpireInDays exposes the configured expiry, used to derive session and
// cookie lifetimes from the same number the token encodes.
func (ts *TokenService) ExpireInDays() int {
	return ts.expireInDays
}
