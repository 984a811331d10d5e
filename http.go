package migrasi

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// CallerContextKey is the router locals key holding the authorized Context.
const CallerContextKey = "caller"

// RouteAuthenticator adapts the Authenticator into router middleware plus a
// shared JSON error writer.
type RouteAuthenticator struct {
	auth         Authenticator
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator) *RouteAuthenticator {
	a := &RouteAuthenticator{
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a
}

// ProtectedRoute authorizes the bearer token against a channel and parks the
// resolved Context in locals. Routes behind it read the caller with
// CallerFromRouterContext.
func (a *RouteAuthenticator) ProtectedRoute(channel Channel) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			token := bearerToken(ctx.GetString(router.HeaderAuthorization, ""))
			if token == "" {
				return a.ErrorHandler(ctx, ErrAuthFailed)
			}

			caller, err := a.auth.Authorize(ctx.Context(), token, channel)
			if err != nil {
				a.Logger.Warn("request authorization failed", "path", ctx.OriginalURL(), "error", err)
				return a.ErrorHandler(ctx, err)
			}

			ctx.Locals(CallerContextKey, caller)
			return ctx.Next()
		}
	}
}

// CallerFromRouterContext reads the Context the middleware stored.
func CallerFromRouterContext(ctx router.Context) (Context, bool) {
	caller, ok := ctx.Locals(CallerContextKey).(Context)
	return caller, ok
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}

	return header
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	return WriteJSONError(c, a.Logger, err)
}

// WriteJSONError maps an error to its HTTP status and writes the uniform JSON
// error body. Metadata stays in the logs.
func WriteJSONError(c router.Context, logger Logger, err error) error {
	if logger == nil {
		logger = defLogger{}
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	logger.Info(
		"request error",
		"error", richErr.Message,
		"category", richErr.Category,
		"text_code", richErr.TextCode,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = statusFromCategory(richErr.Category)
	}

	return c.JSON(status, map[string]any{
		"error": richErr.Message,
	})
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
