package migrasi

import (
	"strconv"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController exposes the JSON API. The same project surface is mounted
// twice, once per channel: browsers call the web mount, the CLI calls the CLI
// mount with its own tokens.
type HTTPController struct {
	auth      *Auther
	routeAuth *RouteAuthenticator
	service   *ProjectService
	create    *CreateMigrationHandler
	rename    *RenameMigrationHandler
	toggle    *ToggleMigrationHandler
	remove    *DeleteMigrationHandler
	invite    *AddMembersHandler
	logger    Logger
}

func NewHTTPController(
	auth *Auther,
	service *ProjectService,
	create *CreateMigrationHandler,
	rename *RenameMigrationHandler,
	toggle *ToggleMigrationHandler,
	remove *DeleteMigrationHandler,
	invite *AddMembersHandler,
) *HTTPController {
	return &HTTPController{
		auth:      auth,
		routeAuth: NewHTTPAuthenticator(auth),
		service:   service,
		create:    create,
		rename:    rename,
		toggle:    toggle,
		remove:    remove,
		invite:    invite,
		logger:    defLogger{},
	}
}

func (c *HTTPController) WithLogger(logger Logger) *HTTPController {
	c.logger = logger
	c.routeAuth.Logger = logger
	return c
}

// RegisterRoutes mounts the web surface: account routes plus the project API.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/auth/register", c.RegisterAccount)
	group.Post("/auth/login", c.Login(ChannelWeb))
	group.Get("/auth/confirm", c.ConfirmEmail)

	protected := c.routeAuth.ProtectedRoute(ChannelWeb)
	group.Post("/auth/logout", c.Logout(ChannelWeb), protected)

	c.registerProjectRoutes(group, protected)
}

// RegisterCLIRoutes mounts the CLI surface under its own token channel.
func (c *HTTPController) RegisterCLIRoutes(group RouteRegistrar) {
	group.Post("/auth/login", c.Login(ChannelCLI))

	protected := c.routeAuth.ProtectedRoute(ChannelCLI)
	group.Post("/auth/logout", c.Logout(ChannelCLI), protected)

	c.registerProjectRoutes(group, protected)
}

func (c *HTTPController) registerProjectRoutes(group RouteRegistrar, protected router.MiddlewareFunc) {
	group.Get("/projects", c.ListProjects, protected)
	group.Post("/projects", c.CreateProject, protected)
	group.Get("/projects/:slug", c.GetProject, protected)
	group.Delete("/projects/:slug", c.DeleteProject, protected)

	group.Get("/projects/:slug/members", c.ListMembers, protected)
	group.Get("/projects/:slug/members/search", c.SearchMembersToAdd, protected)
	group.Post("/projects/:slug/members", c.AddMembers, protected)
	group.Delete("/projects/:slug/members", c.RemoveMembers, protected)
	group.Delete("/projects/:slug/members/:member", c.RemoveMember, protected)

	group.Get("/projects/:slug/migrations", c.GetMigrations, protected)
	group.Get("/projects/:slug/migrations/all", c.GetAllMigrations, protected)
	group.Post("/projects/:slug/migrations", c.CreateMigration, protected)
	group.Post("/projects/:slug/migrations/rename", c.RenameMigration, protected)
	group.Post("/projects/:slug/migrations/toggle", c.ToggleMigration, protected)
	group.Delete("/projects/:slug/migrations", c.DeleteMigration, protected)
}

type registerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterAccount creates an account and returns a live web token. The
// confirmation email goes out in the background.
func (c *HTTPController) RegisterAccount(ctx router.Context) error {
	payload := registerPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid register payload"))
	}

	token, err := c.auth.Register(ctx.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"token": token,
	})
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *HTTPController) Login(channel Channel) router.HandlerFunc {
	return func(ctx router.Context) error {
		payload := loginPayload{}
		if err := ctx.Bind(&payload); err != nil {
			return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid login payload"))
		}

		var token string
		var err error
		if channel.IsCLI() {
			token, err = c.auth.CLILogin(ctx.Context(), payload.Email, payload.Password)
		} else {
			token, err = c.auth.Login(ctx.Context(), payload.Email, payload.Password)
		}
		if err != nil {
			return c.handleError(ctx, err)
		}

		return ctx.JSON(router.StatusOK, map[string]any{
			"token": token,
		})
	}
}

func (c *HTTPController) Logout(channel Channel) router.HandlerFunc {
	return func(ctx router.Context) error {
		caller, ok := CallerFromRouterContext(ctx)
		if !ok {
			return c.handleError(ctx, ErrAuthFailed)
		}

		var err error
		if channel.IsCLI() {
			err = c.auth.CLILogout(ctx.Context(), caller.SessionID)
		} else {
			err = c.auth.Logout(ctx.Context(), caller.SessionID)
		}
		if err != nil {
			return c.handleError(ctx, err)
		}

		return ctx.JSON(router.StatusOK, map[string]any{
			"status": "logged out",
		})
	}
}

// ConfirmEmail resolves the emailed confirmation link.
func (c *HTTPController) ConfirmEmail(ctx router.Context) error {
	token := ctx.Query("token")
	if token == "" {
		return c.handleError(ctx, ErrAuthFailed)
	}

	if err := c.auth.ConfirmEmail(ctx.Context(), token); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status": "confirmed",
	})
}

func (c *HTTPController) ListProjects(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	records, err := c.service.ListProjects(ctx.Context(), caller)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"projects": records,
	})
}

type createProjectPayload struct {
	Name string `json:"name"`
}

func (c *HTTPController) CreateProject(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	payload := createProjectPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid project payload"))
	}

	record, err := c.service.CreateProject(ctx.Context(), caller, payload.Name)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"project": record,
	})
}

// GetProject returns the full project page payload.
func (c *HTTPController) GetProject(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	detail, err := c.service.GetProjectDetail(ctx.Context(), caller, ctx.Param("slug"))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, detail)
}

func (c *HTTPController) SearchMembersToAdd(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	results, err := c.service.SearchMembersToAdd(ctx.Context(), caller, ctx.Param("slug"), ctx.Query("q"))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"results": results,
	})
}

func (c *HTTPController) DeleteProject(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	if err := c.service.DeleteProject(ctx.Context(), caller, ctx.Param("slug")); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status": "deleted",
	})
}

func (c *HTTPController) ListMembers(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	records, err := c.service.ListMembers(ctx.Context(), caller, ctx.Param("slug"))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"members": records,
	})
}

type addMembersPayload struct {
	Emails []string `json:"emails"`
}

func (c *HTTPController) AddMembers(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	payload := addMembersPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid members payload"))
	}

	result, err := c.invite.Execute(ctx.Context(), AddMembersMessage{
		Slug:   ctx.Param("slug"),
		Emails: payload.Emails,
		Caller: caller,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"added":   result.Added,
		"invited": result.Invited,
	})
}

type removeMembersPayload struct {
	MemberIDs []uuid.UUID `json:"member_ids"`
}

// RemoveMembers drops a batch of members in one transaction.
func (c *HTTPController) RemoveMembers(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	payload := removeMembersPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid members payload"))
	}

	removed, err := c.service.RemoveMembers(ctx.Context(), caller, ctx.Param("slug"), payload.MemberIDs)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"removed": removed,
	})
}

func (c *HTTPController) RemoveMember(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	memberID, err := uuid.Parse(ctx.Param("member"))
	if err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid member id"))
	}

	if err := c.service.RemoveMember(ctx.Context(), caller, ctx.Param("slug"), memberID); err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status": "removed",
	})
}

func (c *HTTPController) GetMigrations(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	page, _ := strconv.Atoi(ctx.Query("page"))

	result, err := c.service.GetMigrations(ctx.Context(), caller, ctx.Param("slug"), page)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, result)
}

func (c *HTTPController) GetAllMigrations(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	records, err := c.service.GetAllMigrations(ctx.Context(), caller, ctx.Param("slug"))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"migrations": records,
	})
}

type createMigrationPayload struct {
	Filename string `json:"filename"`
}

func (c *HTTPController) CreateMigration(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	payload := createMigrationPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid migration payload"))
	}

	record, err := c.create.Execute(ctx.Context(), CreateMigrationMessage{
		Slug:     ctx.Param("slug"),
		Filename: payload.Filename,
		Caller:   caller,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"migration": record,
		"generated": record.GeneratedFilename(),
	})
}

type renameMigrationPayload struct {
	Filename    string `json:"filename"`
	NewFilename string `json:"new_filename"`
}

func (c *HTTPController) RenameMigration(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	payload := renameMigrationPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid rename payload"))
	}

	record, err := c.rename.Execute(ctx.Context(), RenameMigrationMessage{
		Slug:        ctx.Param("slug"),
		Filename:    payload.Filename,
		NewFilename: payload.NewFilename,
		Caller:      caller,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"migration": record,
	})
}

type toggleMigrationPayload struct {
	Filename string `json:"filename"`
}

func (c *HTTPController) ToggleMigration(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	payload := toggleMigrationPayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid toggle payload"))
	}

	affected, err := c.toggle.Execute(ctx.Context(), ToggleMigrationMessage{
		Slug:     ctx.Param("slug"),
		Filename: payload.Filename,
		Caller:   caller,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"migrated": affected,
	})
}

func (c *HTTPController) DeleteMigration(ctx router.Context) error {
	caller, ok := CallerFromRouterContext(ctx)
	if !ok {
		return c.handleError(ctx, ErrAuthFailed)
	}

	filename := ctx.Query("filename")

	err := c.remove.Execute(ctx.Context(), DeleteMigrationMessage{
		Slug:     ctx.Param("slug"),
		Filename: filename,
		Caller:   caller,
	})
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"status": "deleted",
	})
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	return WriteJSONError(ctx, c.logger, err)
}
