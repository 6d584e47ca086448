package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/samber/do/v2"
	"github.com/urfave/cli/v3"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/config"
	"github.com/docshelf/docshelf/internal/di"
	"github.com/docshelf/docshelf/internal/di/providers"
	domainerrors "github.com/docshelf/docshelf/internal/errors"
	"github.com/docshelf/docshelf/internal/session"
)

// app is what every command runs with: the container, a restored session and
// the output stream.
type app struct {
	injector *do.RootScope
	log      *slog.Logger
	session  *session.Manager
	client   *api.Client
	out      io.Writer
	json     bool
}

func overridesFrom(c *cli.Command) config.Overrides {
	return config.Overrides{
		Env:        c.String("env"),
		LogLevel:   c.String("log-level"),
		LogFile:    c.String("log-file"),
		APIURL:     c.String("api-url"),
		Timeout:    c.String("timeout"),
		StateDir:   c.String("state-dir"),
		TokenStore: c.String("token-store"),
		EnvFile:    c.String("env-file"),
	}
}

// newApp builds the container and restores the persisted session.
func newApp(ctx context.Context, c *cli.Command) (*app, error) {
	injector := di.NewContainer(overridesFrom(c))

	sess, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		_ = injector.Shutdown()
		return nil, err
	}
	log := do.MustInvoke[*providers.LoggerHandle](injector)
	client := do.MustInvoke[*providers.APIClientHandle](injector)

	sess.Initialize(ctx)
	log.Debug("session initialized", "status", sess.Status().String())

	return &app{
		injector: injector,
		log:      log.Logger.Logger,
		session:  sess,
		client:   client.Client,
		out:      c.Root().Writer,
		json:     c.Bool("json"),
	}, nil
}

func (a *app) close() {
	if err := a.injector.Shutdown(); err != nil {
		a.log.Warn("shutdown error", "error", err)
	}
}

// requireLogin fails unless the restored session is authenticated. When a
// stored session was just dropped the reason is reported instead.
func (a *app) requireLogin() error {
	if a.session.Status() == session.StatusAuthenticated {
		return nil
	}
	if err := a.session.Ended(); err != nil {
		return err
	}
	return domainerrors.Unauthorized("Not logged in. Run 'docshelf login' first.")
}

type appAction func(ctx context.Context, c *cli.Command, a *app) error

// withApp wraps an action with container setup and teardown.
func withApp(fn appAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		a, err := newApp(ctx, c)
		if err != nil {
			return err
		}
		defer a.close()
		return userError(fn(ctx, c, a))
	}
}

// authed is withApp for commands that need a signed-in user.
func authed(fn appAction) cli.ActionFunc {
	return withApp(func(ctx context.Context, c *cli.Command, a *app) error {
		if err := a.requireLogin(); err != nil {
			return err
		}
		return fn(ctx, c, a)
	})
}

// userError gives a failed API call a coded error whose message reads well
// on a terminal. Errors that already carry a code pass through.
func userError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *domainerrors.Error
	if domainerrors.As(err, &domainErr) {
		return err
	}
	var apiErr *api.Error
	isAPI := domainerrors.As(err, &apiErr)

	if domainerrors.Is(err, api.ErrUnsupportedFile) || domainerrors.Is(err, api.ErrFileTooLarge) {
		msg := err.Error()
		if isAPI {
			msg = apiErr.Err.Error()
		}
		return domainerrors.Validation(msg).WithCause(err)
	}
	if !isAPI {
		return err
	}

	detail := apiErr.Detail
	switch {
	case apiErr.Status == 0 && !domainerrors.Is(err, context.Canceled):
		return domainerrors.Network(session.MsgUnreachable).WithCause(err)
	case domainerrors.Is(err, api.ErrUnauthorized):
		return domainerrors.Unauthorized(session.MsgSessionRejected).WithCause(err)
	case domainerrors.Is(err, api.ErrForbidden):
		return domainerrors.Forbidden(orDefault(detail, "Access denied")).WithCause(err)
	case domainerrors.Is(err, api.ErrNotFound):
		return domainerrors.NotFound(orDefault(detail, "Not found")).WithCause(err)
	case domainerrors.Is(err, api.ErrBadRequest), domainerrors.Is(err, api.ErrValidation):
		return domainerrors.Validation(orDefault(detail, "The server rejected the request")).WithCause(err)
	case domainerrors.Is(err, api.ErrServer):
		return domainerrors.Wrapf(err, domainerrors.CodeInternal, "The server failed (%d). Please try again.", apiErr.Status)
	}
	return err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func invoke[T any](a *app) (T, error) {
	return do.Invoke[T](a.injector)
}
