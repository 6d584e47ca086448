package main

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/docshelf/docshelf/internal/domain"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in and keep the session for later commands",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Required: true, Sources: cli.EnvVars("DOCSHELF_PASSWORD")},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			if err := a.session.Login(ctx, c.String("username"), c.String("password")); err != nil {
				return err
			}
			user := a.session.CurrentUser()
			if a.json {
				return printJSON(a.out, user)
			}
			printOK(a.out, "Logged in as %s", user.DisplayName())
			return nil
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session",
		Action: withApp(func(_ context.Context, _ *cli.Command, a *app) error {
			a.session.Logout()
			printOK(a.out, "Logged out")
			return nil
		}),
	}
}

func whoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the signed-in user",
		Action: authed(func(_ context.Context, _ *cli.Command, a *app) error {
			user := a.session.CurrentUser()
			if a.json {
				return printJSON(a.out, user)
			}

			rows := [][2]string{
				{"username", user.Username},
				{"name", user.DisplayName()},
				{"email", user.Email},
				{"department", orDash(user.Department)},
				{"group", orDash(user.Group)},
				{"server", a.client.BaseURL()},
			}
			if exp, ok := a.session.TokenExpiry(); ok {
				rows = append(rows, [2]string{"session expires", humanize.RelTime(exp, time.Now(), "ago", "from now")})
			}
			printKV(a.out, rows)
			return nil
		}),
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "username", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "full-name", Required: true},
			&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("DOCSHELF_PASSWORD")},
			&cli.StringFlag{Name: "department"},
			&cli.StringFlag{Name: "group"},
		},
		Action: withApp(func(ctx context.Context, c *cli.Command, a *app) error {
			req := domain.RegisterRequest{
				Username:   c.String("username"),
				Email:      c.String("email"),
				FullName:   c.String("full-name"),
				Password:   c.String("password"),
				Department: c.String("department"),
				Group:      c.String("group"),
			}
			if err := a.session.Register(ctx, req); err != nil {
				return err
			}
			printOK(a.out, "Account %s created. Run 'docshelf login' to sign in.", req.Username)
			return nil
		}),
	}
}
