// Package main provides the docshelf command-line client.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	domainerrors "github.com/docshelf/docshelf/internal/errors"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout, os.Stderr).Run(ctx, args); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "docshelf",
		Usage:     "Search, share and rate documents on a DocShelf server",
		Version:   "1.0.0",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Usage: "server base URL (env DOCSHELF_API_URL)"},
			&cli.StringFlag{Name: "timeout", Usage: "client-side request timeout, e.g. 30s (env API_TIMEOUT)"},
			&cli.StringFlag{Name: "state-dir", Usage: "where the session token is kept (env DOCSHELF_STATE_DIR)"},
			&cli.StringFlag{Name: "token-store", Usage: "file or badger (env TOKEN_STORE)"},
			&cli.StringFlag{Name: "env", Usage: "development, test or production (env ENV)"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (env LOG_LEVEL)"},
			&cli.StringFlag{Name: "log-file", Usage: "also write JSON logs to this rotated file (env LOG_FILE)"},
			&cli.StringFlag{Name: "env-file", Usage: "dotenv file to load", Value: ".env"},
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Commands: []*cli.Command{
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			registerCommand(),
			searchCommand(),
			tagsCommand(),
			homeCommand(),
			docCommand(),
			rateCommand(),
			aiCommand(),
		},
	}
}

// usageError reports a missing or malformed argument.
func usageError(c *cli.Command, format string, args ...any) error {
	return domainerrors.Validationf("%s: %s", c.FullName(), fmt.Sprintf(format, args...))
}
