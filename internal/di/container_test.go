package di_test

import (
	"context"
	"testing"

	"github.com/samber/do/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshelf/docshelf/internal/config"
	"github.com/docshelf/docshelf/internal/di"
	"github.com/docshelf/docshelf/internal/di/providers"
	"github.com/docshelf/docshelf/internal/domain"
	domainerrors "github.com/docshelf/docshelf/internal/errors"
	"github.com/docshelf/docshelf/internal/service"
	"github.com/docshelf/docshelf/internal/session"
)

func TestContainer_WiresSession(t *testing.T) {
	for _, kind := range []string{config.TokenStoreFile, config.TokenStoreBadger} {
		t.Run(kind, func(t *testing.T) {
			injector := di.NewContainer(config.Overrides{
				Env:        "test",
				LogLevel:   "error",
				APIURL:     "http://127.0.0.1:1",
				StateDir:   t.TempDir(),
				TokenStore: kind,
				EnvFile:    "does-not-exist.env",
			})

			m, err := do.Invoke[*session.Manager](injector)
			require.NoError(t, err)
			assert.Equal(t, session.StatusUnauthenticated, m.Status())

			// The shared validator rejects bad input before the unreachable
			// server is contacted.
			err = m.Register(context.Background(), domain.RegisterRequest{Username: "bo"})
			assert.ErrorIs(t, err, domainerrors.ErrValidation)

			client := do.MustInvoke[*providers.APIClientHandle](injector)
			assert.Equal(t, "http://127.0.0.1:1", client.BaseURL())

			_, err = do.Invoke[*service.DashboardService](injector)
			require.NoError(t, err)
			_, err = do.Invoke[*service.DocumentService](injector)
			require.NoError(t, err)
			_, err = do.Invoke[*service.UploadService](injector)
			require.NoError(t, err)

			if err := injector.Shutdown(); err != nil {
				t.Fatalf("shutdown: %v", err)
			}
		})
	}
}

func TestContainer_InvalidConfig(t *testing.T) {
	injector := di.NewContainer(config.Overrides{
		APIURL:   "ftp://example.com",
		StateDir: t.TempDir(),
		EnvFile:  "does-not-exist.env",
	})

	_, err := do.Invoke[*session.Manager](injector)
	assert.Error(t, err)
}
