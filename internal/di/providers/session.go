package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/config"
	"github.com/docshelf/docshelf/internal/session"
	"github.com/docshelf/docshelf/internal/validation"
)

// APIClientHandle wraps the API client with shutdown capability.
type APIClientHandle struct {
	*api.Client
}

// Shutdown implements do.Shutdownable.
func (h *APIClientHandle) Shutdown() error {
	return h.Close()
}

// ProvideAPIClient provides the DocShelf API client.
func ProvideAPIClient(i do.Injector) (*APIClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	client, err := api.New(api.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		RateBurst: cfg.API.RateBurst,
	}, log.Logger.Logger)
	if err != nil {
		return nil, err
	}

	return &APIClientHandle{Client: client}, nil
}

// TokenStoreHandle wraps the configured token store. Badger stores are closed
// on shutdown; file stores need nothing.
type TokenStoreHandle struct {
	session.TokenStore
	closer func() error
}

// Shutdown implements do.Shutdownable.
func (h *TokenStoreHandle) Shutdown() error {
	if h.closer == nil {
		return nil
	}
	return h.closer()
}

// ProvideTokenStore provides the persisted-token store selected by config.
func ProvideTokenStore(i do.Injector) (*TokenStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	switch cfg.Session.TokenStore {
	case config.TokenStoreBadger:
		dir := filepath.Join(cfg.Session.StateDir, "db")
		store, err := session.OpenBadgerTokenStore(dir, log.Logger.Logger)
		if err != nil {
			return nil, err
		}
		log.Debug("token store opened", "kind", "badger", "path", dir)
		return &TokenStoreHandle{TokenStore: store, closer: store.Close}, nil
	default:
		path := filepath.Join(cfg.Session.StateDir, "token.json")
		log.Debug("token store opened", "kind", "file", "path", path)
		return &TokenStoreHandle{TokenStore: session.NewFileTokenStore(path)}, nil
	}
}

// ProvideSessionManager provides the session and installs it as the API
// client's authorizer.
func ProvideSessionManager(i do.Injector) (*session.Manager, error) {
	client := do.MustInvoke[*APIClientHandle](i)
	store := do.MustInvoke[*TokenStoreHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	v := do.MustInvoke[*validation.Validator](i)

	m := session.NewManager(client.Client, store.TokenStore, v, log.Logger.Logger)
	client.SetAuthorizer(m)
	return m, nil
}
