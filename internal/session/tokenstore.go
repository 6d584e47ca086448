package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/oauth2"
)

// TokenStore persists the access token between runs. Load returns a nil token
// and no error when nothing is stored.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	Clear() error
}

// storedToken is the on-disk shape of a token.
type storedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	Expiry      int64  `json:"expiry,omitempty"` // unix seconds, 0 when unknown
}

func encodeToken(tok *oauth2.Token) ([]byte, error) {
	st := storedToken{AccessToken: tok.AccessToken, TokenType: tok.TokenType}
	if !tok.Expiry.IsZero() {
		st.Expiry = tok.Expiry.Unix()
	}
	return json.Marshal(st)
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if st.AccessToken == "" {
		return nil, errors.New("decode token: empty access token")
	}
	tok := &oauth2.Token{AccessToken: st.AccessToken, TokenType: st.TokenType}
	if st.Expiry > 0 {
		tok.Expiry = time.Unix(st.Expiry, 0)
	}
	return tok, nil
}

// FileTokenStore keeps the token in a JSON file readable only by the owner.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore stores the token at path, creating parent directories on
// first save.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Path returns the token file location.
func (s *FileTokenStore) Path() string {
	return s.path
}

// Load reads the token file.
func (s *FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	return decodeToken(data)
}

// Save writes the token atomically via a temp file and rename.
func (s *FileTokenStore) Save(tok *oauth2.Token) error {
	data, err := encodeToken(tok)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

// Clear removes the token file. A missing file is not an error.
func (s *FileTokenStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

var tokenKey = []byte("session:token")

// BadgerTokenStore keeps the token in a Badger database.
type BadgerTokenStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadgerTokenStore opens (or creates) the database at dir. An empty dir
// opens an in-memory database.
func OpenBadgerTokenStore(dir string, logger *slog.Logger) (*BadgerTokenStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerTokenStore{db: db, logger: logger}, nil
}

// Load returns the stored token, if any.
func (s *BadgerTokenStore) Load() (*oauth2.Token, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tokenKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	return decodeToken(data)
}

// Save replaces the stored token.
func (s *BadgerTokenStore) Save(tok *oauth2.Token) error {
	data, err := encodeToken(tok)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tokenKey, data)
	})
}

// Clear deletes the stored token.
func (s *BadgerTokenStore) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(tokenKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}

// Close closes the database.
func (s *BadgerTokenStore) Close() error {
	s.logger.Debug("closing token database")
	return s.db.Close()
}
