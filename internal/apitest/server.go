// Package apitest runs an in-memory DocShelf API for tests.
//
// The server keeps users, documents and ratings in memory, issues HS256 JWT
// access tokens and records every request. Hooks let a test hold or fail
// individual requests to exercise out-of-order completions.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/docshelf/docshelf/internal/domain"
	"github.com/docshelf/docshelf/internal/id"
)

// DefaultPassword is the password of users added with AddUser.
const DefaultPassword = "correctpw"

var signingKey = []byte("apitest-signing-key")

// Recorded is one request seen by the server.
type Recorded struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
}

// Matcher selects requests for a hook.
type Matcher func(r *http.Request) bool

type hold struct {
	match   Matcher
	release chan struct{}
}

type failure struct {
	match  Matcher
	status int
	detail string
	times  int // <0 means forever
}

type account struct {
	user     domain.User
	password string
}

type storedDoc struct {
	doc     domain.Document
	content []byte
	ratings map[string]int // user id -> rating
}

// Server is a fake DocShelf API.
type Server struct {
	*httptest.Server

	TokenTTL time.Duration

	mu       sync.Mutex
	users    map[string]*account // by username
	docs     map[string]*storedDoc
	order    []string // doc ids in insertion order
	requests []Recorded
	holds    []*hold
	failures []*failure
	now      func() time.Time
}

// New starts a fake server. It is closed when the test ends.
func New(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		TokenTTL: time.Hour,
		users:    make(map[string]*account),
		docs:     make(map[string]*storedDoc),
		now:      time.Now,
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.hooks)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)
		r.With(s.authenticate).Get("/me", s.handleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Get("/search", s.handleSearch)
			r.Get("/search/count", s.handleSearchCount)
			r.Get("/tags", s.handleTags)
			r.Get("/latest", s.handleLatest)
			r.Get("/popular", s.handlePopular)
			r.Get("/my", s.handleMine)
			r.Post("/upload", s.handleUpload)
			r.Get("/{id}", s.handleGet)
			r.Put("/{id}", s.handleUpdate)
			r.Delete("/{id}", s.handleDelete)
			r.Get("/{id}/download", s.handleDownload)
		})

		r.Route("/ratings/documents/{id}", func(r chi.Router) {
			r.Post("/", s.handleRate)
			r.Get("/my-rating", s.handleMyRating)
			r.Delete("/", s.handleRemoveRating)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Post("/analyze-file", s.handleAnalyze)
			r.Post("/generate-summary", s.handleSummary)
			r.Post("/generate-tags", s.handleGenerateTags)
		})
	})

	return r
}

// AddUser registers a user with DefaultPassword and returns it.
func (s *Server) AddUser(username, fullName, group string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(domain.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		FullName: fullName,
		Password: DefaultPassword,
		Group:    group,
	})
}

func (s *Server) addUserLocked(req domain.RegisterRequest) domain.User {
	u := domain.User{
		ID:         id.MustGenerate("usr"),
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Department: req.Department,
		Group:      req.Group,
		CreatedAt:  s.now().UTC(),
	}
	s.users[req.Username] = &account{user: u, password: req.Password}
	return u
}

// AddDocument stores doc as owned by the given user and returns it with ID
// and timestamps filled in when missing.
func (s *Server) AddDocument(owner domain.User, doc domain.Document, content []byte) domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID == "" {
		doc.ID = id.MustGenerate("doc")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	if doc.Visibility == "" {
		doc.Visibility = domain.VisibilityPublic
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	doc.OwnerID = owner.ID
	doc.OwnerName = owner.FullName
	doc.FileSize = int64(len(content))

	s.docs[doc.ID] = &storedDoc{doc: doc, content: content, ratings: map[string]int{}}
	s.order = append(s.order, doc.ID)
	return doc
}

// Document returns the stored version of a document.
func (s *Server) Document(docID string) (domain.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok {
		return domain.Document{}, false
	}
	return d.doc, true
}

// IssueToken signs a token for username valid for ttl (negative for an
// already expired token).
func (s *Server) IssueToken(username string, ttl time.Duration) string {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        id.RequestID(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return signed
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// RequestsTo returns recorded requests whose path equals path.
func (s *Server) RequestsTo(path string) []Recorded {
	var out []Recorded
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Hold blocks matching requests until the returned release func is called.
// Release is idempotent.
func (s *Server) Hold(m Matcher) (release func()) {
	h := &hold{match: m, release: make(chan struct{})}
	s.mu.Lock()
	s.holds = append(s.holds, h)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			for i, x := range s.holds {
				if x == h {
					s.holds = append(s.holds[:i], s.holds[i+1:]...)
					break
				}
			}
			s.mu.Unlock()
			close(h.release)
		})
	}
}

// Fail answers the next n matching requests with status and a detail body.
// n < 0 fails every matching request.
func (s *Server) Fail(m Matcher, status int, detail string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{match: m, status: status, detail: detail, times: n})
}

// Path matches requests to path.
func Path(path string) Matcher {
	return func(r *http.Request) bool { return r.URL.Path == path }
}

// PathAndParam matches requests to path whose query has key=value.
func PathAndParam(path, key, value string) Matcher {
	return func(r *http.Request) bool {
		return r.URL.Path == path && r.URL.Query().Get(key) == value
	}
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Recorded{
			Method:        r.Method,
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) hooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var wait []chan struct{}
		for _, h := range s.holds {
			if h.match(r) {
				wait = append(wait, h.release)
			}
		}
		var fail *failure
		for _, f := range s.failures {
			if f.times != 0 && f.match(r) {
				fail = f
				if f.times > 0 {
					f.times--
				}
				break
			}
		}
		s.mu.Unlock()

		for _, ch := range wait {
			select {
			case <-ch:
			case <-r.Context().Done():
				return
			}
		}

		if fail != nil {
			writeDetail(w, fail.status, fail.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return signingKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.mu.Lock()
		acc, ok := s.users[claims.Subject]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), acc.user)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
