// Package apitest runs an in-process fake of the ledger REST API for tests.
// It keeps users, tokens and ledgers in memory and exposes knobs to expire
// tokens, count calls and inject failures.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ledgerbook/internal/core"
)

// APIPrefix is the path the fake API is mounted under.
const APIPrefix = "/api/v1"

type account struct {
	user     core.User
	password string
}

type failure struct {
	status  int
	message string
}

type Server struct {
	srv *httptest.Server

	mu         sync.Mutex
	users      map[string]*account // by email
	access     map[string]core.ID  // token -> user id
	refresh    map[string]core.ID
	ledgers    map[core.ID][]core.Ledger
	categories []core.Category
	nextUser   int
	nextLedger int
	hits       map[string]int
	failures   map[string][]failure

	refreshHook func()
	now         func() time.Time
}

// DefaultCategories mirrors the production category table.
func DefaultCategories() []core.Category {
	return []core.Category{
		{ID: "1", Name: "เงินเดือน", Type: core.Income},
		{ID: "2", Name: "โบนัส", Type: core.Income},
		{ID: "3", Name: "รายได้เสริม", Type: core.Income},
		{ID: "4", Name: "อาหาร", Type: core.Expense},
		{ID: "5", Name: "การเดินทาง", Type: core.Expense},
		{ID: "6", Name: "ความบันเทิง", Type: core.Expense},
		{ID: "7", Name: "ค่าเช่า", Type: core.Expense},
		{ID: "8", Name: "สาธารณูปโภค", Type: core.Expense},
	}
}

// New starts a fake API and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:      map[string]*account{},
		access:     map[string]core.ID{},
		refresh:    map[string]core.ID{},
		ledgers:    map[core.ID][]core.Ledger{},
		categories: DefaultCategories(),
		hits:       map[string]int{},
		failures:   map[string][]failure{},
		now:        time.Now,
	}
	s.srv = httptest.NewServer(s.routes())
	t.Cleanup(s.srv.Close)
	return s
}

// BaseURL is the API root to hand to api.New.
func (s *Server) BaseURL() string {
	return s.srv.URL + APIPrefix
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/user/login", s.handleLogin)
		r.Post("/user/register", s.handleRegister)
		r.Post("/user/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/user/profile", s.handleProfile)
			r.Get("/user/logout", s.handleLogout)

			r.Get("/ledger", s.handleListLedgers)
			r.Post("/ledger", s.handleCreateLedger)
			r.Get("/ledger/{id}", s.handleGetLedger)
			r.Put("/ledger/{id}", s.handleUpdateLedger)
			r.Delete("/ledger/{id}", s.handleDeleteLedger)

			r.Get("/ledger_category", s.handleCategories)
			r.Get("/dashboard", s.handleDashboard)
		})
	})
	return r
}

// AddUser registers an account directly.
func (s *Server) AddUser(name, email, password string) core.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(name, email, password)
}

func (s *Server) addUserLocked(name, email, password string) core.User {
	s.nextUser++
	now := s.now().UTC()
	u := core.User{
		ID:        core.ID(strconv.Itoa(s.nextUser)),
		StatusID:  1,
		Email:     email,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[email] = &account{user: u, password: password}
	return u
}

// IssueTokens logs email in without an HTTP round trip.
func (s *Server) IssueTokens(email string) core.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[email]
	if !ok {
		return core.Tokens{}
	}
	return s.issueLocked(a.user.ID)
}

func (s *Server) issueLocked(userID core.ID) core.Tokens {
	t := core.Tokens{
		AccessToken:  "at-" + uuid.NewString(),
		RefreshToken: "rt-" + uuid.NewString(),
	}
	s.access[t.AccessToken] = userID
	s.refresh[t.RefreshToken] = userID
	return t
}

// ExpireAccessTokens invalidates every issued access token.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.access)
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.refresh)
}

// OnRefresh runs fn inside every refresh request before it is answered.
func (s *Server) OnRefresh(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshHook = fn
}

// Hits counts requests by method and path below the prefix, e.g.
// Hits("GET", "/ledger").
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// FailNext makes the next request to method and path answer status with a
// message body. An empty message sends an empty JSON object.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.failures[key] = append(s.failures[key], failure{status: status, message: message})
}

// Seed stores entries for the account with the given email, assigning ids
// and category names where missing.
func (s *Server) Seed(email string, entries ...core.Ledger) []core.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[email]
	if !ok {
		return nil
	}
	out := make([]core.Ledger, 0, len(entries))
	for _, e := range entries {
		if e.ID.IsZero() {
			s.nextLedger++
			e.ID = core.ID(strconv.Itoa(s.nextLedger))
		}
		e.UserID = a.user.ID
		e.Category = s.categoryLocked(e.CategoryID)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.now().UTC()
		}
		s.ledgers[a.user.ID] = append(s.ledgers[a.user.ID], e)
		out = append(out, e)
	}
	return out
}

// Ledgers returns a copy of the stored entries for email.
func (s *Server) Ledgers(email string) []core.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.users[email]
	if !ok {
		return nil
	}
	return append([]core.Ledger(nil), s.ledgers[a.user.ID]...)
}

func (s *Server) categoryLocked(id core.ID) core.Category {
	for _, c := range s.categories {
		if c.ID == id {
			return core.Category{ID: c.ID, Name: c.Name}
		}
	}
	return core.Category{ID: id}
}

type userKey struct{}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, APIPrefix)

		s.mu.Lock()
		s.hits[key]++
		var f *failure
		if queued := s.failures[key]; len(queued) > 0 {
			f = &queued[0]
			s.failures[key] = queued[1:]
		}
		s.mu.Unlock()

		if f != nil {
			writeMessage(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		userID, valid := s.access[token]
		s.mu.Unlock()
		if !ok || !valid {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), userID)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, map[string]any{"message": message, "data": data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	if message == "" {
		writeJSON(w, status, map[string]any{})
		return
	}
	writeJSON(w, status, map[string]any{"message": message, "statusCode": status})
}
