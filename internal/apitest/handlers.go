package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"ledgerbook/internal/core"
)

func withUser(ctx context.Context, id core.ID) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

func userFrom(r *http.Request) core.ID {
	id, _ := r.Context().Value(userKey{}).(core.ID)
	return id
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	a, ok := s.users[body.Email]
	if !ok || a.password != body.Password {
		s.mu.Unlock()
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	tokens := s.issueLocked(a.user.ID)
	s.mu.Unlock()

	writeData(w, http.StatusCreated, "Login successful", tokens)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" || body.Email == "" || body.Password == "" {
		writeMessage(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[body.Email]; exists {
		s.mu.Unlock()
		writeMessage(w, http.StatusConflict, "Email already exists")
		return
	}
	u := s.addUserLocked(body.Name, body.Email, body.Password)
	s.mu.Unlock()

	writeData(w, http.StatusCreated, "Register successful", u)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.mu.Lock()
	hook := s.refreshHook
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	userID, ok := s.refresh[body.RefreshToken]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	delete(s.refresh, body.RefreshToken)
	tokens := s.issueLocked(userID)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, tokens)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.users {
		if a.user.ID == userFrom(r) {
			writeData(w, http.StatusOK, "", a.user)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "User not found")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.access, token)
	s.mu.Unlock()
	writeData(w, http.StatusOK, "Logout successful", nil)
}

func (s *Server) handleListLedgers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := atoiDefault(q.Get("page"), 1)
	limit := atoiDefault(q.Get("limit"), 10)

	var f core.LedgerFilter
	var err error
	if f.Type, err = core.ParseTypeFilter(q.Get("type")); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Range.Start, err = core.ParseDate(q.Get("startDate")); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Range.End, err = core.ParseDate(q.Get("endDate")); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	f.Search = strings.ToLower(q.Get("search"))

	s.mu.Lock()
	var matched []core.Ledger
	for _, e := range s.ledgers[userFrom(r)] {
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if !f.Range.Contains(e.When()) {
			continue
		}
		if f.Search != "" &&
			!strings.Contains(strings.ToLower(e.Remark), f.Search) &&
			!strings.Contains(strings.ToLower(e.CategoryName()), f.Search) {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.Unlock()

	asc := strings.EqualFold(q.Get("sortDirection"), "asc")
	slices.SortStableFunc(matched, func(a, b core.Ledger) int {
		c := a.When().Compare(b.When())
		if c == 0 {
			c = core.CompareIDs(a.ID, b.ID)
		}
		if asc {
			return c
		}
		return -c
	})

	meta := core.NewPageMeta(len(matched), page, limit)
	start := min(meta.Offset(), len(matched))
	end := min(start+limit, len(matched))
	data := matched[start:end]
	if data == nil {
		data = []core.Ledger{}
	}

	// The production API echoes page and limit back as strings.
	writeData(w, http.StatusOK, "", map[string]any{
		"data": data,
		"meta": map[string]any{
			"total":      meta.Total,
			"page":       strconv.Itoa(page),
			"limit":      strconv.Itoa(limit),
			"totalPages": meta.TotalPages,
		},
	})
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(userFrom(r), core.ID(chi.URLParam(r, "id")))
	if i < 0 {
		writeMessage(w, http.StatusNotFound, "Ledger not found")
		return
	}
	writeData(w, http.StatusOK, "", s.ledgers[userFrom(r)][i])
}

func (s *Server) handleCreateLedger(w http.ResponseWriter, r *http.Request) {
	var in core.LedgerInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.nextLedger++
	userID := userFrom(r)
	l := core.Ledger{
		ID:         core.ID(strconv.Itoa(s.nextLedger)),
		Type:       in.Type,
		Amount:     in.Amount,
		CategoryID: in.CategoryID,
		Category:   s.categoryLocked(in.CategoryID),
		Date:       in.Date,
		Remark:     in.Remark,
		UserID:     userID,
		StatusID:   1,
		CreatedAt:  s.now().UTC(),
	}
	s.ledgers[userID] = append(s.ledgers[userID], l)
	s.mu.Unlock()

	writeData(w, http.StatusCreated, "Ledger created", l)
}

func (s *Server) handleUpdateLedger(w http.ResponseWriter, r *http.Request) {
	var p core.LedgerPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := p.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	userID := userFrom(r)
	i := s.indexLocked(userID, core.ID(chi.URLParam(r, "id")))
	if i < 0 {
		writeMessage(w, http.StatusNotFound, "Ledger not found")
		return
	}
	l := p.Apply(s.ledgers[userID][i])
	l.Category = s.categoryLocked(l.CategoryID)
	now := s.now().UTC()
	l.UpdatedAt = &now
	s.ledgers[userID][i] = l
	writeData(w, http.StatusOK, "Ledger updated", l)
}

func (s *Server) handleDeleteLedger(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID := userFrom(r)
	i := s.indexLocked(userID, core.ID(chi.URLParam(r, "id")))
	if i < 0 {
		writeMessage(w, http.StatusNotFound, "Ledger not found")
		return
	}
	s.ledgers[userID] = slices.Delete(s.ledgers[userID], i, i+1)
	writeData(w, http.StatusOK, "Ledger deleted", nil)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeData(w, http.StatusOK, "", s.categories)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	start, err := core.ParseDate(r.URL.Query().Get("startDate"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := core.ParseDate(r.URL.Query().Get("endDate"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	d := core.SummarizeRange(s.ledgers[userFrom(r)], core.DateRange{Start: start, End: end})
	s.mu.Unlock()
	writeData(w, http.StatusOK, "", d)
}

func (s *Server) indexLocked(userID, id core.ID) int {
	return slices.IndexFunc(s.ledgers[userID], func(l core.Ledger) bool { return l.ID == id })
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}
