// Package ledger is the transaction store: the current page of entries, its
// pagination metadata and the dashboard aggregate for the selected range.
// Aggregates are only ever replaced by a fetch, never patched locally.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerbook/internal/cache"
	"ledgerbook/internal/core"
	"ledgerbook/internal/events"
	"ledgerbook/internal/log"
	"ledgerbook/internal/ports"
)

// ErrStale is returned by a fetch whose response arrived after a newer fetch
// of the same kind was issued. The response is not applied.
var ErrStale = errors.New("stale response discarded")

const defaultCategoryTTL = 10 * time.Minute

// Query selects one page of the ledger listing.
type Query struct {
	Page   int
	Limit  int
	Filter core.LedgerFilter
}

// State is a point-in-time copy of the store.
type State struct {
	Ledgers []core.Ledger
	Meta    core.PageMeta
	Query   Query
	Status  core.Status
	Error   string

	Dashboard       *core.Dashboard
	Range           core.DateRange
	DashboardStatus core.Status
	DashboardError  string
}

// Authenticator tells the store whether mutations may go out and on whose
// behalf. session.Store satisfies it.
type Authenticator interface {
	Authenticated(ctx context.Context) bool
	CurrentUser() *core.User
}

type Option func(*Store)

func WithPublisher(p events.Publisher) Option {
	return func(s *Store) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentLedger)
		}
	}
}

func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithCategoryTTL sets how long the category list is cached.
func WithCategoryTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.categoryTTL = ttl
		}
	}
}

// WithCacheManager registers the category cache for periodic cleanup.
func WithCacheManager(m *cache.Manager) Option {
	return func(s *Store) { s.cacheManager = m }
}

// Store is safe for concurrent use.
type Store struct {
	gw        ports.LedgerGateway
	auth      Authenticator
	publisher events.Publisher
	logger    *log.Logger

	pageSize     int
	categoryTTL  time.Duration
	categories   *cache.LRUCache[[]core.Category]
	cacheManager *cache.Manager

	mu      sync.RWMutex
	state   State
	listSeq uint64
	dashSeq uint64
}

func New(gw ports.LedgerGateway, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		gw:          gw,
		auth:        auth,
		publisher:   events.Nop{},
		logger:      log.Discard().WithComponent(log.ComponentLedger),
		pageSize:    10,
		categoryTTL: defaultCategoryTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.categories = cache.NewLRUCache[[]core.Category](16, s.categoryTTL)
	if s.cacheManager != nil {
		s.cacheManager.Register(s.categories)
	}
	s.state = State{
		Ledgers:         []core.Ledger{},
		Query:           Query{Page: 1, Limit: s.pageSize},
		Status:          core.StatusIdle,
		DashboardStatus: core.StatusIdle,
	}
	return s
}

// FetchLedgers replaces the current page with page q. Empty filter values
// are left out of the request by the gateway.
func (s *Store) FetchLedgers(ctx context.Context, q Query) (core.LedgerPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = s.pageSize
	}

	s.mu.Lock()
	s.listSeq++
	seq := s.listSeq
	s.state.Query = q
	s.state.Status = core.StatusLoading
	s.state.Error = ""
	s.mu.Unlock()

	page, err := s.gw.ListLedgers(ctx, q.Page, q.Limit, q.Filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.listSeq {
		s.logger.DebugContext(ctx, "dropping stale ledger page", log.FieldSeq, seq, log.FieldPage, q.Page)
		return core.LedgerPage{}, ErrStale
	}
	if err != nil {
		s.state.Status = core.StatusFailed
		s.state.Error = err.Error()
		s.logger.DebugContext(ctx, "ledger page fetch failed",
			log.FieldOperation, log.OpList,
			log.FieldPage, q.Page,
			log.FieldLimit, q.Limit,
			log.FieldError, err.Error())
		return core.LedgerPage{}, err
	}
	if page.Data == nil {
		page.Data = []core.Ledger{}
	}
	s.state.Ledgers = page.Data
	s.state.Meta = page.Meta
	s.state.Status = core.StatusSucceeded
	return page, nil
}

// FetchDashboard loads the aggregate for r. On failure the previous
// aggregate is kept.
func (s *Store) FetchDashboard(ctx context.Context, r core.DateRange) (core.Dashboard, error) {
	s.mu.Lock()
	s.dashSeq++
	seq := s.dashSeq
	s.state.Range = r
	s.state.DashboardStatus = core.StatusLoading
	s.state.DashboardError = ""
	s.mu.Unlock()

	d, err := s.gw.Dashboard(ctx, r)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.dashSeq {
		s.logger.DebugContext(ctx, "dropping stale dashboard", log.FieldSeq, seq)
		return core.Dashboard{}, ErrStale
	}
	if err != nil {
		s.state.DashboardStatus = core.StatusFailed
		s.state.DashboardError = err.Error()
		return core.Dashboard{}, err
	}
	d.Balance = d.Income.Sub(d.Expense)
	s.state.Dashboard = &d
	s.state.DashboardStatus = core.StatusSucceeded
	return d, nil
}

// GetLedger fetches a single entry without touching the store state.
func (s *Store) GetLedger(ctx context.Context, id core.ID) (core.Ledger, error) {
	if id.IsZero() {
		return core.Ledger{}, core.ErrInvalidIDFormat
	}
	l, err := s.gw.GetLedger(ctx, id)
	if err != nil {
		s.logger.DebugContext(ctx, "ledger fetch failed", log.FieldOperation, log.OpRead, log.FieldLedgerID, id.String(), log.FieldError, err.Error())
		return core.Ledger{}, err
	}
	return l, nil
}

// Categories returns the category list, cached per user.
func (s *Store) Categories(ctx context.Context) ([]core.Category, error) {
	key := "categories"
	if s.auth != nil {
		if u := s.auth.CurrentUser(); u != nil {
			key += ":" + u.ID.String()
		}
	}
	cats, err := s.categories.GetOrLoad(ctx, key, s.gw.Categories)
	if err != nil {
		return nil, err
	}
	return slices.Clone(cats), nil
}

// CreateLedger sends in and then resynchronizes the page and dashboard.
func (s *Store) CreateLedger(ctx context.Context, in core.LedgerInput) (core.Ledger, error) {
	if err := s.authorize(ctx); err != nil {
		return core.Ledger{}, err
	}
	if err := in.Validate(); err != nil {
		return core.Ledger{}, err
	}

	s.begin()
	l, err := s.gw.CreateLedger(ctx, in)
	if err != nil {
		s.fail(err)
		return core.Ledger{}, err
	}
	s.logger.InfoContext(ctx, "ledger created",
		log.NewFields().WithOperation(log.OpCreate).WithLedger(l.ID.String(), string(l.Type), l.Amount.String()).ToSlice()...)

	s.publish(ctx, events.OpCreated, l)
	s.resync(ctx)
	return l, nil
}

// UpdateLedger applies the set fields of p to entry id.
func (s *Store) UpdateLedger(ctx context.Context, id core.ID, p core.LedgerPatch) (core.Ledger, error) {
	if err := s.authorize(ctx); err != nil {
		return core.Ledger{}, err
	}
	if id.IsZero() {
		return core.Ledger{}, core.ErrInvalidIDFormat
	}
	if err := p.Validate(); err != nil {
		return core.Ledger{}, err
	}

	s.begin()
	l, err := s.gw.UpdateLedger(ctx, id, p)
	if err != nil {
		s.fail(err)
		return core.Ledger{}, err
	}
	s.logger.InfoContext(ctx, "ledger updated", log.FieldOperation, log.OpUpdate, log.FieldLedgerID, id.String())

	s.publish(ctx, events.OpUpdated, l)
	s.resync(ctx)
	return l, nil
}

// DeleteLedger removes entry id. The list is left as it was on failure. On
// success the current page is fetched again; if it is now past the last
// page the store steps back to the last page.
func (s *Store) DeleteLedger(ctx context.Context, id core.ID) error {
	if err := s.authorize(ctx); err != nil {
		return err
	}
	if id.IsZero() {
		return core.ErrInvalidIDFormat
	}

	s.begin()
	if err := s.gw.DeleteLedger(ctx, id); err != nil {
		s.fail(err)
		return err
	}
	s.logger.InfoContext(ctx, "ledger deleted", log.FieldOperation, log.OpDelete, log.FieldLedgerID, id.String())

	s.publish(ctx, events.OpDeleted, core.Ledger{ID: id})
	s.resync(ctx)

	s.mu.RLock()
	q, meta, status := s.state.Query, s.state.Meta, s.state.Status
	s.mu.RUnlock()
	if status == core.StatusSucceeded && q.Page > max(meta.TotalPages, 1) {
		q.Page = core.ClampPage(q.Page, meta.TotalPages)
		if _, err := s.FetchLedgers(ctx, q); err != nil && !errors.Is(err, ErrStale) {
			s.logger.WarnContext(ctx, "refetch after clamp failed", log.FieldPage, q.Page, log.FieldError, err.Error())
		}
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Ledgers = slices.Clone(st.Ledgers)
	if st.Dashboard != nil {
		d := *st.Dashboard
		d.Categories = slices.Clone(d.Categories)
		st.Dashboard = &d
	}
	return st
}

func (s *Store) authorize(ctx context.Context) error {
	if s.auth == nil || !s.auth.Authenticated(ctx) {
		s.fail(core.ErrUnauthenticated)
		return core.ErrUnauthenticated
	}
	return nil
}

// resync re-fetches the current page and the dashboard concurrently. Their
// failures land in the store state and are not reported to the mutation.
func (s *Store) resync(ctx context.Context) {
	s.mu.RLock()
	q, r := s.state.Query, s.state.Range
	s.mu.RUnlock()

	var g errgroup.Group
	g.Go(func() error {
		_, err := s.FetchLedgers(ctx, q)
		return ignoreStale(err)
	})
	g.Go(func() error {
		_, err := s.FetchDashboard(ctx, r)
		return ignoreStale(err)
	})
	if err := g.Wait(); err != nil {
		s.logger.WarnContext(ctx, "resync after mutation failed", log.FieldError, err.Error())
	}
}

func (s *Store) publish(ctx context.Context, op events.Op, l core.Ledger) {
	var userID core.ID
	if u := s.auth.CurrentUser(); u != nil {
		userID = u.ID
	}
	if err := s.publisher.Publish(ctx, events.NewLedgerEvent(op, l, userID)); err != nil {
		s.logger.WarnContext(ctx, "publish ledger event",
			log.FieldOperation, log.OpPublish, log.FieldLedgerID, l.ID.String(), log.FieldError, err.Error())
	}
}

func (s *Store) begin() {
	s.mu.Lock()
	s.state.Status = core.StatusLoading
	s.state.Error = ""
	s.mu.Unlock()
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	s.state.Status = core.StatusFailed
	s.state.Error = err.Error()
	s.mu.Unlock()
}

func ignoreStale(err error) error {
	if errors.Is(err, ErrStale) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resync: %w", err)
	}
	return nil
}
