package ledger

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerbook/internal/api"
	"ledgerbook/internal/apitest"
	"ledgerbook/internal/core"
	"ledgerbook/internal/credentials"
	"ledgerbook/internal/events"
	"ledgerbook/internal/ports"
	"ledgerbook/internal/storage"
)

const testEmail = "user@example.com"

type fakeAuth struct {
	ok   bool
	user *core.User
}

func (a fakeAuth) Authenticated(context.Context) bool { return a.ok }
func (a fakeAuth) CurrentUser() *core.User            { return a.user }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LedgerEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e events.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Ops() []events.Op {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := make([]events.Op, len(p.events))
	for i, e := range p.events {
		ops[i] = e.Op
	}
	return ops
}

type fixture struct {
	srv   *apitest.Server
	store *Store
	pub   *recordingPublisher
	user  core.User
}

func newFixture(t *testing.T, authenticated bool, entries ...core.Ledger) fixture {
	t.Helper()
	srv := apitest.New(t)
	user := srv.AddUser("Test User", testEmail, "secret1")
	srv.Seed(testEmail, entries...)

	creds := credentials.NewManager(storage.NewMemory())
	require.NoError(t, creds.Set(context.Background(), srv.IssueTokens(testEmail)))

	client, err := api.New(srv.BaseURL(), creds, api.WithTimeout(5*time.Second))
	require.NoError(t, err)

	pub := &recordingPublisher{}
	store := New(client, fakeAuth{ok: authenticated, user: &user}, WithPublisher(pub), WithPageSize(5))
	return fixture{srv: srv, store: store, pub: pub, user: user}
}

func seedEntries(n int) []core.Ledger {
	out := make([]core.Ledger, 0, n)
	for i := 1; i <= n; i++ {
		typ, cat := core.Expense, core.ID("4")
		if i%3 == 0 {
			typ, cat = core.Income, core.ID("1")
		}
		out = append(out, core.Ledger{
			Type:       typ,
			Amount:     decimal.NewFromInt(int64(i * 100)),
			CategoryID: cat,
			Date:       core.NewDate(2025, 5, i),
		})
	}
	return out
}

func TestMutationsRequireSession(t *testing.T) {
	f := newFixture(t, false, seedEntries(3)...)
	ctx := context.Background()

	_, err := f.store.CreateLedger(ctx, core.LedgerInput{Type: core.Income, Amount: decimal.NewFromInt(1), CategoryID: "1", Date: core.NewDate(2025, 5, 1)})
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	remark := "x"
	_, err = f.store.UpdateLedger(ctx, "1", core.LedgerPatch{Remark: &remark})
	assert.ErrorIs(t, err, core.ErrUnauthenticated)

	assert.ErrorIs(t, f.store.DeleteLedger(ctx, "1"), core.ErrUnauthenticated)

	assert.Zero(t, f.srv.Hits(http.MethodPost, "/ledger"))
	assert.Zero(t, f.srv.Hits(http.MethodPut, "/ledger/1"))
	assert.Zero(t, f.srv.Hits(http.MethodDelete, "/ledger/1"))

	st := f.store.Snapshot()
	assert.Equal(t, core.StatusFailed, st.Status)
	assert.Equal(t, "No authenticated user", st.Error)
	assert.Empty(t, f.pub.Ops())
}

func TestFetchLedgersReplacesPage(t *testing.T) {
	f := newFixture(t, true, seedEntries(12)...)

	page, err := f.store.FetchLedgers(context.Background(), Query{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Len(t, page.Data, 5)

	st := f.store.Snapshot()
	assert.Equal(t, core.StatusSucceeded, st.Status)
	assert.Equal(t, 12, st.Meta.Total)
	assert.Equal(t, 3, st.Meta.TotalPages)
	assert.Equal(t, 2, st.Meta.Page)
	assert.Equal(t, "2025-05-07", st.Ledgers[0].Date.String())
}

func TestFetchLedgersFailureKeepsData(t *testing.T) {
	f := newFixture(t, true, seedEntries(3)...)
	ctx := context.Background()

	_, err := f.store.FetchLedgers(ctx, Query{Page: 1, Limit: 5})
	require.NoError(t, err)

	f.srv.FailNext(http.MethodGet, "/ledger", http.StatusInternalServerError, "database down")
	_, err = f.store.FetchLedgers(ctx, Query{Page: 1, Limit: 5})
	require.Error(t, err)

	st := f.store.Snapshot()
	assert.Equal(t, core.StatusFailed, st.Status)
	assert.Equal(t, "database down", st.Error)
	assert.Len(t, st.Ledgers, 3)
}

func TestCreateThenDashboardReflectsAmount(t *testing.T) {
	f := newFixture(t, true, seedEntries(3)...)
	ctx := context.Background()

	before, err := f.store.FetchDashboard(ctx, core.DateRange{})
	require.NoError(t, err)

	created, err := f.store.CreateLedger(ctx, core.LedgerInput{
		Type:       core.Income,
		Amount:     decimal.RequireFromString("1234.50"),
		CategoryID: "2",
		Date:       core.NewDate(2025, 5, 20),
		Remark:     "bonus",
	})
	require.NoError(t, err)
	assert.False(t, created.ID.IsZero())

	st := f.store.Snapshot()
	require.NotNil(t, st.Dashboard)
	assert.True(t, st.Dashboard.Income.Equal(before.Income.Add(decimal.RequireFromString("1234.50"))))
	assert.True(t, st.Dashboard.Expense.Equal(before.Expense))
	assert.True(t, st.Dashboard.Balance.Equal(st.Dashboard.Income.Sub(st.Dashboard.Expense)))

	after, err := f.store.FetchDashboard(ctx, core.DateRange{})
	require.NoError(t, err)
	assert.True(t, after.Income.Sub(before.Income).Equal(decimal.RequireFromString("1234.5")))

	assert.Equal(t, 1, f.srv.Hits(http.MethodPost, "/ledger"))
	assert.Equal(t, []events.Op{events.OpCreated}, f.pub.Ops())
}

func TestCreateValidatesLocally(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.store.CreateLedger(context.Background(), core.LedgerInput{Type: core.Expense, Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, core.ErrMissingFields)
	assert.Zero(t, f.srv.Hits(http.MethodPost, "/ledger"))
}

func TestUpdateResyncsCurrentQuery(t *testing.T) {
	f := newFixture(t, true, seedEntries(8)...)
	ctx := context.Background()

	q := Query{Page: 1, Limit: 5, Filter: core.LedgerFilter{Type: core.Expense}}
	_, err := f.store.FetchLedgers(ctx, q)
	require.NoError(t, err)
	listHits := f.srv.Hits(http.MethodGet, "/ledger")

	income := core.Income
	_, err = f.store.UpdateLedger(ctx, "8", core.LedgerPatch{Type: &income, CategoryID: ptr(core.ID("1"))})
	require.NoError(t, err)

	assert.Equal(t, listHits+1, f.srv.Hits(http.MethodGet, "/ledger"))
	assert.Equal(t, 1, f.srv.Hits(http.MethodGet, "/dashboard"))

	st := f.store.Snapshot()
	assert.Equal(t, q, st.Query)
	for _, l := range st.Ledgers {
		assert.Equal(t, core.Expense, l.Type)
		assert.NotEqual(t, core.ID("8"), l.ID)
	}
	assert.Equal(t, []events.Op{events.OpUpdated}, f.pub.Ops())
}

func TestDeleteFailureLeavesListUntouched(t *testing.T) {
	f := newFixture(t, true, seedEntries(4)...)
	ctx := context.Background()

	_, err := f.store.FetchLedgers(ctx, Query{Page: 1, Limit: 5})
	require.NoError(t, err)
	before := f.store.Snapshot().Ledgers

	f.srv.FailNext(http.MethodDelete, "/ledger/2", http.StatusForbidden, "Forbidden")
	err = f.store.DeleteLedger(ctx, "2")
	require.Error(t, err)

	st := f.store.Snapshot()
	assert.Equal(t, core.StatusFailed, st.Status)
	assert.Equal(t, "Forbidden", st.Error)
	assert.Equal(t, before, st.Ledgers)
	assert.Empty(t, f.pub.Ops())
}

func TestDeleteLastItemClampsPage(t *testing.T) {
	f := newFixture(t, true, seedEntries(11)...)
	ctx := context.Background()

	page, err := f.store.FetchLedgers(ctx, Query{Page: 3, Limit: 5})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)

	require.NoError(t, f.store.DeleteLedger(ctx, page.Data[0].ID))

	st := f.store.Snapshot()
	assert.Equal(t, core.StatusSucceeded, st.Status)
	assert.Equal(t, 2, st.Query.Page)
	assert.Equal(t, 2, st.Meta.TotalPages)
	assert.Len(t, st.Ledgers, 5)
	assert.Len(t, f.srv.Ledgers(testEmail), 10)
	assert.Equal(t, []events.Op{events.OpDeleted}, f.pub.Ops())
}

func TestStoreWithoutAuthenticator(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	creds := credentials.NewManager(storage.NewMemory())
	require.NoError(t, creds.Set(ctx, f.srv.IssueTokens(testEmail)))
	client, err := api.New(f.srv.BaseURL(), creds)
	require.NoError(t, err)
	store := New(client, nil)

	cats, err := store.Categories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, len(apitest.DefaultCategories()))

	_, err = store.CreateLedger(ctx, core.LedgerInput{
		Type:       core.Expense,
		Amount:     decimal.NewFromInt(10),
		CategoryID: "4",
		Date:       core.NewDate(2025, 5, 1),
	})
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestCategoriesAreCached(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	first, err := f.store.Categories(ctx)
	require.NoError(t, err)
	second, err := f.store.Categories(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, len(apitest.DefaultCategories()))
	assert.Equal(t, 1, f.srv.Hits(http.MethodGet, "/ledger_category"))
}

func TestGetLedger(t *testing.T) {
	f := newFixture(t, true, seedEntries(2)...)

	l, err := f.store.GetLedger(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "อาหาร", l.CategoryName())

	_, err = f.store.GetLedger(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrInvalidIDFormat)
}

// gatedGateway holds each ListLedgers call until its gate is released.
type gatedGateway struct {
	ports.LedgerGateway
	gates map[int]chan struct{}
}

func (g *gatedGateway) ListLedgers(ctx context.Context, page, limit int, _ core.LedgerFilter) (core.LedgerPage, error) {
	<-g.gates[page]
	return core.LedgerPage{
		Data: []core.Ledger{{ID: core.ID(strconv.Itoa(page))}},
		Meta: core.NewPageMeta(50, page, limit),
	}, nil
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	gw := &gatedGateway{gates: map[int]chan struct{}{1: make(chan struct{}), 2: make(chan struct{})}}
	store := New(gw, fakeAuth{ok: true})
	ctx := context.Background()

	oldDone := make(chan error, 1)
	go func() {
		_, err := store.FetchLedgers(ctx, Query{Page: 1, Limit: 10})
		oldDone <- err
	}()
	require.Eventually(t, func() bool { return store.Snapshot().Query.Page == 1 && store.Snapshot().Status == core.StatusLoading }, time.Second, time.Millisecond)

	newDone := make(chan error, 1)
	go func() {
		_, err := store.FetchLedgers(ctx, Query{Page: 2, Limit: 10})
		newDone <- err
	}()
	require.Eventually(t, func() bool { return store.Snapshot().Query.Page == 2 }, time.Second, time.Millisecond)

	close(gw.gates[2])
	require.NoError(t, <-newDone)
	close(gw.gates[1])
	assert.ErrorIs(t, <-oldDone, ErrStale)

	st := store.Snapshot()
	assert.Equal(t, 2, st.Meta.Page)
	require.Len(t, st.Ledgers, 1)
	assert.Equal(t, core.ID("2"), st.Ledgers[0].ID)
}

func ptr[T any](v T) *T { return &v }
