// Package offline is a self-contained demo data source. It signs in a single
// demo account and keeps that account's transactions in local storage, so
// the client can run without the remote API.
package offline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ledgerbook/internal/core"
	"ledgerbook/internal/log"
	"ledgerbook/internal/pipeline"
	"ledgerbook/internal/ports"
	"ledgerbook/internal/storage"
)

const sessionKey = "offline-session"

var (
	ErrInvalidCredentials = errors.New("Email หรือรหัสผ่านไม่ถูกต้อง")
	ErrNotFound           = errors.New("Ledger not found")
	ErrRegisterOffline    = errors.New("registration is not available in offline mode")
)

var _ ports.Gateway = (*Backend)(nil)

var demoHash = sync.OnceValues(func() ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
})

// Backend implements ports.Gateway over a storage.KV.
type Backend struct {
	kv     storage.KV
	logger *log.Logger
	now    func() time.Time

	// mu serializes read-modify-write cycles on the stored list.
	mu sync.Mutex
}

func New(kv storage.KV, logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.Discard()
	}
	return &Backend{
		kv:     kv,
		logger: logger.WithComponent(log.ComponentOffline),
		now:    time.Now,
	}
}

func (b *Backend) Login(ctx context.Context, email, password string) (ports.LoginResult, error) {
	hash, err := demoHash()
	if err != nil {
		return ports.LoginResult{}, fmt.Errorf("hash demo password: %w", err)
	}
	if email != DemoEmail ||
		bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ports.LoginResult{}, ErrInvalidCredentials
	}

	u := DemoUser
	if err := storage.SetJSON(ctx, b.kv, sessionKey, u); err != nil {
		return ports.LoginResult{}, err
	}
	b.logger.InfoContext(ctx, "demo login", log.FieldOperation, log.OpLogin, log.FieldUserID, u.ID.String())

	return ports.LoginResult{
		Tokens: core.Tokens{AccessToken: "offline-" + uuid.NewString(), RefreshToken: "offline-" + uuid.NewString()},
		User:   &u,
	}, nil
}

func (b *Backend) Register(context.Context, core.Registration) (core.User, error) {
	return core.User{}, ErrRegisterOffline
}

func (b *Backend) Logout(ctx context.Context) error {
	return b.kv.Remove(ctx, sessionKey)
}

func (b *Backend) Profile(ctx context.Context) (core.User, error) {
	return b.user(ctx)
}

func (b *Backend) ListLedgers(ctx context.Context, page, limit int, f core.LedgerFilter) (core.LedgerPage, error) {
	_, entries, err := b.load(ctx)
	if err != nil {
		return core.LedgerPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = pipeline.DefaultPageSize
	}

	matched := pipeline.ApplyFilter(entries, f)
	return core.LedgerPage{
		Data: pipeline.Paginate(matched, page, limit),
		Meta: core.NewPageMeta(len(matched), page, limit),
	}, nil
}

func (b *Backend) GetLedger(ctx context.Context, id core.ID) (core.Ledger, error) {
	_, entries, err := b.load(ctx)
	if err != nil {
		return core.Ledger{}, err
	}
	i := slices.IndexFunc(entries, func(l core.Ledger) bool { return l.ID == id })
	if i < 0 {
		return core.Ledger{}, ErrNotFound
	}
	return entries[i], nil
}

// CreateLedger puts the new entry at the front of the list.
func (b *Backend) CreateLedger(ctx context.Context, in core.LedgerInput) (core.Ledger, error) {
	if err := in.Validate(); err != nil {
		return core.Ledger{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, entries, err := b.load(ctx)
	if err != nil {
		return core.Ledger{}, err
	}

	l := core.Ledger{
		ID:         core.ID(uuid.NewString()),
		Type:       in.Type,
		Amount:     in.Amount,
		CategoryID: in.CategoryID,
		Category:   category(in.CategoryID),
		Date:       in.Date,
		Remark:     in.Remark,
		UserID:     u.ID,
		CreatedAt:  b.now().UTC(),
	}
	if err := b.save(ctx, u, append([]core.Ledger{l}, entries...)); err != nil {
		return core.Ledger{}, err
	}
	return l, nil
}

func (b *Backend) UpdateLedger(ctx context.Context, id core.ID, p core.LedgerPatch) (core.Ledger, error) {
	if err := p.Validate(); err != nil {
		return core.Ledger{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, entries, err := b.load(ctx)
	if err != nil {
		return core.Ledger{}, err
	}
	i := slices.IndexFunc(entries, func(l core.Ledger) bool { return l.ID == id })
	if i < 0 {
		return core.Ledger{}, ErrNotFound
	}

	l := p.Apply(entries[i])
	l.Category = category(l.CategoryID)
	now := b.now().UTC()
	l.UpdatedAt = &now
	entries[i] = l
	if err := b.save(ctx, u, entries); err != nil {
		return core.Ledger{}, err
	}
	return l, nil
}

// DeleteLedger removes id and keeps the remaining entries in order.
func (b *Backend) DeleteLedger(ctx context.Context, id core.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, entries, err := b.load(ctx)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(entries, func(l core.Ledger) bool { return l.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	return b.save(ctx, u, slices.Delete(entries, i, i+1))
}

func (b *Backend) Categories(ctx context.Context) ([]core.Category, error) {
	if _, err := b.user(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(Categories), nil
}

// Dashboard is computed from the stored list.
func (b *Backend) Dashboard(ctx context.Context, r core.DateRange) (core.Dashboard, error) {
	_, entries, err := b.load(ctx)
	if err != nil {
		return core.Dashboard{}, err
	}
	return core.SummarizeRange(entries, r), nil
}

func (b *Backend) user(ctx context.Context) (core.User, error) {
	var u core.User
	ok, err := storage.GetJSON(ctx, b.kv, sessionKey, &u)
	if err != nil {
		return core.User{}, err
	}
	if !ok {
		return core.User{}, core.ErrUnauthenticated
	}
	return u, nil
}

// load returns the signed-in user's list, seeding it with the demo
// transactions on first access.
func (b *Backend) load(ctx context.Context) (core.User, []core.Ledger, error) {
	u, err := b.user(ctx)
	if err != nil {
		return core.User{}, nil, err
	}

	var entries []core.Ledger
	ok, err := storage.GetJSON(ctx, b.kv, storage.TransactionsKey(u.ID.String()), &entries)
	if err != nil {
		return core.User{}, nil, err
	}
	if !ok {
		entries = DemoTransactions(b.now())
		if err := b.save(ctx, u, entries); err != nil {
			return core.User{}, nil, err
		}
		b.logger.DebugContext(ctx, "seeded demo transactions", log.FieldUserID, u.ID.String())
	}
	if entries == nil {
		entries = []core.Ledger{}
	}
	return u, entries, nil
}

func (b *Backend) save(ctx context.Context, u core.User, entries []core.Ledger) error {
	if err := storage.SetJSON(ctx, b.kv, storage.TransactionsKey(u.ID.String()), entries); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	return nil
}
