package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"ledgerbook/internal/backend"
	"ledgerbook/internal/cache"
	"ledgerbook/internal/cli"
	"ledgerbook/internal/config"
	"ledgerbook/internal/core"
	"ledgerbook/internal/ledger"
	"ledgerbook/internal/log"
	"ledgerbook/internal/session"
)

const cacheCleanInterval = time.Minute

var errNotSignedIn = errors.New("not signed in, run `ledgerbook login` first")

// app holds everything one command invocation needs.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	nav    *cli.TerminalNavigator

	backend *backend.BackendResult
	session *session.Store
	ledgers *ledger.Store
	caches  *cache.Manager

	stdin  io.Reader
	in     *bufio.Reader
	stdout io.Writer
	stderr io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, logger *log.Logger, command string, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	nav := cli.NewTerminalNavigator(stderr, command)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	bcfg.Navigator = nav
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", cfg.DataBackend, err)
	}

	sess := session.New(res.Gateway, res.Credentials, logger)
	caches := cache.NewManager(logger)
	store := ledger.New(res.Gateway, sess,
		ledger.WithLogger(logger),
		ledger.WithPublisher(res.Publisher),
		ledger.WithPageSize(cfg.PageSize),
		ledger.WithCategoryTTL(cfg.CategoryCacheTTL),
		ledger.WithCacheManager(caches),
	)
	caches.Start(ctx, cacheCleanInterval)

	return &app{
		cfg:     cfg,
		logger:  logger,
		nav:     nav,
		backend: res,
		session: sess,
		ledgers: store,
		caches:  caches,
		stdin:   stdin,
		in:      bufio.NewReader(stdin),
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}

func (a *app) close() error {
	a.caches.Stop()
	return a.backend.Cleanup()
}

// restore signs the stored session back in.
func (a *app) restore(ctx context.Context) error {
	err := a.session.Restore(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return errNotSignedIn
	}
	if err != nil {
		return err
	}
	if !a.session.Authenticated(ctx) {
		return errNotSignedIn
	}
	return nil
}

// prompt reads one line, printing label first when stdin is interactive.
func (a *app) prompt(label string) (string, error) {
	if a.interactive() {
		fmt.Fprint(a.stderr, label)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.TrimSpace(label), ":"), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// password reads a secret without echo on a terminal and as a plain line
// otherwise.
func (a *app) password(label string) (string, error) {
	f, ok := a.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return a.prompt(label)
	}
	fmt.Fprint(a.stderr, label)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(a.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func (a *app) interactive() bool {
	f, ok := a.stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// allLedgers walks every page of the listing that matches f.
func (a *app) allLedgers(ctx context.Context, f core.LedgerFilter) ([]core.Ledger, error) {
	const limit = 100
	var out []core.Ledger
	for page := 1; ; page++ {
		p, err := a.ledgers.FetchLedgers(ctx, ledger.Query{Page: page, Limit: limit, Filter: f})
		if err != nil {
			return nil, err
		}
		out = append(out, p.Data...)
		if page >= p.Meta.TotalPages || len(p.Data) == 0 {
			return out, nil
		}
	}
}

// resolveCategory accepts a category id or its exact name.
func (a *app) resolveCategory(ctx context.Context, ref string) (core.ID, error) {
	ref = strings.TrimSpace(ref)
	cats, err := a.ledgers.Categories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if string(c.ID) == ref || strings.EqualFold(c.Name, ref) {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("unknown category %q, see `ledgerbook categories`", ref)
}
