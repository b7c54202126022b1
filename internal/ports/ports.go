// Package ports declares what the stores need from a data source. The
// remote API client and the offline demo backend both satisfy them.
package ports

import (
	"context"

	"ledgerbook/internal/core"
)

type (
	// LoginResult is what a successful login yields. User is nil when the
	// source only returns tokens; callers then fetch the profile.
	LoginResult struct {
		Tokens core.Tokens
		User   *core.User
	}

	AuthGateway interface {
		Login(ctx context.Context, email, password string) (LoginResult, error)
		Register(ctx context.Context, r core.Registration) (core.User, error)
		Logout(ctx context.Context) error
		Profile(ctx context.Context) (core.User, error)
	}

	LedgerGateway interface {
		ListLedgers(ctx context.Context, page, limit int, f core.LedgerFilter) (core.LedgerPage, error)
		GetLedger(ctx context.Context, id core.ID) (core.Ledger, error)
		CreateLedger(ctx context.Context, in core.LedgerInput) (core.Ledger, error)
		UpdateLedger(ctx context.Context, id core.ID, p core.LedgerPatch) (core.Ledger, error)
		DeleteLedger(ctx context.Context, id core.ID) error
		Categories(ctx context.Context) ([]core.Category, error)
		// Dashboard aggregates entries within r; a zero bound is open.
		Dashboard(ctx context.Context, r core.DateRange) (core.Dashboard, error)
	}

	// Gateway is a complete data source.
	Gateway interface {
		AuthGateway
		LedgerGateway
	}
)
