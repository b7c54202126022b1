package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"ledgerbook/internal/core"
)

// LedgerQuery renders list parameters. Empty filters are omitted and the
// type goes out upper-case.
func LedgerQuery(page, limit int, f core.LedgerFilter) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	addRange(q, f.Range)
	if f.Type.Valid() {
		q.Set("type", f.Type.Wire())
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.SortDirection != "" {
		q.Set("sortDirection", f.SortDirection)
	}
	return q
}

func addRange(q url.Values, r core.DateRange) {
	if !r.Start.IsZero() {
		q.Set("startDate", r.Start.String())
	}
	if !r.End.IsZero() {
		q.Set("endDate", r.End.String())
	}
}

func (c *Client) ListLedgers(ctx context.Context, page, limit int, f core.LedgerFilter) (core.LedgerPage, error) {
	var p core.LedgerPage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/ledger",
		query:  LedgerQuery(page, limit, f),
	}, &p)
	if p.Data == nil {
		p.Data = []core.Ledger{}
	}
	return p, err
}

func (c *Client) GetLedger(ctx context.Context, id core.ID) (core.Ledger, error) {
	var l core.Ledger
	err := c.do(ctx, request{method: http.MethodGet, path: "/ledger/" + url.PathEscape(id.String())}, &l)
	return l, err
}

func (c *Client) CreateLedger(ctx context.Context, in core.LedgerInput) (core.Ledger, error) {
	var l core.Ledger
	err := c.do(ctx, request{method: http.MethodPost, path: "/ledger", body: in}, &l)
	return l, err
}

func (c *Client) UpdateLedger(ctx context.Context, id core.ID, p core.LedgerPatch) (core.Ledger, error) {
	var l core.Ledger
	err := c.do(ctx, request{method: http.MethodPut, path: "/ledger/" + url.PathEscape(id.String()), body: p}, &l)
	return l, err
}

func (c *Client) DeleteLedger(ctx context.Context, id core.ID) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "/ledger/" + url.PathEscape(id.String())}, nil)
}

func (c *Client) Categories(ctx context.Context) ([]core.Category, error) {
	var cats []core.Category
	err := c.do(ctx, request{method: http.MethodGet, path: "/ledger_category"}, &cats)
	return cats, err
}

func (c *Client) Dashboard(ctx context.Context, r core.DateRange) (core.Dashboard, error) {
	q := url.Values{}
	addRange(q, r)
	var d core.Dashboard
	err := c.do(ctx, request{method: http.MethodGet, path: "/dashboard", query: q}, &d)
	if d.Categories == nil {
		d.Categories = []core.CategoryBalance{}
	}
	return d, err
}
