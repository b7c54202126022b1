package core

import (
	"encoding/json"
	"slices"

	"github.com/shopspring/decimal"
)

// CategoryBalance is the per-category slice of a dashboard aggregate.
type CategoryBalance struct {
	ID      ID              `json:"id"`
	Name    string          `json:"name"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Balance decimal.Decimal `json:"balance"`
}

// Dashboard is the income/expense/balance aggregate for a date range.
type Dashboard struct {
	Income     decimal.Decimal   `json:"income"`
	Expense    decimal.Decimal   `json:"expense"`
	Balance    decimal.Decimal   `json:"balance"`
	Categories []CategoryBalance `json:"ledgerCategories"`
}

// UnmarshalJSON enforces balance = income - expense, for the total and for
// every category, regardless of what the server sent.
func (d *Dashboard) UnmarshalJSON(data []byte) error {
	type plain Dashboard
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Dashboard(p)
	d.Balance = d.Income.Sub(d.Expense)
	for i := range d.Categories {
		c := &d.Categories[i]
		c.Balance = c.Income.Sub(c.Expense)
	}
	return nil
}

// Summarize aggregates entries client-side. Categories appear in the order
// they are first seen.
func Summarize(entries []Ledger) Dashboard {
	d := Dashboard{
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
		Categories: []CategoryBalance{},
	}
	index := map[string]int{}

	for _, e := range entries {
		name := e.CategoryName()
		i, ok := index[name]
		if !ok {
			i = len(d.Categories)
			index[name] = i
			d.Categories = append(d.Categories, CategoryBalance{
				ID:      e.CategoryID,
				Name:    name,
				Income:  decimal.Zero,
				Expense: decimal.Zero,
			})
		}
		c := &d.Categories[i]
		switch e.Type {
		case Income:
			d.Income = d.Income.Add(e.Amount)
			c.Income = c.Income.Add(e.Amount)
		case Expense:
			d.Expense = d.Expense.Add(e.Amount)
			c.Expense = c.Expense.Add(e.Amount)
		}
		c.Balance = c.Income.Sub(c.Expense)
	}

	d.Balance = d.Income.Sub(d.Expense)
	return d
}

// SummarizeRange aggregates the entries whose date falls within r.
func SummarizeRange(entries []Ledger, r DateRange) Dashboard {
	in := make([]Ledger, 0, len(entries))
	for _, e := range entries {
		if r.Contains(e.When()) {
			in = append(in, e)
		}
	}
	return Summarize(in)
}

// Total sums the amounts of entries of type t.
func Total(entries []Ledger, t EntryType) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		if e.Type == t {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// Recent returns up to n entries, newest first, without modifying entries.
func Recent(entries []Ledger, n int) []Ledger {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b Ledger) int {
		return b.When().Compare(a.When())
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
