package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func entry(id string, t EntryType, amount int64, cat string, day int) Ledger {
	return Ledger{
		ID:       ID(id),
		Type:     t,
		Amount:   decimal.NewFromInt(amount),
		Category: Category{Name: cat},
		Date:     NewDate(2025, 5, day),
	}
}

func TestSummarize(t *testing.T) {
	entries := []Ledger{
		entry("1", Income, 15000, "เงินเดือน", 1),
		entry("2", Expense, 500, "อาหาร", 2),
		entry("3", Expense, 250, "อาหาร", 3),
		entry("4", Income, 2000, "รายได้เสริม", 4),
	}
	d := Summarize(entries)

	if !d.Income.Equal(decimal.NewFromInt(17000)) || !d.Expense.Equal(decimal.NewFromInt(750)) {
		t.Fatalf("totals = %s/%s", d.Income, d.Expense)
	}
	if !d.Balance.Equal(d.Income.Sub(d.Expense)) {
		t.Fatalf("balance %s != income - expense", d.Balance)
	}
	if len(d.Categories) != 3 || d.Categories[0].Name != "เงินเดือน" || d.Categories[1].Name != "อาหาร" {
		t.Fatalf("unexpected categories: %+v", d.Categories)
	}
	if !d.Categories[1].Balance.Equal(decimal.NewFromInt(-750)) {
		t.Fatalf("food balance = %s", d.Categories[1].Balance)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	d := Summarize(nil)
	if !d.Balance.IsZero() || d.Categories == nil {
		t.Fatalf("unexpected empty summary: %+v", d)
	}
}

func TestSummarizeRange(t *testing.T) {
	entries := []Ledger{
		entry("1", Income, 100, "a", 1),
		entry("2", Income, 200, "a", 15),
		entry("3", Expense, 50, "b", 31),
	}
	d := SummarizeRange(entries, DateRange{Start: NewDate(2025, 5, 10), End: NewDate(2025, 5, 31)})
	if !d.Income.Equal(decimal.NewFromInt(200)) || !d.Expense.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("range totals = %s/%s", d.Income, d.Expense)
	}
}

func TestDashboardDecodeRecomputesBalance(t *testing.T) {
	var d Dashboard
	body := `{"income":1000,"expense":400,"balance":999,"ledgerCategories":[` +
		`{"id":1,"name":"เงินเดือน","income":1000,"expense":0,"balance":1},` +
		`{"id":4,"name":"อาหาร","expense":400,"balance":400}]}`
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !d.Balance.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("balance = %s, want 600", d.Balance)
	}
	if len(d.Categories) != 2 || d.Categories[0].ID != "1" {
		t.Fatalf("categories = %+v", d.Categories)
	}
	wantBalances := []int64{1000, -400}
	for i, want := range wantBalances {
		if got := d.Categories[i].Balance; !got.Equal(decimal.NewFromInt(want)) {
			t.Errorf("category %s balance = %s, want %d", d.Categories[i].ID, got, want)
		}
	}
}

func TestRecent(t *testing.T) {
	entries := []Ledger{
		entry("1", Income, 1, "a", 1),
		entry("2", Income, 1, "a", 3),
		entry("3", Income, 1, "a", 2),
	}
	got := Recent(entries, 2)
	if len(got) != 2 || got[0].ID != "2" || got[1].ID != "3" {
		t.Fatalf("unexpected order: %v %v", got[0].ID, got[1].ID)
	}
	if entries[0].ID != "1" {
		t.Fatalf("input modified")
	}

	undated := Ledger{ID: "4", CreatedAt: time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC)}
	if got := Recent(append(entries, undated), 1); got[0].ID != "4" {
		t.Fatalf("created_at fallback ignored: %v", got[0].ID)
	}
}
