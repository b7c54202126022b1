package offline

import (
	"time"

	"github.com/shopspring/decimal"

	"ledgerbook/internal/core"
)

// Demo account.
const (
	DemoEmail    = "demo@example.com"
	DemoPassword = "password"
)

// DemoUser is the only account the offline backend knows.
var DemoUser = core.User{ID: "1", Name: "Demo User", Email: DemoEmail}

// Categories is the offline category table.
var Categories = []core.Category{
	{ID: "1", Name: "เงินเดือน", Type: core.Income},
	{ID: "2", Name: "โบนัส", Type: core.Income},
	{ID: "3", Name: "รายได้เสริม", Type: core.Income},
	{ID: "4", Name: "อาหาร", Type: core.Expense},
	{ID: "5", Name: "การเดินทาง", Type: core.Expense},
	{ID: "6", Name: "ความบันเทิง", Type: core.Expense},
	{ID: "7", Name: "ค่าเช่า", Type: core.Expense},
	{ID: "8", Name: "สาธารณูปโภค", Type: core.Expense},
	{ID: "9", Name: "งานพิเศษ", Type: core.Income},
	{ID: "10", Name: "ของขวัญ", Type: core.Income},
	{ID: "11", Name: "ค่าน้ำค่าไฟ", Type: core.Expense},
	{ID: "12", Name: "ช้อปปิ้ง", Type: core.Expense},
}

func category(id core.ID) core.Category {
	for _, c := range Categories {
		if c.ID == id {
			return core.Category{ID: c.ID, Name: c.Name}
		}
	}
	return core.Category{ID: id}
}

// DemoTransactions is the list a new offline user starts with, dated
// relative to now.
func DemoTransactions(now time.Time) []core.Ledger {
	const day = 24 * time.Hour
	seed := []struct {
		id      core.ID
		typ     core.EntryType
		amount  int64
		cat     core.ID
		daysAgo int
		remark  string
	}{
		{"1", core.Income, 15000, "1", 2, "เงินเดือนเดือนนี้"},
		{"2", core.Expense, 2500, "7", 3, "ค่าเช่าห้องประจำเดือน"},
		{"3", core.Expense, 500, "4", 1, "มื้อกลางวัน"},
		{"4", core.Income, 3000, "9", 0, "งานฟรีแลนซ์"},
		{"5", core.Expense, 1500, "11", 4, "ค่าน้ำค่าไฟเดือนนี้"},
		{"6", core.Expense, 300, "6", 2, "ดูหนัง"},
		{"7", core.Expense, 800, "4", 1, "ซื้อของที่ซุปเปอร์มาร์เก็ต"},
		{"8", core.Income, 500, "10", 5, "พ่อแม่ให้"},
		{"9", core.Expense, 1200, "5", 6, "ค่าแท็กซี่"},
		{"10", core.Expense, 2000, "12", 7, "ซื้อเสื้อใหม่"},
	}

	out := make([]core.Ledger, 0, len(seed))
	for _, s := range seed {
		at := now.Add(-time.Duration(s.daysAgo) * day).UTC()
		out = append(out, core.Ledger{
			ID:         s.id,
			Type:       s.typ,
			Amount:     decimal.NewFromInt(s.amount),
			CategoryID: s.cat,
			Category:   category(s.cat),
			Date:       core.Date{Time: at},
			Remark:     s.remark,
			UserID:     DemoUser.ID,
			CreatedAt:  at,
		})
	}
	return out
}
