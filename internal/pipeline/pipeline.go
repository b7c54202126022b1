// Package pipeline derives the visible page of a transaction list from the
// raw entries and the list's UI state: filter, search, sort, paginate.
package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"ledgerbook/internal/core"
)

const (
	DefaultPageSize = 10
	// WindowSize is how many page numbers the pager shows at once.
	WindowSize = 5
)

// PageSizeOptions are the page sizes the pager offers.
var PageSizeOptions = []int{5, 10, 20, 50, 100}

type SortField string

const (
	SortDate     SortField = "date"
	SortAmount   SortField = "amount"
	SortCategory SortField = "category"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortDate, SortAmount, SortCategory:
		return f, nil
	default:
		return "", fmt.Errorf("unknown sort field %q", s)
	}
}

func (d Direction) Flip() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// View is the list's local UI state. The zero Type shows every entry.
type View struct {
	Type      core.EntryType
	Search    string
	SortField SortField
	SortDir   Direction
	Page      int
	PageSize  int
}

// NewView starts newest first on page one.
func NewView(pageSize int) View {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return View{SortField: SortDate, SortDir: Desc, Page: 1, PageSize: pageSize}
}

func (v *View) SetType(t core.EntryType) {
	v.Type = t
	v.Page = 1
}

func (v *View) SetSearch(term string) {
	v.Search = term
	v.Page = 1
}

func (v *View) SetPageSize(n int) {
	if n < 1 {
		n = DefaultPageSize
	}
	v.PageSize = n
	v.Page = 1
}

// ToggleSort flips the direction when field is already the sort field and
// otherwise sorts ascending by field.
func (v *View) ToggleSort(field SortField) {
	if v.SortField == field {
		v.SortDir = v.SortDir.Flip()
	} else {
		v.SortField = field
		v.SortDir = Asc
	}
	v.Page = 1
}

func (v *View) SetPage(page int) {
	v.Page = max(page, 1)
}

// Result is one derived page.
type Result struct {
	Items []core.Ledger
	Meta  core.PageMeta
	// Pages is the window of page numbers around the current page.
	Pages []int
	// From and To are the 1-based positions of the first and last item on
	// the page; both are zero when the page is empty.
	From, To int
}

// Derive runs the whole pipeline. entries is not modified.
func Derive(entries []core.Ledger, v View) Result {
	matched := Filter(entries, v.Type, v.Search)
	Sort(matched, v.SortField, v.SortDir)

	size := v.PageSize
	if size < 1 {
		size = DefaultPageSize
	}
	page := max(v.Page, 1)
	meta := core.NewPageMeta(len(matched), page, size)

	items := Paginate(matched, page, size)
	from, to := 0, 0
	if len(items) > 0 {
		from = meta.Offset() + 1
		to = meta.Offset() + len(items)
	}
	return Result{
		Items: items,
		Meta:  meta,
		Pages: Window(page, meta.TotalPages),
		From:  from,
		To:    to,
	}
}

// Filter keeps entries of type t (all when t is empty) whose category name
// or remark contains search, ignoring case. It returns a new slice.
func Filter(entries []core.Ledger, t core.EntryType, search string) []core.Ledger {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(search))

	out := make([]core.Ledger, 0, len(entries))
	for _, e := range entries {
		if t != "" && e.Type != t {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold.String(e.CategoryName()), needle) &&
			!strings.Contains(fold.String(e.Remark), needle) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Sort orders entries in place. Equal keys fall back to the id so that the
// descending order is the exact reverse of the ascending one.
func Sort(entries []core.Ledger, field SortField, dir Direction) {
	cmp := comparator(field)
	slices.SortFunc(entries, func(a, b core.Ledger) int {
		c := cmp(a, b)
		if c == 0 {
			c = core.CompareIDs(a.ID, b.ID)
		}
		if dir == Desc {
			return -c
		}
		return c
	})
}

func comparator(field SortField) func(a, b core.Ledger) int {
	switch field {
	case SortAmount:
		return func(a, b core.Ledger) int { return a.Amount.Cmp(b.Amount) }
	case SortCategory:
		col := collate.New(language.Thai)
		return func(a, b core.Ledger) int { return col.CompareString(a.CategoryName(), b.CategoryName()) }
	default:
		return func(a, b core.Ledger) int { return a.When().Compare(b.When()) }
	}
}

// Paginate returns page (1-based) of size items. Out-of-range pages are
// empty.
func Paginate(entries []core.Ledger, page, size int) []core.Ledger {
	if page < 1 || size < 1 {
		return []core.Ledger{}
	}
	start := (page - 1) * size
	if start >= len(entries) {
		return []core.Ledger{}
	}
	end := min(start+size, len(entries))
	return slices.Clone(entries[start:end])
}

// Window returns up to WindowSize consecutive page numbers, centred on
// current where possible.
func Window(current, totalPages int) []int {
	if totalPages < 1 {
		return []int{}
	}
	start := max(1, current-WindowSize/2)
	end := min(totalPages, start+WindowSize-1)
	if end-start < WindowSize-1 {
		start = max(1, end-WindowSize+1)
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// ApplyFilter narrows entries by a server-style filter: date range, type
// and search, then orders by date in the requested direction (newest first
// by default).
func ApplyFilter(entries []core.Ledger, f core.LedgerFilter) []core.Ledger {
	matched := Filter(entries, f.Type, f.Search)
	if !f.Range.IsZero() {
		matched = slices.DeleteFunc(matched, func(e core.Ledger) bool { return !f.Range.Contains(e.When()) })
	}
	dir := Desc
	if strings.EqualFold(f.SortDirection, string(Asc)) {
		dir = Asc
	}
	Sort(matched, SortDate, dir)
	return matched
}
