package core

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// DateLayout is the calendar date format used on the wire and in query strings.
const DateLayout = "2006-01-02"

type (
	// EntryType says whether a ledger entry adds to or subtracts from the balance.
	EntryType string

	// ID identifies a remote or local entity. The remote API sends numbers,
	// the offline store sends strings; both decode into the same type.
	ID string

	Date struct {
		time.Time
	}

	User struct {
		ID        ID        `json:"id"`
		StatusID  int       `json:"status_id,omitempty"`
		GoogleID  *string   `json:"google_id,omitempty"`
		Email     string    `json:"email"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	Category struct {
		ID       ID        `json:"id"`
		Name     string    `json:"name"`
		Type     EntryType `json:"type,omitempty"`
		StatusID int       `json:"status_id,omitempty"`
	}

	// Ledger is one income or expense record.
	Ledger struct {
		ID         ID              `json:"id"`
		Type       EntryType       `json:"type"`
		Amount     decimal.Decimal `json:"amount"`
		CategoryID ID              `json:"ledger_category_id"`
		Category   Category        `json:"ledger_category"`
		Date       Date            `json:"date"`
		Remark     string          `json:"remark"`
		UserID     ID              `json:"user_id,omitempty"`
		StatusID   int             `json:"status_id,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
		UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
	}

	// LedgerInput is the payload for creating an entry.
	LedgerInput struct {
		Type       EntryType       `json:"type"`
		Amount     decimal.Decimal `json:"amount"`
		CategoryID ID              `json:"ledger_category_id"`
		Date       Date            `json:"date"`
		Remark     string          `json:"remark"`
	}

	// LedgerPatch is a partial update; nil fields are left untouched.
	LedgerPatch struct {
		Type       *EntryType       `json:"type,omitempty"`
		Amount     *decimal.Decimal `json:"amount,omitempty"`
		CategoryID *ID              `json:"ledger_category_id,omitempty"`
		Date       *Date            `json:"date,omitempty"`
		Remark     *string          `json:"remark,omitempty"`
	}

	// LedgerFilter narrows a ledger listing. Zero values mean no filter.
	LedgerFilter struct {
		Range         DateRange
		Type          EntryType
		Search        string
		SortDirection string
	}

	DateRange struct {
		Start Date
		End   Date
	}

	LedgerPage struct {
		Data []Ledger `json:"data"`
		Meta PageMeta `json:"meta"`
	}

	// Tokens is the access/refresh credential pair issued at login.
	Tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
)

var (
	ErrInvalidType     = errors.New("invalid entry type")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrMissingFields   = errors.New("กรุณากรอกข้อมูลที่จำเป็นให้ครบถ้วน")
	ErrEmptyCategory   = errors.New("empty category")
	ErrEmptyPatch      = errors.New("nothing to update")
	ErrRemarkTooLong   = errors.New("remark too long (max 200 characters)")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidIDFormat = errors.New("invalid id")

	// ErrUnauthenticated rejects a mutation attempted without a session.
	ErrUnauthenticated = errors.New("No authenticated user")
)

// ParseEntryType accepts either wire casing ("INCOME") or display casing ("income").
func ParseEntryType(s string) (EntryType, error) {
	switch t := EntryType(strings.ToLower(strings.TrimSpace(s))); t {
	case Income, Expense:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// ParseTypeFilter maps a UI filter value to an entry type. "all" and "" yield
// the empty type, which means no filtering.
func ParseTypeFilter(s string) (EntryType, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return "", nil
	}
	return ParseEntryType(s)
}

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// Wire returns the upper-case form the remote API expects.
func (t EntryType) Wire() string {
	return strings.ToUpper(string(t))
}

// Sign is +1 for income and -1 for expense.
func (t EntryType) Sign() int {
	if t == Expense {
		return -1
	}
	return 1
}

func (t EntryType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Wire())
}

func (t *EntryType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = ""
		return nil
	}
	parsed, err := ParseEntryType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

// CompareIDs orders numeric ids numerically and any other ids lexically,
// numeric ones first.
func CompareIDs(a, b ID) int {
	na, errA := strconv.ParseInt(string(a), 10, 64)
	nb, errB := strconv.ParseInt(string(b), 10, 64)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}

// ParseID trims s and rejects empty ids and ids containing a path separator.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "/?#") {
		return "", fmt.Errorf("%w: %q", ErrInvalidIDFormat, s)
	}
	return ID(s), nil
}

// MarshalJSON writes numeric ids as JSON numbers so the remote API sees the
// integer keys it issued.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidIDFormat, data)
	}
	*id = ID(n.String())
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts a calendar date or a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// String renders the calendar date, or the empty string for a zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	h, m, s := d.Clock()
	if h == 0 && m == 0 && s == 0 && d.Nanosecond() == 0 {
		return json.Marshal(d.Format(DateLayout))
	}
	return json.Marshal(d.Format(time.RFC3339Nano))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Contains reports whether t falls inside the range, comparing calendar days
// and treating a zero bound as open.
func (r DateRange) Contains(t time.Time) bool {
	day := NewDate(t.Year(), int(t.Month()), t.Day())
	if !r.Start.IsZero() && day.Before(NewDate(r.Start.Year(), int(r.Start.Month()), r.Start.Day()).Time) {
		return false
	}
	if !r.End.IsZero() && day.After(NewDate(r.End.Year(), int(r.End.Month()), r.End.Day()).Time) {
		return false
	}
	return true
}

func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// When returns the entry's date, falling back to its creation time for
// records the server stored without one.
func (l Ledger) When() time.Time {
	if !l.Date.IsZero() {
		return l.Date.Time
	}
	return l.CreatedAt
}

// CategoryName returns the embedded category name, or the category id when
// the server did not expand the relation.
func (l Ledger) CategoryName() string {
	if l.Category.Name != "" {
		return l.Category.Name
	}
	return l.CategoryID.String()
}

// Signed returns the amount with the sign implied by the entry type.
func (l Ledger) Signed() decimal.Decimal {
	if l.Type == Expense {
		return l.Amount.Neg()
	}
	return l.Amount
}

func (in LedgerInput) Validate() error {
	if in.CategoryID.IsZero() || in.Date.IsZero() {
		return ErrMissingFields
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if in.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if len([]rune(in.Remark)) > 200 {
		return ErrRemarkTooLong
	}
	return nil
}

func (p LedgerPatch) IsEmpty() bool {
	return p.Type == nil && p.Amount == nil && p.CategoryID == nil && p.Date == nil && p.Remark == nil
}

func (p LedgerPatch) Validate() error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	if p.Type != nil && !p.Type.Valid() {
		return ErrInvalidType
	}
	if p.Amount != nil && p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if p.CategoryID != nil && p.CategoryID.IsZero() {
		return ErrEmptyCategory
	}
	if p.Date != nil && p.Date.IsZero() {
		return ErrInvalidDate
	}
	if p.Remark != nil && len([]rune(*p.Remark)) > 200 {
		return ErrRemarkTooLong
	}
	return nil
}

// Apply merges the set fields of p into l. The caller owns UpdatedAt.
func (p LedgerPatch) Apply(l Ledger) Ledger {
	if p.Type != nil {
		l.Type = *p.Type
	}
	if p.Amount != nil {
		l.Amount = *p.Amount
	}
	if p.CategoryID != nil && *p.CategoryID != l.CategoryID {
		l.CategoryID = *p.CategoryID
		l.Category = Category{ID: *p.CategoryID}
	}
	if p.Date != nil {
		l.Date = *p.Date
	}
	if p.Remark != nil {
		l.Remark = *p.Remark
	}
	return l
}
