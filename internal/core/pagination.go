package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PageMeta describes one page of a server-side listing.
type PageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// looseInt decodes numbers and numeric strings; the ledger endpoint echoes
// page and limit back as query-string text.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("parse %q as integer: %w", s, err)
		}
		*n = looseInt(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = looseInt(f)
	return nil
}

// UnmarshalJSON tolerates string-typed page/limit and recomputes TotalPages
// from total and limit, which is the only value the client relies on.
func (m *PageMeta) UnmarshalJSON(data []byte) error {
	var raw struct {
		Total      looseInt `json:"total"`
		Page       looseInt `json:"page"`
		Limit      looseInt `json:"limit"`
		TotalPages looseInt `json:"totalPages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = NewPageMeta(int(raw.Total), int(raw.Page), int(raw.Limit))
	if m.Limit == 0 {
		m.TotalPages = int(raw.TotalPages)
	}
	return nil
}

// NewPageMeta builds metadata whose TotalPages is derived from total and limit.
func NewPageMeta(total, page, limit int) PageMeta {
	return PageMeta{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: TotalPages(total, limit),
	}
}

// TotalPages returns ceil(total/limit), or 0 for a non-positive limit.
func TotalPages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// ClampPage bounds page to [1, max(totalPages, 1)].
func ClampPage(page, totalPages int) int {
	return max(1, min(page, max(totalPages, 1)))
}

// OutOfRange reports whether the current page lies past the last page.
func (m PageMeta) OutOfRange() bool {
	return m.Page > max(m.TotalPages, 1)
}

// Offset is the zero-based index of the first item on the current page.
func (m PageMeta) Offset() int {
	if m.Page < 1 || m.Limit < 1 {
		return 0
	}
	return (m.Page - 1) * m.Limit
}
