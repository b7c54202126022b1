package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{".5", "0.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
		{".", "", false},
		{"๑๒", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatBaht(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"0", "฿0"},
		{"500", "฿500"},
		{"15000", "฿15,000"},
		{"1234567.5", "฿1,234,567.50"},
		{"-2500", "-฿2,500"},
		{"999.999", "฿1,000"},
	}
	for _, tc := range cases {
		if got := FormatBaht(decimal.RequireFromString(tc.in)); got != tc.out {
			t.Errorf("FormatBaht(%s) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
