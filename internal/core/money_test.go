package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"12.34", "12.34", true},
		{"12,34", "12.34", true},
		{"0.01", "0.01", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{".5", "0.5", true},
		{"5.", "5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1.000,50", "", false},
		{"", "", false},
		{".", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAmount(tc.in)
			if !tc.ok {
				if err == nil {
					t.Fatalf("%q expected error, got %s", tc.in, got)
				}
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("%q unexpected error: %v", tc.in, err)
			}
			if !got.Equal(MustMoney(tc.out)) {
				t.Fatalf("%q expected %s, got %s", tc.in, tc.out, got)
			}
		})
	}
}

func TestParseBalance(t *testing.T) {
	got, err := ParseBalance("-25,50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(MustMoney("-25.5")) {
		t.Fatalf("expected -25.5, got %s", got)
	}
	if _, err := ParseBalance("--1"); err == nil {
		t.Fatalf("expected error for double sign")
	}
	if _, err := ParseBalance(""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for empty balance, got %v", err)
	}
}

func TestMoneyArithmeticIsExact(t *testing.T) {
	sum := Zero()
	for i := 0; i < 10; i++ {
		sum = sum.Add(MustMoney("0.1"))
	}
	if !sum.Equal(MustMoney("1")) {
		t.Fatalf("expected exactly 1, got %s", sum)
	}
	if d := MustMoney("100").Sub(MustMoney("60")).Add(MustMoney("60").Neg()); !d.Equal(MustMoney("-20")) {
		t.Fatalf("expected -20, got %s", d)
	}
}

func TestMoneyFormat(t *testing.T) {
	cases := []struct {
		in       string
		currency string
		contains string
	}{
		{"12.34", "EUR", "12.34"},
		{"12.345", "EUR", "12.35"},
		{"3", "", "3.00"},
		{"7.5", "USD", "$"},
	}
	for _, tc := range cases {
		got := MustMoney(tc.in).Format(tc.currency)
		if !strings.Contains(got, tc.contains) {
			t.Errorf("Format(%s, %q) = %q, want it to contain %q", tc.in, tc.currency, got, tc.contains)
		}
	}
}

func TestMoneyScan(t *testing.T) {
	var m Money
	if err := m.Scan("42.10"); err != nil || !m.Equal(MustMoney("42.1")) {
		t.Fatalf("scan string: got %s err=%v", m, err)
	}
	if err := m.Scan([]byte("-3")); err != nil || !m.Equal(MustMoney("-3")) {
		t.Fatalf("scan bytes: got %s err=%v", m, err)
	}
	if err := m.Scan(int64(7)); err != nil || !m.Equal(MustMoney("7")) {
		t.Fatalf("scan int64: got %s err=%v", m, err)
	}
	if err := m.Scan(3.5); err == nil {
		t.Fatalf("expected error for float64 source")
	}
	v, err := MustMoney("1.50").Value()
	if err != nil || v.(string) != "1.5" {
		t.Fatalf("value: got %v err=%v", v, err)
	}
}
