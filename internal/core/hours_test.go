package core

import "testing"

func TestParseHours(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"2.5", 250, true},
		{"2,5", 250, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", -100, true},
		{"-1,25", -125, true},
		{"+3", 300, true},
		{"0", 0, true},
		{".5", 50, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseHours(tc.in)
		if tc.ok {
			if err != nil || got.Centi != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Centi, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestHoursFromSeconds(t *testing.T) {
	cases := []struct {
		seconds int64
		centi   int64
	}{
		{0, 0},
		{3600, 100},
		{5400, 150}, // 1h + 30m
		{18, 1},     // 18s rounds up to 0.01
		{17, 0},     // 17s rounds down
		{-5400, -150},
		{86400, 2400},
	}
	for _, tc := range cases {
		if got := HoursFromSeconds(tc.seconds); got.Centi != tc.centi {
			t.Fatalf("%ds expected %d centihours, got %d", tc.seconds, tc.centi, got.Centi)
		}
	}
}

func TestHoursString(t *testing.T) {
	cases := []struct {
		centi int64
		out   string
	}{
		{0, "0.00"},
		{700, "7.00"},
		{150, "1.50"},
		{-150, "-1.50"},
		{5, "0.05"},
		{-5, "-0.05"},
		{123456, "1234.56"},
	}
	for _, tc := range cases {
		if got := (Hours{Centi: tc.centi}).String(); got != tc.out {
			t.Fatalf("%d expected %q, got %q", tc.centi, tc.out, got)
		}
	}
}

func TestHoursArithmetic(t *testing.T) {
	a := Hours{Centi: 1000}
	b := Hours{Centi: -300}
	if got := a.Add(b); got.Centi != 700 {
		t.Fatalf("expected 700, got %d", got.Centi)
	}
	if got := b.Abs(); got.Centi != 300 {
		t.Fatalf("expected 300, got %d", got.Centi)
	}
	if got := a.Neg(); got.Centi != -1000 {
		t.Fatalf("expected -1000, got %d", got.Centi)
	}
	if !(Hours{}).IsZero() || a.IsZero() {
		t.Fatal("IsZero mismatch")
	}
}
