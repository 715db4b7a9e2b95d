package utils

import (
	"testing"
)

func TestFormatKRW(t *testing.T) {
	cases := []struct {
		amount float64
		want   string
	}{
		{0, "₩0"},
		{999, "₩999"},
		{1000, "₩1,000"},
		{1234567, "₩1,234,567"},
		{10000000, "₩10,000,000"},
		{-2500000, "-₩2,500,000"},
	}
	for _, tc := range cases {
		if got := FormatKRW(tc.amount); got != tc.want {
			t.Errorf("FormatKRW(%v) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	cases := []struct {
		value float64
		want  string
	}{
		{5.25, "+5.25%"},
		{-3.1, "-3.10%"},
		{0, "0.00%"},
	}
	for _, tc := range cases {
		if got := FormatPercent(tc.value); got != tc.want {
			t.Errorf("FormatPercent(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	cases := []struct {
		qty  float64
		want string
	}{
		{1, "1"},
		{0.5, "0.5"},
		{0.00012345, "0.00012345"},
		{2.10000000, "2.1"},
		{0, "0"},
	}
	for _, tc := range cases {
		if got := FormatQuantity(tc.qty); got != tc.want {
			t.Errorf("FormatQuantity(%v) = %q, want %q", tc.qty, got, tc.want)
		}
	}
}
