// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"strings"
)

// FormatKRW formats an amount in Korean won with thousands separators.
func FormatKRW(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.0f", amount)
	formatted := groupThousands(str)

	result := "₩" + formatted
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts comma separators every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	rem := n % 3
	if rem > 0 {
		b.WriteString(s[:rem])
	}
	for i := rem; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a percentage with an explicit sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatQuantity formats a coin quantity, trimming trailing zeros.
func FormatQuantity(qty float64) string {
	s := fmt.Sprintf("%.8f", qty)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
