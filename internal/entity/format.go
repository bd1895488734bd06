package entity

import "strconv"

// Currency is appended to every amount shown to subscribers.
const Currency = "MWK"

// FormatAmount renders a money amount with two decimals.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatQuantity renders a quantity without trailing zeros.
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
