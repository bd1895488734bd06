// Package phone canonicalises subscriber numbers into the 254XXXXXXXXX form used
// everywhere else in the system.
package phone

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// CountryPrefix is the international prefix every canonical number starts with.
	CountryPrefix = "254"

	canonicalLen   = 12
	subscriberLen  = 9
	minSignificant = 9
)

// ErrInvalid is returned when a number cannot be brought into canonical form.
var ErrInvalid = errors.New("invalid phone number")

var canonical = regexp.MustCompile(`^254\d{9}$`)

// Normalize strips '+', spaces and leading zeros, then returns the number as
// CountryPrefix followed by the last nine significant digits.
func Normalize(raw string) (string, error) {
	p := strings.ReplaceAll(raw, "+", "")
	p = strings.ReplaceAll(p, " ", "")
	p = strings.TrimLeft(p, "0")

	if len(p) < minSignificant {
		return "", fmt.Errorf("%w: %q is too short", ErrInvalid, raw)
	}

	if !(strings.HasPrefix(p, CountryPrefix) && len(p) == canonicalLen) {
		p = CountryPrefix + p[len(p)-subscriberLen:]
	}

	if !canonical.MatchString(p) {
		return "", fmt.Errorf("%w: %q does not match %sXXXXXXXXX", ErrInvalid, raw, CountryPrefix)
	}
	return p, nil
}

// Valid reports whether p is already in canonical form.
func Valid(p string) bool {
	return canonical.MatchString(p)
}
