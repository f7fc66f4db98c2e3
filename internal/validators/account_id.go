// Package validators provides validation functions for KYC Status Server entities.
package validators

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	minAccountIDLength = 2
	maxAccountIDLength = 64
)

// Account ID pattern: dot-separated segments, each starting and ending with a
// lowercase alphanumeric character, with hyphens and underscores allowed in
// the middle. This is the NEAR account identifier grammar.
var accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

// ValidateAccountID validates an account identifier before it is interpolated
// into any upstream query. Returns the validated identifier (trimmed) and an
// error if validation fails.
//
// Format requirements:
// - Total length: 2-64 characters
// - Lowercase alphanumeric segments separated by '.'
// - Segments may contain '-' and '_' but must start and end alphanumeric
//
// Examples of valid identifiers:
//   - alice.near
//   - petersalomonsen.near
//   - my-treasury.sputnik-dao.near
//
// Examples of invalid identifiers:
//   - Alice.near (uppercase)
//   - .near (empty segment)
//   - alice..near (consecutive separators)
//   - alice-.near (segment ends with hyphen)
func ValidateAccountID(id string) (string, error) {
	id = strings.TrimSpace(id)

	if id == "" {
		return "", fmt.Errorf("account id cannot be empty")
	}

	if len(id) < minAccountIDLength {
		return "", fmt.Errorf("account id must be at least %d characters long", minAccountIDLength)
	}
	if len(id) > maxAccountIDLength {
		return "", fmt.Errorf("account id exceeds maximum length of %d characters", maxAccountIDLength)
	}

	if !accountIDPattern.MatchString(id) {
		return "", fmt.Errorf(
			"account id %q is invalid. Identifiers are lowercase alphanumeric segments "+
				"separated by dots, and segments may contain hyphens and underscores in the middle",
			id,
		)
	}

	return id, nil
}

// IsValidAccountID checks if an account identifier is valid.
// This is a convenience wrapper around ValidateAccountID for boolean checks.
func IsValidAccountID(id string) bool {
	_, err := ValidateAccountID(id)
	return err == nil
}
