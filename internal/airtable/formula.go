package airtable

import (
	"fmt"
	"regexp"
	"strings"
)

// EscapeStringLiteral escapes a value for inclusion inside a single-quoted
// Airtable formula string. Only the quote terminates the literal; Airtable
// passes other backslash sequences through unchanged, which regex patterns
// built with QuoteRegex rely on.
func EscapeStringLiteral(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}

// QuoteRegex escapes regular expression metacharacters in a value so it
// matches literally inside an Airtable REGEX_MATCH pattern.
func QuoteRegex(s string) string {
	return regexp.QuoteMeta(s)
}

// RegexMatch builds a REGEX_MATCH formula matching the given field against a
// pattern. The pattern is escaped as a formula string literal; callers are
// responsible for regex-quoting any user input embedded in it.
func RegexMatch(field, pattern string) string {
	return fmt.Sprintf("REGEX_MATCH({%s}, '%s')", field, EscapeStringLiteral(pattern))
}

// CommaListMatch builds a formula matching value as one element of a
// comma-separated field. The value is regex-quoted, so user input cannot
// widen the match or break out of the formula.
func CommaListMatch(field, value string) string {
	return RegexMatch(field, "(^|,)"+QuoteRegex(value)+"(,|$)")
}
