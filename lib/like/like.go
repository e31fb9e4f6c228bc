// Package like implements the SQL-LIKE filter used by the SHOW-* status
// surfaces: a LIKE pattern is translated once into the daemon's wildcard
// syntax and then matched against candidate rows.
package like

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Matcher
// --------------------------------------------------------------------------

// Matcher holds a LIKE pattern translated to wildcard syntax.
// An empty pattern matches everything.
type Matcher struct {
	pattern string
}

// NewMatcher translates an SQL-LIKE pattern character by character:
// '_' becomes '?' (any single char), '%' becomes '*' (any run of chars),
// and pre-existing '?' / '*' are escaped so they only match literally.
func NewMatcher(pattern string) *Matcher {
	var sb strings.Builder
	sb.Grow(2 * len(pattern))

	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '_':
			sb.WriteByte('?')
		case '%':
			sb.WriteByte('*')
		case '?', '*':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}

	return &Matcher{pattern: sb.String()}
}

// Match reports whether the value satisfies the pattern
func (m *Matcher) Match(value string) bool {
	if m.pattern == "" {
		return true
	}
	return wildcardMatch(value, m.pattern)
}

// wildcardMatch compares a candidate against a wildcard pattern where '*'
// matches any run (including empty), '?' matches exactly one byte, and a
// backslash literalizes the following byte.
func wildcardMatch(s, p string) bool {
	si, pi := 0, 0
	starP, starS := -1, 0

	for si < len(s) {
		if pi < len(p) {
			switch p[pi] {
			case '*':
				// remember the star; lazily consume nothing first
				starP, starS = pi, si
				pi++
				continue
			case '?':
				si++
				pi++
				continue
			case '\\':
				if pi+1 < len(p) && p[pi+1] == s[si] {
					si++
					pi += 2
					continue
				}
			default:
				if p[pi] == s[si] {
					si++
					pi++
					continue
				}
			}
		}

		// mismatch: backtrack to the last star, let it eat one more byte
		if starP < 0 {
			return false
		}
		starS++
		si = starS
		pi = starP + 1
	}

	// trailing stars may match the empty remainder
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// --------------------------------------------------------------------------
// Filtered row collector
// --------------------------------------------------------------------------

// Vector collects rows that pass the matcher; the status handlers use it to
// build two-column (name, value) result sets.
type Vector struct {
	*Matcher
	ColKey   string
	ColValue string
	Values   []string
}

// NewVector creates a collector for the standard SHOW output columns
func NewVector(pattern string) *Vector {
	return &Vector{
		Matcher:  NewMatcher(pattern),
		ColKey:   "Variable_name",
		ColValue: "Value",
	}
}

// MatchAdd appends the value if it passes the filter
func (v *Vector) MatchAdd(value string) bool {
	if v.Match(value) {
		v.Values = append(v.Values, value)
		return true
	}
	return false
}

// MatchAddf formats and appends the value if it passes the filter
func (v *Vector) MatchAddf(format string, args ...interface{}) bool {
	return v.MatchAdd(fmt.Sprintf(format, args...))
}
