// Package match selects applications by name using doublestar glob patterns.
package match

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher evaluates include/exclude patterns against application names.
//
//   - Include patterns: a name must match at least one (none = match all)
//   - Exclude patterns: a name must not match any
//
// The Matcher is safe for concurrent use after creation. A nil *Matcher
// matches every name.
type Matcher struct {
	includes []string
	excludes []string
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns that names must match (at least one).
	// Empty means every name is included.
	Includes []string

	// Excludes are glob patterns that names must not match (any).
	Excludes []string
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New creates a Matcher, validating every pattern up front.
func New(cfg Config) (*Matcher, error) {
	for _, raw := range cfg.Includes {
		if !doublestar.ValidatePattern(raw) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
	}
	for _, raw := range cfg.Excludes {
		if !doublestar.ValidatePattern(raw) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
	}
	return &Matcher{
		includes: append([]string(nil), cfg.Includes...),
		excludes: append([]string(nil), cfg.Excludes...),
	}, nil
}

// Match reports whether name passes the include and exclude patterns.
func (m *Matcher) Match(name string) bool {
	if m == nil {
		return true
	}

	if len(m.includes) > 0 {
		matched := false
		for _, inc := range m.includes {
			if matchPattern(inc, name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, exc := range m.excludes {
		if matchPattern(exc, name) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the matcher has no patterns at all.
func (m *Matcher) IsEmpty() bool {
	return m == nil || (len(m.includes) == 0 && len(m.excludes) == 0)
}

// matchPattern matches a name against a doublestar pattern.
func matchPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	if err != nil {
		// Pattern was validated at construction time, so this shouldn't happen
		return false
	}
	return matched
}
