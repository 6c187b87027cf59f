// Package mathexpr parses and evaluates a restricted arithmetic grammar.
// Expressions are evaluated by a dedicated recursive-descent parser over
// +, -, *, /, ** (exponentiation), unary minus and parentheses. There is
// deliberately no delegation to any dynamic evaluation facility: the
// character-class validation below is a guard, not the safety boundary.
package mathexpr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidExpression reports that the input, after normalization, is not
// a safe well-formed arithmetic expression.
var ErrInvalidExpression = errors.New("invalid math expression")

var (
	timesLetterRe = regexp.MustCompile(`(\d)\s*[xX]\s*(\d)`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	allowedRe     = regexp.MustCompile(`[0-9.+\-*/()\s]`)
	digitRe       = regexp.MustCompile(`[0-9]`)
	operatorRe    = regexp.MustCompile(`[+\-*/]`)
)

// Normalize rewrites a raw expression into canonical form. Order matters:
//  1. a letter x/X sitting between two digits becomes * (unrelated uses of
//     the letter, as in "C++" or identifiers, are left alone),
//  2. ^ becomes the ** power operator,
//  3. decimal commas become dots,
//  4. whitespace is collapsed.
func Normalize(raw string) string {
	s := raw

	// The substitution consumes its right digit, so "2 x 3 x 4" needs a
	// second pass to catch the chained occurrence.
	for {
		next := timesLetterRe.ReplaceAllString(s, "$1*$2")
		if next == s {
			break
		}
		s = next
	}

	s = strings.ReplaceAll(s, "^", "**")
	s = strings.ReplaceAll(s, ",", ".")
	s = whitespaceRe.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}

// Validate checks a normalized expression against the character allowlist
// and requires at least one digit and one arithmetic operator.
func Validate(normalized string) error {
	leftover := allowedRe.ReplaceAllString(normalized, "")
	if leftover != "" {
		return fmt.Errorf("%w: disallowed characters %q", ErrInvalidExpression, leftover)
	}
	if !digitRe.MatchString(normalized) {
		return fmt.Errorf("%w: no digits present", ErrInvalidExpression)
	}
	if !operatorRe.MatchString(normalized) {
		return fmt.Errorf("%w: no operator present", ErrInvalidExpression)
	}
	return nil
}

// Evaluate validates and evaluates a normalized expression using IEEE-754
// double semantics: overflow saturates to ±Inf and division by zero yields
// ±Inf or NaN rather than an error.
func Evaluate(normalized string) (float64, error) {
	if err := Validate(normalized); err != nil {
		return 0, err
	}

	p := newParser(normalized)
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if !p.atEnd() {
		return 0, fmt.Errorf("%w: unexpected trailing input at position %d", ErrInvalidExpression, p.pos)
	}
	return value, nil
}

// EvaluateRaw normalizes, validates and evaluates in one step.
func EvaluateRaw(raw string) (float64, error) {
	return Evaluate(Normalize(raw))
}
