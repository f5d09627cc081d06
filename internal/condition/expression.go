// Package condition implements the branch-condition language used by the
// decision tree. The grammar is deliberately tiny: a single equality test
// of the form
//
//	identifier == 'literal'
//
// with either single or double quotes around the literal. There is no
// boolean composition; the tree's own if/elif chaining is the only
// combinator.
package condition

import (
	"fmt"
	"unicode"
)

// Expr is a compiled equality condition.
type Expr struct {
	Key     string // answer-set key to look up
	Literal string // expected value, compared with exact string equality
}

// Answers is the read-only view of collected answers an expression
// evaluates against. Values are opaque; only string answers can satisfy
// an equality test.
type Answers interface {
	Answer(key string) (any, bool)
}

// Parse compiles a condition string. It accepts exactly the shape
// identifier == 'literal' (or "literal") and rejects everything else.
// Identifiers are word characters (letters, digits, underscore) and
// literals must be non-empty.
func Parse(s string) (Expr, error) {
	i := 0
	skipSpace := func() {
		for i < len(s) && unicode.IsSpace(rune(s[i])) {
			i++
		}
	}

	skipSpace()
	start := i
	for i < len(s) && (unicode.IsLetter(rune(s[i])) || unicode.IsDigit(rune(s[i])) || s[i] == '_') {
		i++
	}
	if i == start {
		return Expr{}, fmt.Errorf("condition %q: expected identifier", s)
	}
	key := s[start:i]

	skipSpace()
	if i+1 >= len(s) || s[i] != '=' || s[i+1] != '=' {
		return Expr{}, fmt.Errorf("condition %q: expected ==", s)
	}
	i += 2

	skipSpace()
	if i >= len(s) || (s[i] != '\'' && s[i] != '"') {
		return Expr{}, fmt.Errorf("condition %q: expected quoted literal", s)
	}
	quote := s[i]
	i++
	lit := i
	for i < len(s) && s[i] != quote {
		i++
	}
	if i >= len(s) {
		return Expr{}, fmt.Errorf("condition %q: unterminated literal", s)
	}
	literal := s[lit:i]
	if literal == "" {
		return Expr{}, fmt.Errorf("condition %q: empty literal", s)
	}
	i++

	skipSpace()
	if i != len(s) {
		return Expr{}, fmt.Errorf("condition %q: trailing input %q", s, s[i:])
	}
	return Expr{Key: key, Literal: literal}, nil
}

// Eval reports whether the named key is present and its answer equals the
// literal exactly. Non-string answers never satisfy an equality test.
func (e Expr) Eval(a Answers) bool {
	v, ok := a.Answer(e.Key)
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == e.Literal
}

// Holds reports whether the raw condition string holds against the given
// answers. Malformed conditions evaluate to false rather than erroring;
// configuration tooling is expected to catch them via Parse.
func Holds(raw string, a Answers) bool {
	expr, err := Parse(raw)
	if err != nil {
		return false
	}
	return expr.Eval(a)
}
