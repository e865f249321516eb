// Package parse implements the lexer/parser (C5) from spec.md §4.5: it
// turns macro-expanded chat text into a model.InputSequence, running the
// validation rules in their documented precedence order.
package parse

import "strings"

// Vocabulary is the installation-defined set of recognized input names —
// buttons, axes, and the structural wait tokens '.' and '#' — plus the
// longest-prefix lookup the lexer needs to split a run-together token
// like "left200ms" into identifier "left" and suffix "200ms".
type Vocabulary struct {
	names  map[string]bool
	maxLen int
}

// NewVocabulary builds a Vocabulary from an installation's button/axis
// names. The wait tokens are always included.
func NewVocabulary(names []string) *Vocabulary {
	v := &Vocabulary{names: make(map[string]bool)}
	v.add(".")
	v.add("#")
	for _, n := range names {
		v.add(n)
	}
	return v
}

func (v *Vocabulary) add(name string) {
	name = strings.ToLower(name)
	v.names[name] = true
	if len(name) > v.maxLen {
		v.maxLen = len(name)
	}
}

// Contains reports whether name is a recognized input.
func (v *Vocabulary) Contains(name string) bool {
	return v.names[name]
}

// LongestPrefix finds the longest known input name that prefixes s,
// e.g. "left200ms" -> "left" when both "l" and "left" are known but
// "left" is the longer match.
func (v *Vocabulary) LongestPrefix(s string) (string, bool) {
	max := v.maxLen
	if max > len(s) {
		max = len(s)
	}
	for k := max; k >= 1; k-- {
		if v.names[s[:k]] {
			return s[:k], true
		}
	}
	return "", false
}
