package macro

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
)

// DefaultMaxDepth bounds recursive macro expansion, matching spec.md
// §4.4's recommended default.
const DefaultMaxDepth = 10

type cacheKey struct {
	version int
	raw     string
}

// Expander implements C4: recursive, cycle-safe macro expansion of raw
// chat text into canonical input-sequence source. It memoizes results
// with an LRU keyed on (store version, raw text) so repeated chat spam
// of the same macro doesn't re-walk the expansion tree every time,
// grounded on the LRU-cache pattern golang-lru/v2 is built for.
type Expander struct {
	store    *Store
	maxDepth int
	cache    *lru.Cache[cacheKey, string]
}

// NewExpander builds an Expander over store. cacheSize <= 0 disables
// memoization.
func NewExpander(store *Store, maxDepth, cacheSize int) *Expander {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	e := &Expander{store: store, maxDepth: maxDepth}
	if cacheSize > 0 {
		c, err := lru.New[cacheKey, string](cacheSize)
		if err == nil {
			e.cache = c
		}
	}
	return e
}

// Expand fully expands raw chat text, case-normalizing to lowercase
// before matching per spec.md §4.4.
func (e *Expander) Expand(raw string) (string, error) {
	raw = strings.ToLower(raw)

	key := cacheKey{version: e.store.Version(), raw: raw}
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			return v, nil
		}
	}

	result, err := e.expand(raw, 0, map[string]bool{})
	if err != nil {
		return "", err
	}

	if e.cache != nil {
		e.cache.Add(key, result)
	}
	return result, nil
}

func (e *Expander) expand(text string, depth int, inProgress map[string]bool) (string, error) {
	if depth > e.maxDepth {
		return "", &ExpansionError{Kind: DepthExceeded}
	}

	var out strings.Builder
	i := 0
	for i < len(text) {
		if text[i] != model.MacroSigil {
			out.WriteByte(text[i])
			i++
			continue
		}

		name, dynamic, args, end, matched, matchErr := e.matchMacroAt(text, i)
		if matchErr != nil {
			return "", matchErr
		}
		if !matched {
			// Bare sigil with no macro attached is the wait-token input,
			// not an expander concern; leave it for the parser.
			out.WriteByte(text[i])
			i++
			continue
		}

		var m *model.Macro
		var ok bool
		if dynamic {
			m, ok = e.store.GetDynamic(name)
		} else {
			m, ok = e.store.GetPlain(name)
		}
		if !ok {
			return "", &ExpansionError{Kind: UnknownMacro, Name: name}
		}
		if dynamic && len(args) != m.Arity {
			return "", &ExpansionError{Kind: ArityMismatch, Name: name}
		}
		if inProgress[m.Name] {
			return "", &ExpansionError{Kind: Cycle, Name: m.Name}
		}

		body, err := substitutePlaceholders(m.Expansion, args)
		if err != nil {
			return "", &ExpansionError{Kind: ArityMismatch, Name: name}
		}

		nested := make(map[string]bool, len(inProgress)+1)
		for k := range inProgress {
			nested[k] = true
		}
		nested[m.Name] = true

		expanded, err := e.expand(body, depth+1, nested)
		if err != nil {
			return "", err
		}
		out.WriteString(expanded)
		i = end
	}
	return out.String(), nil
}

// matchMacroAt looks for the longest known macro name (plain or dynamic
// base) starting at text[i], which must be the sigil. It returns
// matched=false with a nil error when the sigil is a literal wait token
// (not followed by an alphanumeric), and a MalformedInvocation/UnknownMacro
// error when it clearly was an attempted macro reference that failed.
func (e *Expander) matchMacroAt(text string, i int) (name string, dynamic bool, args []string, end int, matched bool, err *ExpansionError) {
	if i+1 >= len(text) || !isAlnum(text[i+1]) {
		return "", false, nil, 0, false, nil
	}

	candidates := e.store.CandidatesBySecondChar(text[i+1])
	best := ""
	for _, c := range candidates {
		if len(c) > len(best) && strings.HasPrefix(text[i:], c) {
			best = c
		}
	}

	if best == "" {
		j := i + 1
		for j < len(text) && isAlnum(text[j]) {
			j++
		}
		return "", false, nil, 0, false, &ExpansionError{Kind: UnknownMacro, Name: text[i:j]}
	}

	if _, ok := e.store.GetDynamic(best); ok {
		argList, argEnd, ok := parseArgs(text, i+len(best))
		if !ok {
			return "", false, nil, 0, false, &ExpansionError{Kind: MalformedInvocation, Name: best}
		}
		return best, true, argList, argEnd, true, nil
	}

	return best, false, nil, i + len(best), true, nil
}

// parseArgs reads a parenthesized, comma-separated argument list starting
// at text[start], which must be '('. Nested parens (from a dynamic macro
// invocation used as an argument) are tracked so their commas don't split
// the outer list.
func parseArgs(text string, start int) ([]string, int, bool) {
	if start >= len(text) || text[start] != '(' {
		return nil, start, false
	}

	var args []string
	depth := 1
	argStart := start + 1
	i := argStart
	for i < len(text) {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				args = append(args, strings.TrimSpace(text[argStart:i]))
				return args, i + 1, true
			}
		case ',':
			if depth == 1 {
				args = append(args, strings.TrimSpace(text[argStart:i]))
				argStart = i + 1
			}
		}
		i++
	}
	return nil, start, false
}

// substitutePlaceholders replaces "<0>", "<1>", ... with the matching
// positional argument text.
func substitutePlaceholders(body string, args []string) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(body) {
		if body[i] == '<' {
			j := i + 1
			for j < len(body) && body[j] >= '0' && body[j] <= '9' {
				j++
			}
			if j > i+1 && j < len(body) && body[j] == '>' {
				idx, _ := strconv.Atoi(body[i+1 : j])
				if idx < 0 || idx >= len(args) {
					return "", &ExpansionError{Kind: ArityMismatch}
				}
				out.WriteString(args[idx])
				i = j + 1
				continue
			}
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String(), nil
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
