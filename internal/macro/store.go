// Package macro implements the macro store (C3) and expander (C4) from
// spec.md §4.3/§4.4.
package macro

import (
	"strings"
	"sync"

	"github.com/flexer23/TRTwitchPlaysBot/internal/model"
)

// PersistFunc is the host-supplied callback invoked after every mutation,
// matching spec.md §4.3: "trigger a persistence callback supplied by the
// host." The store itself never touches disk.
type PersistFunc func(name string, macro *model.Macro, deleted bool)

// Store is the in-memory name -> expansion mapping plus the first-char
// index spec.md §4.3 calls for: macro names grouped by their second
// character (the first is always the sigil) to accelerate longest-prefix
// matching while the expander scans a message.
//
// Plain and dynamic macros are kept in separate maps because they are
// looked up differently: a plain macro is matched by its full name, a
// dynamic macro is matched by its base name followed by a parenthesized
// argument list whose arity must agree with the macro's declared arity.
type Store struct {
	mu sync.RWMutex

	plain   map[string]*model.Macro // key: "#name"
	dynamic map[string]*model.Macro // key: base "#name" (without the signature)
	index   map[byte][]string       // second-char -> names sharing it (base name for dynamic)

	version int // bumped on every mutation; macro.Expander uses it to invalidate its cache

	persist PersistFunc
}

// NewStore creates an empty macro store.
func NewStore(persist PersistFunc) *Store {
	return &Store{
		plain:   make(map[string]*model.Macro),
		dynamic: make(map[string]*model.Macro),
		index:   make(map[byte][]string),
		persist: persist,
	}
}

// Add inserts or replaces a macro and incrementally updates the
// first-char index, then fires the persistence callback.
func (s *Store) Add(name, expansion string) *model.Macro {
	name = strings.ToLower(strings.TrimSpace(name))
	dynamic := model.IsDynamic(name)
	base := model.ParamName(name)

	m := &model.Macro{
		Name:      base,
		Expansion: expansion,
		Arity:     model.Arity(name),
	}

	s.mu.Lock()
	var existed bool
	if dynamic {
		_, existed = s.dynamic[base]
		s.dynamic[base] = m
	} else {
		_, existed = s.plain[base]
		s.plain[base] = m
	}
	if !existed {
		s.indexInsert(base)
	}
	s.version++
	s.mu.Unlock()

	if s.persist != nil {
		s.persist(base, m, false)
	}
	return m
}

// Remove deletes the plain and the dynamic macro stored under the base
// name (both, if both exist), rebuilding only the affected index bucket.
func (s *Store) Remove(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	base := model.ParamName(name)

	s.mu.Lock()
	_, wasPlain := s.plain[base]
	_, wasDynamic := s.dynamic[base]
	delete(s.plain, base)
	delete(s.dynamic, base)
	removed := wasPlain || wasDynamic
	if removed {
		s.indexRemove(base)
		s.version++
	}
	s.mu.Unlock()

	if removed && s.persist != nil {
		s.persist(base, nil, true)
	}
	return removed
}

// GetPlain returns the plain macro stored exactly under name, if any.
func (s *Store) GetPlain(name string) (*model.Macro, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.plain[name]
	return m, ok
}

// GetDynamic returns the dynamic macro stored under its base name.
func (s *Store) GetDynamic(base string) (*model.Macro, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.dynamic[base]
	return m, ok
}

// List returns every macro currently stored, in no particular order.
func (s *Store) List() []*model.Macro {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Macro, 0, len(s.plain)+len(s.dynamic))
	for _, m := range s.plain {
		out = append(out, m)
	}
	for _, m := range s.dynamic {
		out = append(out, m)
	}
	return out
}

// Version returns a counter bumped on every Add/Remove, used to
// invalidate the expander's memoization cache.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// MacroSeed is the bare name/expansion pair Reload rebuilds the store
// from — deliberately independent of internal/store's record shape so
// this package never has to import it.
type MacroSeed struct {
	Name      string `json:"name"`
	Expansion string `json:"expansion"`
}

// Reload replaces the store's entire contents with seeds in one atomic
// swap, rebuilding the second-char index from scratch and bumping the
// version so the expander's cache invalidates. It does not invoke the
// persist callback: the data just came from persistence (a database
// reload or a hand-edited macros file), so writing it straight back
// would be redundant.
func (s *Store) Reload(seeds []MacroSeed) {
	plain := make(map[string]*model.Macro)
	dynamic := make(map[string]*model.Macro)
	index := make(map[byte][]string)

	for _, seed := range seeds {
		name := strings.ToLower(strings.TrimSpace(seed.Name))
		base := model.ParamName(name)
		m := &model.Macro{
			Name:      base,
			Expansion: seed.Expansion,
			Arity:     model.Arity(name),
		}
		if model.IsDynamic(name) {
			dynamic[base] = m
		} else {
			plain[base] = m
		}
		if key := secondChar(base); key != 0 {
			index[key] = append(index[key], base)
		}
	}

	s.mu.Lock()
	s.plain = plain
	s.dynamic = dynamic
	s.index = index
	s.version++
	s.mu.Unlock()
}

// CandidatesBySecondChar returns every macro base name sharing the given
// second character, the accelerated lookup the expander uses while
// scanning for the longest matching macro name at a sigil.
func (s *Store) CandidatesBySecondChar(c byte) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := s.index[c]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func (s *Store) indexInsert(name string) {
	key := secondChar(name)
	if key == 0 {
		return
	}
	s.index[key] = append(s.index[key], name)
}

func (s *Store) indexRemove(name string) {
	key := secondChar(name)
	if key == 0 {
		return
	}
	bucket := s.index[key]
	for i, n := range bucket {
		if n == name {
			s.index[key] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

func secondChar(name string) byte {
	if len(name) < 2 {
		return 0
	}
	return name[1]
}
