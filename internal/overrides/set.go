package overrides

import "strings"

// Set is an ordered collection of overrides with unique key paths.
// The zero value is ready to use.
type Set struct {
	items []Override
	index map[string]int
}

// NewSet returns a set holding the given overrides in order.
func NewSet(items ...Override) *Set {
	s := &Set{}
	for _, o := range items {
		s.Put(o)
	}
	return s
}

// ParseAll parses each token and collects the results into a set.
func ParseAll(tokens []string) (*Set, error) {
	s := &Set{}
	for _, tok := range tokens {
		o, err := Parse(tok)
		if err != nil {
			return nil, err
		}
		s.Put(o)
	}
	return s, nil
}

// Put stores o. A key that is already present keeps its position and takes the
// new kind and value.
func (s *Set) Put(o Override) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[o.Key]; ok {
		s.items[i] = o
		return
	}
	s.index[o.Key] = len(s.items)
	s.items = append(s.items, o)
}

// Get returns the override for key.
func (s *Set) Get(key string) (Override, bool) {
	i, ok := s.index[key]
	if !ok {
		return Override{}, false
	}
	return s.items[i], true
}

// Value returns the value stored for key, or "" when absent.
func (s *Set) Value(key string) string {
	o, _ := s.Get(key)
	return o.Value
}

// Delete drops key from the set and reports whether it was present.
func (s *Set) Delete(key string) bool {
	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, key)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].Key] = j
	}
	return true
}

// Len returns the number of overrides.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Items returns a copy of the overrides in order.
func (s *Set) Items() []Override {
	if s == nil {
		return nil
	}
	return append([]Override(nil), s.items...)
}

// Keys returns the key paths in order.
func (s *Set) Keys() []string {
	keys := make([]string, 0, s.Len())
	for _, o := range s.Items() {
		keys = append(keys, o.Key)
	}
	return keys
}

// Tokens renders the set as trainer arguments.
func (s *Set) Tokens() []string {
	tokens := make([]string, 0, s.Len())
	for _, o := range s.Items() {
		tokens = append(tokens, o.String())
	}
	return tokens
}

// Merge puts every override of other into s, in other's order.
func (s *Set) Merge(other *Set) {
	for _, o := range other.Items() {
		s.Put(o)
	}
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	return NewSet(s.Items()...)
}

// Group returns the overrides whose key is prefix or lies beneath it.
func (s *Set) Group(prefix string) []Override {
	var out []Override
	for _, o := range s.Items() {
		if o.Key == prefix ||
			strings.HasPrefix(o.Key, prefix+".") ||
			strings.HasPrefix(o.Key, prefix+"/") {
			out = append(out, o)
		}
	}
	return out
}

// Prefixes returns the distinct logical groups in order of first appearance.
func (s *Set) Prefixes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range s.Items() {
		p := o.Prefix()
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
