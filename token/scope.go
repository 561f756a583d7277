package token

import (
	"encoding/json"
	"sort"
	"strings"
)

// ScopeSet is an unordered set of OAuth2 scope strings. It marshals to JSON as
// a single space-separated string (the conventional OAuth2 wire form) and
// unmarshals from either that form or a JSON array, matching what the
// original implementation's scope (de)serializer accepted.
type ScopeSet map[string]struct{}

// NewScopeSet builds a ScopeSet from individual scope strings, splitting any
// that already contain embedded whitespace.
func NewScopeSet(scopes ...string) ScopeSet {
	s := ScopeSet{}
	for _, sc := range scopes {
		for _, field := range strings.Fields(sc) {
			s[field] = struct{}{}
		}
	}
	return s
}

// Has reports whether scope is a member of the set.
func (s ScopeSet) Has(scope string) bool {
	_, ok := s[scope]
	return ok
}

// Add returns a new set with scope added.
func (s ScopeSet) Add(scope string) ScopeSet {
	out := s.clone()
	out[scope] = struct{}{}
	return out
}

// Without returns a new set with scope removed.
func (s ScopeSet) Without(scope string) ScopeSet {
	out := s.clone()
	delete(out, scope)
	return out
}

// Intersect returns the set of scopes present in both s and other.
func (s ScopeSet) Intersect(other ScopeSet) ScopeSet {
	out := ScopeSet{}
	for sc := range s {
		if other.Has(sc) {
			out[sc] = struct{}{}
		}
	}
	return out
}

// IsSubsetOf reports whether every scope in s also appears in other.
func (s ScopeSet) IsSubsetOf(other ScopeSet) bool {
	for sc := range s {
		if !other.Has(sc) {
			return false
		}
	}
	return true
}

func (s ScopeSet) clone() ScopeSet {
	out := make(ScopeSet, len(s))
	for sc := range s {
		out[sc] = struct{}{}
	}
	return out
}

// Slice returns the scopes in sorted order, for deterministic output.
func (s ScopeSet) Slice() []string {
	out := make([]string, 0, len(s))
	for sc := range s {
		out = append(out, sc)
	}
	sort.Strings(out)
	return out
}

// String renders the set as a single space-separated string.
func (s ScopeSet) String() string {
	return strings.Join(s.Slice(), " ")
}

func (s ScopeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ScopeSet) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = NewScopeSet(str)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = NewScopeSet(list...)
	return nil
}
