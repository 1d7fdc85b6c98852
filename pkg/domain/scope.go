package domain

import (
	"encoding/json"
	"maps"
)

// ScopeKind names the lifetime of a Scope.
type ScopeKind string

const (
	// ScopeRequest lives for a single Start or SignalEvent call.
	ScopeRequest ScopeKind = "request"
	// ScopeFlash survives one pause and is cleared when the next event is signaled.
	ScopeFlash ScopeKind = "flash"
	// ScopeFlow lives as long as its owning session.
	ScopeFlow ScopeKind = "flow"
	// ScopeConversation lives as long as the whole execution.
	ScopeConversation ScopeKind = "conversation"
)

// Scope is a string-keyed attribute container.
// It is not safe for concurrent use; an execution is processed one request at a time.
type Scope struct {
	attrs  map[string]any
	sealed bool
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{attrs: make(map[string]any)}
}

// ScopeFrom creates a scope seeded with a copy of m.
func ScopeFrom(m map[string]any) *Scope {
	s := NewScope()
	for k, v := range m {
		s.attrs[k] = v
	}
	return s
}

// Get returns the value stored under key.
func (s *Scope) Get(key string) (any, bool) {
	v, ok := s.attrs[key]
	return v, ok
}

// GetString returns the value under key when it is a string.
func (s *Scope) GetString(key string) (string, bool) {
	v, ok := s.attrs[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// Contains reports whether key is present.
func (s *Scope) Contains(key string) bool {
	_, ok := s.attrs[key]
	return ok
}

// Put stores value under key and returns the previous value, if any.
// Writing to a sealed scope panics with ErrScopeSealed.
func (s *Scope) Put(key string, value any) (any, bool) {
	s.mustWrite()
	prev, ok := s.attrs[key]
	s.attrs[key] = value
	return prev, ok
}

// PutAll copies every entry of m into the scope.
func (s *Scope) PutAll(m map[string]any) {
	s.mustWrite()
	for k, v := range m {
		s.attrs[k] = v
	}
}

// Remove deletes key and returns the value it held, if any.
func (s *Scope) Remove(key string) (any, bool) {
	s.mustWrite()
	prev, ok := s.attrs[key]
	delete(s.attrs, key)
	return prev, ok
}

// Clear removes every entry.
func (s *Scope) Clear() {
	s.mustWrite()
	clear(s.attrs)
}

// Len returns the number of entries.
func (s *Scope) Len() int {
	return len(s.attrs)
}

// AsMap returns a copy of the scope contents.
func (s *Scope) AsMap() map[string]any {
	return maps.Clone(s.attrs)
}

// Sealed reports whether the scope only allows reads.
func (s *Scope) Sealed() bool {
	return s.sealed
}

// Seal turns the scope into read-only history.
func (s *Scope) Seal() {
	s.sealed = true
}

func (s *Scope) mustWrite() {
	if s.sealed {
		panic(ErrScopeSealed)
	}
}

func (s *Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.attrs)
}

func (s *Scope) UnmarshalJSON(data []byte) error {
	attrs := make(map[string]any)
	if err := decodeNumbers(data, &attrs); err != nil {
		return err
	}
	NormalizeNumbers(attrs)
	s.attrs = attrs
	return nil
}

// MergeScopes resolves keys most-local first: earlier scopes win over later ones.
// Nil scopes are skipped.
func MergeScopes(scopes ...*Scope) map[string]any {
	model := make(map[string]any)
	for i := len(scopes) - 1; i >= 0; i-- {
		if scopes[i] == nil {
			continue
		}
		for k, v := range scopes[i].attrs {
			model[k] = v
		}
	}
	return model
}
