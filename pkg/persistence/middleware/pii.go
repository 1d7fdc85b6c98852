package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/webflow/pkg/domain"
	"github.com/aretw0/webflow/pkg/ports"
)

// Mask replaces the values of masked attributes.
const Mask = "***"

type piiMiddleware struct {
	next     ports.ExecutionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks, before storage, every scope attribute whose key
// matches one of the patterns, including keys of nested maps. The snapshot
// handed to Save is left untouched.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.ExecutionStore) ports.ExecutionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, key string, snap *domain.Snapshot) error {
	cloned := *snap
	cloned.Conversation = m.masked(snap.Conversation)
	cloned.Flash = m.masked(snap.Flash)
	cloned.Sessions = make([]domain.SessionSnapshot, len(snap.Sessions))
	for i, ss := range snap.Sessions {
		ss.Scope = m.masked(ss.Scope)
		cloned.Sessions[i] = ss
	}
	return m.next.Save(ctx, key, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, key string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, key)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) masked(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := deepCopyMap(attrs)
	maskMap(out, m.patterns)
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				break
			}
		}
		if sub, ok := v.(map[string]any); ok && m[k] != Mask {
			maskMap(sub, patterns)
		}
	}
}
