package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// Mask replaces the values of masked keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.AuditLog
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks audit payload values whose keys match any pattern.
// Transition audit events carry the caller's evaluation context, which often holds
// personal data.
func NewPIIMiddleware(patternStrings []string) AuditMiddleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.AuditLog) ports.AuditLog {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Record(ctx context.Context, event domain.AuditEvent) error {
	// The payload may alias the caller's context map.
	event.Payload = deepCopyMap(event.Payload)
	maskMap(event.Payload, m.patterns)
	return m.next.Record(ctx, event)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch vv := v.(type) {
		case map[string]any:
			out[k] = deepCopyMap(vv)
		case []any:
			items := make([]any, len(vv))
			for i, item := range vv {
				if sub, ok := item.(map[string]any); ok {
					items[i] = deepCopyMap(sub)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if matchesAny(k, patterns) {
			m[k] = Mask
			continue
		}
		switch vv := v.(type) {
		case map[string]any:
			maskMap(vv, patterns)
		case []any:
			for _, item := range vv {
				if sub, ok := item.(map[string]any); ok {
					maskMap(sub, patterns)
				}
			}
		}
	}
}

func matchesAny(key string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
