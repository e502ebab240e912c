package internal

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// originPolicy decides which browser origins may open a websocket. An empty
// list, or one containing "*", admits everything.
type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string) *originPolicy {
	policy := &originPolicy{allowed: make(map[string]struct{})}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			policy.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
			continue
		}
		policy.allowed[normalized] = struct{}{}
	}
	if len(policy.allowed) == 0 {
		policy.allowAll = true
	}
	return policy
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// check admits requests without an Origin header (non-browser clients),
// same-host origins, and configured origins.
func (p *originPolicy) check(r *http.Request) bool {
	if p.allowAll {
		return true
	}
	header := r.Header.Get("Origin")
	if header == "" {
		return true
	}
	normalized, ok := normalizeOrigin(header)
	if !ok {
		log.Warn().Str("origin", header).Msg("blocked websocket with malformed origin")
		return false
	}
	if u, err := url.Parse(normalized); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if _, exists := p.allowed[normalized]; exists {
		return true
	}
	log.Warn().Str("origin", header).Msg("blocked websocket from disallowed origin")
	return false
}
