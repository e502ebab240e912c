package internal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

const sessionCookieName = "roomchat_session"

// Binding ties a browser session to a room and a display name.
type Binding struct {
	Room string
	Name string
}

type sessionEntry struct {
	binding   Binding
	expiresAt time.Time
}

// SessionStore keeps bindings server-side; the cookie only carries an opaque
// token. Entries expire after ttl.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Bind drops any binding the request already carries and issues a new one.
func (s *SessionStore) Bind(w http.ResponseWriter, r *http.Request, binding Binding) {
	token := uuid.NewString()
	now := s.now()
	s.mu.Lock()
	if old := requestToken(r); old != "" {
		delete(s.sessions, old)
	}
	s.sweepLocked(now)
	s.sessions[token] = sessionEntry{binding: binding, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear forgets the request's binding and expires its cookie.
func (s *SessionStore) Clear(w http.ResponseWriter, r *http.Request) {
	token := requestToken(r)
	if token == "" {
		return
	}
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Lookup returns the binding for the request's cookie, if it is still live.
func (s *SessionStore) Lookup(r *http.Request) (Binding, bool) {
	token := requestToken(r)
	if token == "" {
		return Binding{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[token]
	if !ok {
		return Binding{}, false
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, token)
		return Binding{}, false
	}
	return entry.binding, true
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Middleware attaches the request's binding to its context.
func (s *SessionStore) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if binding, ok := s.Lookup(r); ok {
			r = r.WithContext(WithBinding(r.Context(), binding))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *SessionStore) sweepLocked(now time.Time) {
	for token, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, token)
		}
	}
}

func requestToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type bindingKey struct{}

// WithBinding returns a context carrying binding.
func WithBinding(ctx context.Context, binding Binding) context.Context {
	return context.WithValue(ctx, bindingKey{}, binding)
}

// BindingFromContext returns the binding stored by Middleware, if any.
func BindingFromContext(ctx context.Context) (Binding, bool) {
	binding, ok := ctx.Value(bindingKey{}).(Binding)
	if !ok || binding.Room == "" || binding.Name == "" {
		return Binding{}, false
	}
	return binding, true
}
