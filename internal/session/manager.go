package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/whisper/flashscope/internal/metrics"
)

// CookieName is the default session id cookie.
const CookieName = "WHISPER_SID"

// ManagerConfig holds session cookie settings.
type ManagerConfig struct {
	CookieName string
	Path       string
	Secure     bool
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		CookieName: CookieName,
		Path:       "/",
	}
}

// Manager maps the session id cookie to a session in the backend.
type Manager struct {
	backend Backend
	config  ManagerConfig
}

// NewManager creates a Manager over backend.
func NewManager(backend Backend, config ManagerConfig) *Manager {
	if config.CookieName == "" {
		config.CookieName = CookieName
	}
	if config.Path == "" {
		config.Path = "/"
	}
	return &Manager{backend: backend, config: config}
}

// Backend returns the attribute backend.
func (m *Manager) Backend() Backend { return m.backend }

// Resolve returns the attributes of the client's session. A missing or
// malformed id cookie starts a new session and sets the cookie on w; an
// existing session has its TTL refreshed.
func (m *Manager) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Attributes, error) {
	if c, err := r.Cookie(m.config.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			sid := id.String()
			if err := m.backend.Touch(ctx, sid); err != nil {
				return nil, fmt.Errorf("session: touch %s: %w", sid, err)
			}
			metrics.SessionsResolved.WithLabelValues("existing").Inc()
			return Scope(m.backend, sid), nil
		}
	}

	sid := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    sid,
		Path:     m.config.Path,
		Secure:   m.config.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	metrics.SessionsResolved.WithLabelValues("created").Inc()
	return Scope(m.backend, sid), nil
}
