// Package lifecycle runs HTTP requests through the request phases the flash
// scope is driven by. A GET runs RESTORE_VIEW then RENDER_RESPONSE; a POST is
// a postback and runs every phase, calling the page's Execute during
// INVOKE_APPLICATION. A page that redirects skips rendering.
package lifecycle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/whisper/flashscope/internal/flash"
	"github.com/whisper/flashscope/internal/log"
	"github.com/whisper/flashscope/internal/session"
)

// Page handles one view.
type Page interface {
	// Execute runs the application logic of a postback.
	Execute(c *Context) error
	// Render writes the response body.
	Render(c *Context, w io.Writer) error
}

// Validator is implemented by pages that check postback input during
// PROCESS_VALIDATIONS. Returning false skips straight to rendering, the way
// a failed conversion or validation does.
type Validator interface {
	Validate(c *Context) bool
}

// Throttle limits postbacks per session.
type Throttle interface {
	Allow(ctx context.Context, sessionID string) (bool, error)
}

// Handler serves a Page.
type Handler struct {
	page     Page
	sessions *session.Manager
	flash    *flash.Manager
	cookies  CookieConfig
	throttle Throttle
	logger   log.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithCookieConfig sets the attributes of flash cookies.
func WithCookieConfig(c CookieConfig) HandlerOption {
	return func(h *Handler) { h.cookies = c }
}

// WithThrottle rejects postbacks that exceed t.
func WithThrottle(t Throttle) HandlerOption {
	return func(h *Handler) { h.throttle = t }
}

// WithLogger sets the logger. Default: log.Default.
func WithLogger(l log.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler returns a Handler serving page.
func NewHandler(page Page, sessions *session.Manager, flashes *flash.Manager, opts ...HandlerOption) *Handler {
	h := &Handler{
		page:     page,
		sessions: sessions,
		flash:    flashes,
		cookies:  DefaultCookieConfig(),
		logger:   log.Default,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	attrs, err := h.sessions.Resolve(ctx, w, r)
	if err != nil {
		h.logger.Errorf("[lifecycle] resolve session: %v", err)
		http.Error(w, "session unavailable", http.StatusServiceUnavailable)
		return
	}

	c := &Context{
		Request:  r,
		postback: r.Method == http.MethodPost,
		status:   http.StatusOK,
		cookies:  &httpCookies{r: r, w: w, config: h.cookies},
		messages: &MessageQueue{},
		session:  attrs,
	}
	c.flash = h.flash.New(attrs, c)

	if err := h.run(ctx, c, w); err != nil {
		h.logger.Errorf("[lifecycle] %s %s session=%s: %v", r.Method, r.URL.Path, attrs.ID(), err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) run(ctx context.Context, c *Context, w http.ResponseWriter) error {
	c.phase = flash.PhaseRestoreView
	if err := c.flash.PrePhase(ctx); err != nil {
		return fmt.Errorf("lifecycle: restore view: %w", err)
	}

	if c.postback {
		if err := h.postback(ctx, c); err != nil {
			return err
		}
		if c.redirectTo != "" {
			// INVOKE_APPLICATION is the last phase this request runs.
			if err := c.flash.PostPhase(ctx); err != nil {
				return fmt.Errorf("lifecycle: commit before redirect: %w", err)
			}
			http.Redirect(w, c.Request, c.redirectTo, http.StatusSeeOther)
			return nil
		}
	}

	c.phase = flash.PhaseRenderResponse
	var body bytes.Buffer
	if err := h.page.Render(c, &body); err != nil {
		return fmt.Errorf("lifecycle: render: %w", err)
	}
	if err := c.flash.PostPhase(ctx); err != nil {
		return fmt.Errorf("lifecycle: commit: %w", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(c.status)
	_, err := w.Write(body.Bytes())
	return err
}

// postback runs the incoming phases after RESTORE_VIEW. A phase that cuts
// the request short returns nil and rendering follows directly.
func (h *Handler) postback(ctx context.Context, c *Context) error {
	c.phase = flash.PhaseApplyRequestValues
	if h.throttle != nil {
		allowed, err := h.throttle.Allow(ctx, c.session.ID())
		if err != nil {
			h.logger.Warnf("[lifecycle] throttle session=%s: %v", c.session.ID(), err)
		}
		if !allowed {
			c.messages.AddMessage("", flash.Message{
				Severity: flash.SeverityWarn,
				Summary:  "Too many submissions, slow down.",
			})
			c.status = http.StatusTooManyRequests
			return nil
		}
	}
	if err := c.Request.ParseForm(); err != nil {
		c.messages.AddMessage("", flash.Message{
			Severity: flash.SeverityError,
			Summary:  "Malformed form submission.",
		})
		c.status = http.StatusBadRequest
		return nil
	}

	c.phase = flash.PhaseProcessValidations
	if v, ok := h.page.(Validator); ok && !v.Validate(c) {
		c.status = http.StatusUnprocessableEntity
		return nil
	}

	// Pages bind their model from the form in Execute.
	c.phase = flash.PhaseUpdateModelValues

	c.phase = flash.PhaseInvokeApplication
	if err := h.page.Execute(c); err != nil {
		return fmt.Errorf("lifecycle: invoke application: %w", err)
	}
	return nil
}
