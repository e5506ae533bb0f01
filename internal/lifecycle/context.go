package lifecycle

import (
	"errors"
	"net/http"

	"github.com/whisper/flashscope/internal/flash"
	"github.com/whisper/flashscope/internal/session"
)

// ErrRedirectNotAllowed is returned by Context.Redirect outside
// INVOKE_APPLICATION.
var ErrRedirectNotAllowed = errors.New("lifecycle: redirect only allowed during INVOKE_APPLICATION")

// Context is the state of one request as it moves through the phases. It
// implements flash.Request.
type Context struct {
	Request *http.Request

	phase      flash.Phase
	postback   bool
	status     int
	cookies    *httpCookies
	messages   *MessageQueue
	flash      *flash.Flash
	session    *session.Attributes
	redirectTo string
}

var _ flash.Request = (*Context)(nil)

func (c *Context) Phase() flash.Phase { return c.phase }

// IsPostback reports whether the request is a form submission.
func (c *Context) IsPostback() bool { return c.postback }

func (c *Context) Cookies() flash.Cookies {
	if c.cookies == nil {
		return nil
	}
	return c.cookies
}

func (c *Context) Messages() flash.MessageList { return c.messages }

// MessageQueue returns the request's messages for rendering.
func (c *Context) MessageQueue() *MessageQueue { return c.messages }

// Flash returns the request's flash scope.
func (c *Context) Flash() *flash.Flash { return c.flash }

// Session returns the client's session attributes.
func (c *Context) Session() *session.Attributes { return c.session }

// SetStatus sets the status code of the rendered response.
func (c *Context) SetStatus(code int) { c.status = code }

// Redirect ends the request with a 303 to url instead of rendering. The
// flash scope is told, so values kept so far survive the redirect.
func (c *Context) Redirect(url string) error {
	if c.phase != flash.PhaseInvokeApplication {
		return ErrRedirectNotAllowed
	}
	c.redirectTo = url
	c.flash.SetRedirect(true)
	return nil
}

// RedirectTo returns the pending redirect target, if any.
func (c *Context) RedirectTo() string { return c.redirectTo }
