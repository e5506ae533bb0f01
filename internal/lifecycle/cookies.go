package lifecycle

import (
	"net/http"

	"github.com/whisper/flashscope/internal/flash"
)

// CookieConfig controls the attributes of the cookies the flash scope
// writes.
type CookieConfig struct {
	Path   string
	Secure bool
}

// DefaultCookieConfig returns sensible defaults.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{Path: "/"}
}

// httpCookies adapts a request/response pair to flash.Cookies.
type httpCookies struct {
	r      *http.Request
	w      http.ResponseWriter
	config CookieConfig
}

var _ flash.Cookies = (*httpCookies)(nil)

func (c *httpCookies) ReadCookie(name string) (string, bool) {
	cookie, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

// WriteCookie maps the flash maxAge convention onto net/http, where MaxAge 0
// means "no Max-Age attribute" and a negative MaxAge deletes.
func (c *httpCookies) WriteCookie(name, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.config.Path,
		Secure:   c.config.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	switch {
	case maxAge == 0:
		cookie.MaxAge = -1
	case maxAge > 0:
		cookie.MaxAge = maxAge
	}
	http.SetCookie(c.w, cookie)
}
