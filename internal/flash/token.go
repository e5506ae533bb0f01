package flash

import "github.com/google/uuid"

// Default cookie names.
const (
	// RenderTokenCookie carries the token of the render buffer to the next
	// request.
	RenderTokenCookie = "flash_render_token"

	// RedirectCookie carries the one-hop redirect flag.
	RedirectCookie = "flash_redirect"
)

// sessionCookieMaxAge asks the transport for a cookie that lives until the
// browser session ends.
const sessionCookieMaxAge = -1

// Token names one buffer instance. It is a random UUID, so every token has
// the same length and no token is a prefix of another.
type Token string

// MintToken returns a new unguessable token.
func MintToken() Token {
	return Token(uuid.NewString())
}

// ParseToken validates s as a token previously issued by MintToken.
func ParseToken(s string) (Token, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return Token(id.String()), true
}

// TokenFromCookie returns the token carried by the named cookie. A nil
// transport, a missing cookie and a malformed value all yield ok=false.
func TokenFromCookie(cookies Cookies, name string) (Token, bool) {
	if cookies == nil {
		return "", false
	}
	raw, ok := cookies.ReadCookie(name)
	if !ok {
		return "", false
	}
	return ParseToken(raw)
}

// TokenToCookie writes token to the named cookie. It does nothing when the
// transport is unavailable.
func TokenToCookie(cookies Cookies, name string, token Token) {
	if cookies == nil {
		return
	}
	cookies.WriteCookie(name, string(token), sessionCookieMaxAge)
}
