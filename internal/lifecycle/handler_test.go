package lifecycle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisper/flashscope/internal/flash"
	"github.com/whisper/flashscope/internal/log"
	"github.com/whisper/flashscope/internal/session"
)

// notePage keeps the submitted note for the next request and optionally
// redirects.
type notePage struct {
	validate bool
}

func (p *notePage) Validate(c *Context) bool {
	if !p.validate || c.Request.PostForm.Get("note") != "" {
		return true
	}
	c.MessageQueue().AddMessage("note", flash.Message{Severity: flash.SeverityError, Summary: "required"})
	return false
}

func (p *notePage) Execute(c *Context) error {
	ctx := c.Request.Context()
	f := c.Flash()
	f.PutNow("note", c.Request.PostForm.Get("note"))
	if err := f.Keep(ctx, "note"); err != nil {
		return err
	}
	c.MessageQueue().AddMessage("", flash.Message{Severity: flash.SeverityInfo, Summary: "saved"})
	f.SetKeepMessages(true)
	if c.Request.PostForm.Get("redirect") == "1" {
		return c.Redirect("/")
	}
	return nil
}

func (p *notePage) Render(c *Context, w io.Writer) error {
	v, ok, err := c.Flash().Get(c.Request.Context(), "note")
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(w, "note=%v;", v)
	}
	for _, m := range c.MessageQueue().Messages() {
		fmt.Fprintf(w, "msg[%s]=%s;", m.ClientID, m.Message.Summary)
	}
	return nil
}

func newTestHandler(t *testing.T, page Page, backend session.Backend, opts ...HandlerOption) *Handler {
	t.Helper()
	if backend == nil {
		backend = session.NewMemoryStore(0)
	}
	sessions := session.NewManager(backend, session.DefaultManagerConfig())
	flashes := flash.NewManager(flash.WithLogger(log.Nop))
	opts = append([]HandlerOption{WithLogger(log.Nop)}, opts...)
	return NewHandler(page, sessions, flashes, opts...)
}

func newTestClient(t *testing.T, h http.Handler) (*http.Client, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}, srv.URL
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHandler_PostRedirectGet(t *testing.T) {
	client, base := newTestClient(t, newTestHandler(t, &notePage{}, nil))

	resp, err := client.Get(base + "/")
	require.NoError(t, err)
	assert.Equal(t, "", body(t, resp))

	// The client follows the 303 with a GET.
	resp, err = client.PostForm(base+"/", url.Values{"note": {"hello"}, "redirect": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "note=hello;msg[]=saved;", body(t, resp))

	resp, err = client.Get(base + "/")
	require.NoError(t, err)
	assert.Equal(t, "", body(t, resp))
}

func TestHandler_PostbackKeepsForNextRequest(t *testing.T) {
	client, base := newTestClient(t, newTestHandler(t, &notePage{}, nil))

	resp, err := client.PostForm(base+"/", url.Values{"note": {"x"}})
	require.NoError(t, err)
	assert.Equal(t, "note=x;msg[]=saved;", body(t, resp))

	resp, err = client.Get(base + "/")
	require.NoError(t, err)
	assert.Equal(t, "note=x;msg[]=saved;", body(t, resp))

	resp, err = client.Get(base + "/")
	require.NoError(t, err)
	assert.Equal(t, "", body(t, resp))
}

func TestHandler_RedirectResponseCookies(t *testing.T) {
	h := newTestHandler(t, &notePage{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("note=a&redirect=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	h.ServeHTTP(rec, req)

	res := rec.Result()
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/", res.Header.Get("Location"))

	cookies := map[string]*http.Cookie{}
	for _, c := range res.Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, flash.RedirectCookie)
	assert.Equal(t, "true", cookies[flash.RedirectCookie].Value)
	assert.Equal(t, 0, cookies[flash.RedirectCookie].MaxAge)
	require.Contains(t, cookies, flash.RenderTokenCookie)
	_, ok := flash.ParseToken(cookies[flash.RenderTokenCookie].Value)
	assert.True(t, ok)
	assert.Contains(t, cookies, session.CookieName)
}

func TestHandler_ConsumesRedirectCookie(t *testing.T) {
	h := newTestHandler(t, &notePage{}, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: flash.RedirectCookie, Value: "true"})

	h.ServeHTTP(rec, req)

	var deleted bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == flash.RedirectCookie {
			deleted = c.MaxAge < 0
		}
	}
	assert.True(t, deleted, "redirect cookie must be deleted on the next request")
}

func TestHandler_ValidationFailureRendersWithoutExecute(t *testing.T) {
	client, base := newTestClient(t, newTestHandler(t, &notePage{validate: true}, nil))

	resp, err := client.PostForm(base+"/", url.Values{"redirect": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "msg[note]=required;", body(t, resp))
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func TestHandler_ThrottledPostback(t *testing.T) {
	client, base := newTestClient(t, newTestHandler(t, &notePage{}, nil, WithThrottle(denyAll{})))

	resp, err := client.PostForm(base+"/", url.Values{"note": {"x"}, "redirect": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "msg[]=Too many submissions, slow down.;", body(t, resp))
}

// brokenBackend fails every attribute read.
type brokenBackend struct {
	*session.MemoryStore
}

func (brokenBackend) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, assert.AnError
}

func TestHandler_StoreFailureIs500(t *testing.T) {
	h := newTestHandler(t, &notePage{}, brokenBackend{session.NewMemoryStore(0)})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type redirectingRender struct{ notePage }

func (p *redirectingRender) Render(c *Context, w io.Writer) error {
	return c.Redirect("/elsewhere")
}

func TestHandler_RedirectDuringRenderFails(t *testing.T) {
	h := newTestHandler(t, &redirectingRender{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
