// Package notice is a Post/Redirect/Get page built on the flash scope. A
// submitted notice is validated, kept in the flash and shown once after the
// redirect, together with a confirmation message.
package notice

import (
	"html/template"
	"io"
	"strings"

	"github.com/whisper/flashscope/internal/flash"
	"github.com/whisper/flashscope/internal/lifecycle"
)

// Form field and flash key names.
const (
	FieldNotice = "notice"
	KeyNotice   = "notice"
)

var pageTemplate = template.Must(template.New("notice").Parse(`<!DOCTYPE html>
<html>
<head><title>Notice board</title></head>
<body>
{{- range .Messages}}
<p class="{{.Severity}}">{{.Summary}}</p>
{{- end}}
{{- if .Notice}}
<blockquote id="notice">{{.Notice}}</blockquote>
{{- end}}
<form method="post" action="{{.Action}}">
<input name="notice" maxlength="280">
<button type="submit">Post</button>
</form>
</body>
</html>
`))

type view struct {
	Action   string
	Notice   string
	Messages []flash.Message
}

// Page implements lifecycle.Page.
type Page struct {
	// Action is the form target and the redirect location.
	Action string
}

var (
	_ lifecycle.Page      = (*Page)(nil)
	_ lifecycle.Validator = (*Page)(nil)
)

// NewPage returns a page posting to and redirecting to action.
func NewPage(action string) *Page {
	if action == "" {
		action = "/"
	}
	return &Page{Action: action}
}

// Validate rejects bad input and keeps the page on the same request.
func (p *Page) Validate(c *lifecycle.Context) bool {
	if err := Validate(c.Request.PostForm.Get(FieldNotice)); err != nil {
		c.MessageQueue().AddMessage(FieldNotice, flash.Message{
			Severity: flash.SeverityError,
			Summary:  err.Error(),
		})
		return false
	}
	return true
}

// Execute keeps the notice and a confirmation for the redirected request.
func (p *Page) Execute(c *lifecycle.Context) error {
	ctx := c.Request.Context()
	f := c.Flash()

	f.PutNow(KeyNotice, strings.TrimSpace(c.Request.PostForm.Get(FieldNotice)))
	if err := f.Keep(ctx, KeyNotice); err != nil {
		return err
	}
	c.MessageQueue().AddMessage("", flash.Message{
		Severity: flash.SeverityInfo,
		Summary:  "Notice posted.",
	})
	f.SetKeepMessages(true)
	return c.Redirect(p.Action)
}

// Render shows the carried notice, if any, and every queued message.
func (p *Page) Render(c *lifecycle.Context, w io.Writer) error {
	v := view{Action: p.Action}
	value, ok, err := c.Flash().Get(c.Request.Context(), KeyNotice)
	if err != nil {
		return err
	}
	if s, isString := value.(string); ok && isString {
		v.Notice = s
	}
	for _, e := range c.MessageQueue().Messages() {
		v.Messages = append(v.Messages, e.Message)
	}
	return pageTemplate.Execute(w, v)
}
