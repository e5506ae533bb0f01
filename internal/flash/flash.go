// Package flash implements the flash scope: a per-client key/value map that
// survives exactly one request hop, including a single redirect, on top of a
// shared session store.
//
// Each request owns one Flash holding two buffers. The execute buffer is what
// the previous request left behind; the render buffer is being built for the
// next request. Tokens carried in a cookie link the render buffer of request
// N to the execute buffer of request N+1:
//
//	request N    execute(T1)  render(T2) --cookie T2--+
//	request N+1  execute(T2)  render(T3)  <-----------+
//
// Reads consult the request-local overlay, then the execute buffer. Writes go
// to the execute buffer until RENDER_RESPONSE and to the render buffer after.
// PostPhase evicts the execute buffer, so only values passed to Keep (or
// written after rendering began) reach the next request.
package flash

import (
	"context"
	"reflect"
	"sort"

	"github.com/whisper/flashscope/internal/log"
	"github.com/whisper/flashscope/internal/metrics"
)

// Reserved keys. KeyRedirect and KeyKeepMessages double as typed flags:
// Put(KeyRedirect, true) is SetRedirect(true) and Get(KeyRedirect) is
// IsRedirect(). They are never stored in a buffer.
const (
	KeyRedirect     = "redirect"
	KeyKeepMessages = "keepMessages"

	// keepMessagesKey holds the carried message list in the render buffer.
	keepMessagesKey = "flash_keep_messages_list"
)

// Options configures a Manager.
type Options struct {
	codec          Codec
	logger         log.Logger
	events         EventSink
	tokenCookie    string
	redirectCookie string
}

// Option mutates Options.
type Option func(*Options)

// WithCodec sets the value codec. Default: JSONCodec.
func WithCodec(c Codec) Option {
	return func(o *Options) { o.codec = c }
}

// WithLogger sets the logger. Default: log.Default.
func WithLogger(l log.Logger) Option {
	return func(o *Options) { o.logger = l }
}

// WithEvents publishes commit and eviction events to sink.
func WithEvents(sink EventSink) Option {
	return func(o *Options) { o.events = sink }
}

// WithCookieNames overrides the token and redirect cookie names.
func WithCookieNames(token, redirect string) Option {
	return func(o *Options) {
		o.tokenCookie = token
		o.redirectCookie = redirect
	}
}

// Manager creates one Flash per request with shared options.
type Manager struct {
	opts Options
}

// NewManager returns a Manager.
func NewManager(opts ...Option) *Manager {
	o := Options{
		codec:          JSONCodec{},
		logger:         log.Default,
		tokenCookie:    RenderTokenCookie,
		redirectCookie: RedirectCookie,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{opts: o}
}

// New returns the Flash for one request. store is the client's session
// store; req reports the current phase and carries cookies and messages.
func (m *Manager) New(store Store, req Request) *Flash {
	return &Flash{
		store: store,
		req:   req,
		opts:  &m.opts,
		now:   make(map[string]any),
	}
}

// Flash is the flash scope of one request. It is not safe for concurrent use.
type Flash struct {
	store Store
	req   Request
	opts  *Options

	execute *Buffer
	render  *Buffer
	now     map[string]any

	redirect     bool // set during this request
	prevRedirect bool // carried in by the redirect cookie
	keepMessages bool
	active       bool // PrePhase has resolved the tokens
	committed    bool // PostPhase has run
}

// ExecuteToken returns the token of the execute buffer.
func (f *Flash) ExecuteToken() Token { return f.executeBuffer().Token() }

// RenderToken returns the token of the render buffer.
func (f *Flash) RenderToken() Token { return f.renderBuffer().Token() }

// Get returns the value for key from the request overlay or, failing that,
// the execute buffer. The reserved flag keys always resolve to their bool.
func (f *Flash) Get(ctx context.Context, key string) (any, bool, error) {
	switch key {
	case KeyRedirect:
		return f.IsRedirect(), true, nil
	case KeyKeepMessages:
		return f.IsKeepMessages(), true, nil
	}
	if v, ok := f.now[key]; ok {
		return v, true, nil
	}
	return f.executeBuffer().Get(ctx, key)
}

// Put writes key to the active buffer: the execute buffer before
// RENDER_RESPONSE, the render buffer from then on.
func (f *Flash) Put(ctx context.Context, key string, value any) error {
	switch key {
	case KeyRedirect, KeyKeepMessages:
		b, ok := value.(bool)
		if !ok {
			return ErrInvalidFlagValue
		}
		if key == KeyRedirect {
			f.SetRedirect(b)
		} else {
			f.SetKeepMessages(b)
		}
		return nil
	}
	return f.writeBuffer().Put(ctx, key, value)
}

// PutAll calls Put for every entry, in key order.
func (f *Flash) PutAll(ctx context.Context, entries map[string]any) error {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := f.Put(ctx, k, entries[k]); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes key from the active buffer. Removing a reserved flag key
// resets the flag.
func (f *Flash) Remove(ctx context.Context, key string) error {
	switch key {
	case KeyRedirect:
		f.SetRedirect(false)
		return nil
	case KeyKeepMessages:
		f.SetKeepMessages(false)
		return nil
	}
	return f.writeBuffer().Remove(ctx, key)
}

// Clear empties the active buffer.
func (f *Flash) Clear(ctx context.Context) error {
	_, err := f.writeBuffer().Clear(ctx)
	return err
}

// ContainsKey reports whether a read of key would find a value. Reserved
// flag keys are not entries.
func (f *Flash) ContainsKey(ctx context.Context, key string) (bool, error) {
	if _, ok := f.now[key]; ok {
		return true, nil
	}
	return f.executeBuffer().ContainsKey(ctx, key)
}

// ContainsValue reports whether any readable entry equals value.
func (f *Flash) ContainsValue(ctx context.Context, value any) (bool, error) {
	entries, err := f.readEntries(ctx)
	if err != nil {
		return false, err
	}
	normalized, err := f.executeBuffer().normalize(value)
	if err != nil {
		return false, err
	}
	for _, v := range entries {
		if reflect.DeepEqual(v, value) || reflect.DeepEqual(v, normalized) {
			return true, nil
		}
	}
	return false, nil
}

// Size returns the number of readable entries.
func (f *Flash) Size(ctx context.Context) (int, error) {
	entries, err := f.readEntries(ctx)
	return len(entries), err
}

// IsEmpty reports whether there are no readable entries.
func (f *Flash) IsEmpty(ctx context.Context) (bool, error) {
	n, err := f.Size(ctx)
	return n == 0, err
}

// Keys returns the readable keys in sorted order.
func (f *Flash) Keys(ctx context.Context) ([]string, error) {
	entries, err := f.readEntries(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// KeySet returns a snapshot view of the readable keys.
func (f *Flash) KeySet(ctx context.Context) (*KeySet, error) {
	keys, err := f.Keys(ctx)
	if err != nil {
		return nil, err
	}
	return &KeySet{flash: f, keys: keys}, nil
}

// Values returns the readable values ordered by key.
func (f *Flash) Values(ctx context.Context) ([]any, error) {
	entries, err := f.readEntries(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]any, 0, len(keys))
	for _, k := range keys {
		values = append(values, entries[k])
	}
	return values, nil
}

// PutNow makes value readable for the rest of this request only. Use Keep
// to carry it into the next request. A bool under a reserved flag key sets
// the flag; any other value under one is ignored.
func (f *Flash) PutNow(key string, value any) {
	switch key {
	case KeyRedirect, KeyKeepMessages:
		if b, ok := value.(bool); ok {
			if key == KeyRedirect {
				f.SetRedirect(b)
			} else {
				f.SetKeepMessages(b)
			}
		}
		return
	}
	f.now[key] = value
}

// Keep copies key from the request overlay or the execute buffer into the
// render buffer. It is a no-op when key is not readable.
func (f *Flash) Keep(ctx context.Context, key string) error {
	v, ok := f.now[key]
	if !ok {
		var err error
		v, ok, err = f.executeBuffer().Get(ctx, key)
		if err != nil {
			return err
		}
	}
	if !ok {
		return nil
	}
	if err := f.renderBuffer().Put(ctx, key, v); err != nil {
		return err
	}
	metrics.KeptTotal.Inc()
	return nil
}

// SetRedirect marks this request as ending in a redirect. The flag reaches
// the incoming phase of the next request and no further.
func (f *Flash) SetRedirect(redirect bool) {
	f.redirect = redirect
}

// IsRedirect reports whether this request set the redirect flag, or the
// previous request did and rendering has not begun yet.
func (f *Flash) IsRedirect() bool {
	return f.redirect || (f.prevRedirect && !f.phase().IsRender())
}

// SetKeepMessages asks PostPhase to carry the queued messages to the next
// request.
func (f *Flash) SetKeepMessages(keep bool) {
	f.keepMessages = keep
}

// IsKeepMessages reports whether this request asked to keep its messages.
func (f *Flash) IsKeepMessages() bool {
	return f.keepMessages
}

// readEntries merges the execute buffer with the request overlay, the
// overlay winning.
func (f *Flash) readEntries(ctx context.Context) (map[string]any, error) {
	entries, err := f.executeBuffer().Entries(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range f.now {
		entries[k] = v
	}
	return entries, nil
}

func (f *Flash) writeBuffer() *Buffer {
	if f.phase().IsRender() {
		return f.renderBuffer()
	}
	return f.executeBuffer()
}

func (f *Flash) executeBuffer() *Buffer {
	if f.execute == nil {
		f.execute = NewBuffer(f.store, MintToken(), f.opts.codec)
	}
	return f.execute
}

func (f *Flash) renderBuffer() *Buffer {
	if f.render == nil {
		f.render = NewBuffer(f.store, MintToken(), f.opts.codec)
	}
	return f.render
}

func (f *Flash) phase() Phase {
	if f.req == nil {
		return PhaseRestoreView
	}
	return f.req.Phase()
}

func (f *Flash) cookies() Cookies {
	if f.req == nil {
		return nil
	}
	return f.req.Cookies()
}

func (f *Flash) messages() MessageList {
	if f.req == nil {
		return nil
	}
	return f.req.Messages()
}

// KeySet is a read-only snapshot of the readable keys. Clear and Remove
// write through to the flash; Add is unsupported.
type KeySet struct {
	flash *Flash
	keys  []string
}

// Len returns the number of keys.
func (s *KeySet) Len() int { return len(s.keys) }

// Slice returns the keys in sorted order.
func (s *KeySet) Slice() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Contains reports whether key is in the set.
func (s *KeySet) Contains(key string) bool {
	i := sort.SearchStrings(s.keys, key)
	return i < len(s.keys) && s.keys[i] == key
}

// Add always fails: keys cannot exist without values.
func (s *KeySet) Add(string) error {
	return ErrUnsupportedOperation
}

// Remove deletes key through the flash and drops it from the snapshot.
func (s *KeySet) Remove(ctx context.Context, key string) error {
	if err := s.flash.Remove(ctx, key); err != nil {
		return err
	}
	if i := sort.SearchStrings(s.keys, key); i < len(s.keys) && s.keys[i] == key {
		s.keys = append(s.keys[:i], s.keys[i+1:]...)
	}
	return nil
}

// Clear clears the flash's active buffer and empties the snapshot.
func (s *KeySet) Clear(ctx context.Context) error {
	if err := s.flash.Clear(ctx); err != nil {
		return err
	}
	s.keys = nil
	return nil
}
