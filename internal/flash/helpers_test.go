package flash

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/whisper/flashscope/internal/log"
)

// mapStore is an in-memory Store with failure injection.
type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte

	failOp string // "get", "put", "remove" or "keys"
	err    error
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) fail(op string) error {
	if s.failOp == op {
		if s.err == nil {
			s.err = errors.New("store unavailable")
		}
		return s.err
	}
	return nil
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("get"); err != nil {
		return nil, false, err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("put"); err != nil {
		return err
	}
	s.data[key] = value
	return nil
}

func (s *mapStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("remove"); err != nil {
		return err
	}
	delete(s.data, key)
	return nil
}

func (s *mapStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("keys"); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

type cookieWrite struct {
	value  string
	maxAge int
}

// fakeCookies reads from the browser jar and records what the response sets.
type fakeCookies struct {
	in  map[string]string
	out map[string]cookieWrite
}

func (c *fakeCookies) ReadCookie(name string) (string, bool) {
	v, ok := c.in[name]
	return v, ok
}

func (c *fakeCookies) WriteCookie(name, value string, maxAge int) {
	c.out[name] = cookieWrite{value: value, maxAge: maxAge}
}

type fakeMessages struct {
	entries []MessageEntry
}

func (m *fakeMessages) AddMessage(clientID string, msg Message) {
	m.entries = append(m.entries, MessageEntry{ClientID: clientID, Message: msg})
}

func (m *fakeMessages) Messages() []MessageEntry { return m.entries }

func (m *fakeMessages) forClient(clientID string) []Message {
	var out []Message
	for _, e := range m.entries {
		if e.ClientID == clientID {
			out = append(out, e.Message)
		}
	}
	return out
}

type fakeRequest struct {
	phase    Phase
	postback bool
	cookies  *fakeCookies
	noCookie bool
	messages *fakeMessages
}

func (r *fakeRequest) Phase() Phase     { return r.phase }
func (r *fakeRequest) IsPostback() bool { return r.postback }

func (r *fakeRequest) Cookies() Cookies {
	if r.noCookie {
		return nil
	}
	return r.cookies
}

func (r *fakeRequest) Messages() MessageList { return r.messages }

// browser replays cookies between requests the way a user agent does:
// cookies written with maxAge 0 are dropped, all others are kept.
type browser struct {
	t       *testing.T
	ctx     context.Context
	store   *mapStore
	manager *Manager
	jar     map[string]string
}

func newBrowser(t *testing.T, opts ...Option) *browser {
	t.Helper()
	opts = append([]Option{WithLogger(log.Nop)}, opts...)
	return &browser{
		t:       t,
		ctx:     context.Background(),
		store:   newMapStore(),
		manager: NewManager(opts...),
		jar:     make(map[string]string),
	}
}

// request is one simulated request cycle.
type request struct {
	b     *browser
	req   *fakeRequest
	flash *Flash
}

func (b *browser) newRequest(postback bool) *request {
	in := make(map[string]string, len(b.jar))
	for k, v := range b.jar {
		in[k] = v
	}
	req := &fakeRequest{
		postback: postback,
		cookies:  &fakeCookies{in: in, out: make(map[string]cookieWrite)},
		messages: &fakeMessages{},
	}
	return &request{b: b, req: req, flash: b.manager.New(b.store, req)}
}

// at moves the request to phase p.
func (r *request) at(p Phase) *request {
	r.req.phase = p
	return r
}

func (r *request) pre() *request {
	r.b.t.Helper()
	r.at(PhaseRestoreView)
	require.NoError(r.b.t, r.flash.PrePhase(r.b.ctx))
	return r
}

func (r *request) post() *request {
	r.b.t.Helper()
	require.NoError(r.b.t, r.flash.PostPhase(r.b.ctx))
	return r
}

// done hands the response cookies to the browser.
func (r *request) done() {
	for name, w := range r.req.cookies.out {
		if w.maxAge == 0 {
			delete(r.b.jar, name)
			continue
		}
		r.b.jar[name] = w.value
	}
}

func (r *request) get(key string) (any, bool) {
	r.b.t.Helper()
	v, ok, err := r.flash.Get(r.b.ctx, key)
	require.NoError(r.b.t, err)
	return v, ok
}

// initialGet runs a plain GET through the whole lifecycle.
func (b *browser) initialGet() {
	r := b.newRequest(false).pre()
	r.at(PhaseRenderResponse).post().done()
}
