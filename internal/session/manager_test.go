package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_MintsSessionCookie(t *testing.T) {
	m := NewManager(NewMemoryStore(0), ManagerConfig{Secure: true})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	attrs, err := m.Resolve(context.Background(), rec, req)
	require.NoError(t, err)
	_, err = uuid.Parse(attrs.ID())
	require.NoError(t, err)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, attrs.ID(), cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
}

func TestManager_ReusesValidCookie(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore(0)
	m := NewManager(backend, DefaultManagerConfig())
	sid := uuid.NewString()
	require.NoError(t, backend.Put(ctx, sid, "k", []byte("v")))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: sid})

	attrs, err := m.Resolve(ctx, rec, req)
	require.NoError(t, err)
	assert.Equal(t, sid, attrs.ID())
	assert.Empty(t, rec.Result().Cookies())

	v, ok, err := attrs.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestManager_ReplacesMalformedCookie(t *testing.T) {
	m := NewManager(NewMemoryStore(0), DefaultManagerConfig())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "session:../../etc"})

	attrs, err := m.Resolve(context.Background(), rec, req)
	require.NoError(t, err)
	assert.NotEqual(t, "session:../../etc", attrs.ID())
	require.Len(t, rec.Result().Cookies(), 1)
}
