package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouter(t *testing.T) {
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("page:" + r.Method))
	})
	router := newRouter(page)

	cases := []struct {
		method, path string
		code         int
		body         string
	}{
		{http.MethodGet, "/health", http.StatusOK, "ok"},
		{http.MethodGet, "/metrics", http.StatusOK, "flash_kept_total"},
		{http.MethodGet, "/", http.StatusOK, "page:GET"},
		{http.MethodPost, "/", http.StatusOK, "page:POST"},
		{http.MethodDelete, "/", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/missing", http.StatusNotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader("")))
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}
