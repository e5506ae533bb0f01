package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/whisper/flashscope/internal/metrics"
)

// newRouter mounts the notice page at / next to the operational endpoints.
func newRouter(page http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	router.Handle("/", page).Methods(http.MethodGet, http.MethodPost)
	return router
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
