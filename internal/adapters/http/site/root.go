// Package site serves the browser pages for registering, logging in and
// viewing fan-spend points.
package site

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Register attaches the static pages under / as a catch-all. Call it after
// every other route so API paths take precedence.
func Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.PathPrefix("/").Handler(http.FileServer(FS())).Methods(http.MethodGet, http.MethodHead)
}
