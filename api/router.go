// Package-level route wiring lives here so the route table reads in one place.

package api

import "net/http"

// NewRouter builds the full HTTP handler.
//
// Route table:
//
//	POST   /documents        → upload a file (202 Accepted)
//	GET    /documents        → list the caller's documents
//	GET    /documents/{id}   → document status
//	DELETE /documents/{id}   → delete document and chunks
//	POST   /ask              → blocking answer
//	POST   /ask/stream       → server-sent event answer stream
//	GET    /healthz          → liveness
//
// Callers are identified by the X-User-Id header; absent callers share the
// "anonymous" scope.
func NewRouter(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /documents", h.Upload)
	mux.HandleFunc("GET /documents", h.ListDocuments)
	mux.HandleFunc("GET /documents/{id}", h.GetDocument)
	mux.HandleFunc("DELETE /documents/{id}", h.DeleteDocument)

	mux.HandleFunc("POST /ask", h.Ask)
	mux.HandleFunc("POST /ask/stream", h.AskStream)

	mux.HandleFunc("GET /healthz", h.Health)

	return mux
}
