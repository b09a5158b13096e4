// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package api exposes the document QA service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/ingestion"
	"github.com/poiesic/docqa/rag"
	"github.com/poiesic/docqa/storage"
)

// userIDHeader identifies the caller. There is no authentication layer;
// absent callers share the "anonymous" scope.
const (
	userIDHeader  = "X-User-Id"
	anonymousUser = "anonymous"
)

// Handler holds the service dependencies for all HTTP endpoints.
type Handler struct {
	pipeline  *ingestion.Pipeline
	answers   *rag.Service
	documents storage.DocumentRepository
	vectors   storage.VectorRepository
	logger    *slog.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(
	pipeline *ingestion.Pipeline,
	answers *rag.Service,
	documents storage.DocumentRepository,
	vectors storage.VectorRepository,
) *Handler {
	return &Handler{
		pipeline:  pipeline,
		answers:   answers,
		documents: documents,
		vectors:   vectors,
		logger:    slog.Default().With("component", "api"),
	}
}

// documentResponse is the wire form of a document.
type documentResponse struct {
	Id           core.ID    `json:"id"`
	Filename     string     `json:"filename"`
	ContentType  string     `json:"contentType"`
	SizeBytes    int64      `json:"sizeBytes"`
	ChunkCount   int        `json:"chunkCount"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	ProcessedAt  *time.Time `json:"processedAt,omitempty"`
}

func toDocumentResponse(document *core.Document) documentResponse {
	resp := documentResponse{
		Id:           document.Id,
		Filename:     document.Filename,
		ContentType:  document.ContentType,
		SizeBytes:    document.SizeBytes,
		ChunkCount:   document.ChunkCount,
		Status:       document.Status.String(),
		ErrorMessage: document.ErrorMessage,
		CreatedAt:    document.CreatedAt,
	}
	if !document.ProcessedAt.IsZero() {
		processedAt := document.ProcessedAt
		resp.ProcessedAt = &processedAt
	}
	return resp
}

// askRequest is the body of POST /ask and POST /ask/stream.
// DocumentId and TopK are optional per-question retrieval overrides.
type askRequest struct {
	Question   string  `json:"question"`
	DocumentId core.ID `json:"documentId,omitempty"`
	TopK       int     `json:"topK,omitempty"`
}

func (req askRequest) options() []rag.AskOption {
	var opts []rag.AskOption
	if req.DocumentId != 0 {
		opts = append(opts, rag.ScopedToDocument(req.DocumentId))
	}
	if req.TopK > 0 {
		opts = append(opts, rag.Limit(req.TopK))
	}
	return opts
}

// Upload accepts a multipart file upload and queues it for processing.
// Responds 202 Accepted; processing status is polled via GetDocument.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.pipeline.MaxFileSize()+4096)

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "multipart form must carry a \"file\" part")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	document, err := h.pipeline.QueueDocument(r.Context(), userID(r), header.Filename,
		contentType, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, ingestion.ErrUnsupportedContentType):
			h.writeError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, ingestion.ErrFileTooLarge):
			h.writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, ingestion.ErrQueueClosed):
			h.writeError(w, http.StatusServiceUnavailable, "service shutting down")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			h.writeError(w, http.StatusServiceUnavailable, "ingestion queue is full")
		default:
			h.logger.Error("upload failed", "err", err)
			h.writeError(w, http.StatusInternalServerError, "upload failed")
		}
		return
	}

	h.logger.Info("upload accepted",
		"document_id", document.Id,
		"filename", document.Filename,
		"user_id", document.UserId)
	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"documentId": document.Id,
		"status":     document.Status.String(),
	})
}

// ListDocuments returns the caller's documents, most recent first.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	documents, err := h.documents.GetDocumentsByUser(r.Context(), userID(r))
	if err != nil {
		h.logger.Error("failed to list documents", "err", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}

	responses := make([]documentResponse, len(documents))
	for i, document := range documents {
		responses[i] = toDocumentResponse(document)
	}
	h.writeJSON(w, http.StatusOK, responses)
}

// GetDocument returns one document's status. Documents belonging to other
// users read as not found.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	document, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, toDocumentResponse(document))
}

// DeleteDocument removes a document and all of its chunks.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	document, ok := h.ownedDocument(w, r)
	if !ok {
		return
	}

	if err := h.vectors.DeleteChunksByDocument(r.Context(), document.Id); err != nil {
		h.logger.Error("failed to delete chunks", "document_id", document.Id, "err", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	if err := h.documents.DeleteDocument(r.Context(), document.Id); err != nil {
		h.logger.Error("failed to delete document", "document_id", document.Id, "err", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}

	h.logger.Info("document deleted", "document_id", document.Id, "user_id", document.UserId)
	w.WriteHeader(http.StatusNoContent)
}

// Ask answers a question about the caller's documents in one response.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readQuestion(w, r)
	if !ok {
		return
	}

	answer, err := h.answers.Ask(r.Context(), userID(r), req.Question, req.options()...)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("ask failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	h.writeJSON(w, http.StatusOK, answer)
}

// AskStream answers a question as a server-sent event stream: one "sources"
// event, then "token" events as the model generates, then "done".
func (h *Handler) AskStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readQuestion(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		h.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The SSE headers only go out once retrieval has succeeded, so early
	// failures can still produce a JSON error response.
	streaming := false
	_, err := h.answers.AskStream(r.Context(), userID(r), req.Question,
		func(_ context.Context, sources []rag.Source) error {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			streaming = true

			encoded, err := json.Marshal(sources)
			if err != nil {
				return err
			}
			return writeSSE(w, flusher, "sources", string(encoded))
		},
		func(_ context.Context, chunk string) error {
			return writeSSE(w, flusher, "token", chunk)
		},
		req.options()...)
	if err != nil {
		if !streaming {
			if errors.Is(err, rag.ErrEmptyQuestion) {
				h.writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.logger.Error("ask stream failed", "err", err)
			h.writeError(w, http.StatusInternalServerError, "failed to answer question")
			return
		}
		// Mid-stream failure: the SSE stream just ends without "done".
		h.logger.Error("stream aborted", "err", err)
		return
	}

	writeSSE(w, flusher, "done", "{}")
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ownedDocument loads the path's document and enforces ownership.
// Writes the error response and returns false when the caller cannot see it.
func (h *Handler) ownedDocument(w http.ResponseWriter, r *http.Request) (*core.Document, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid document id")
		return nil, false
	}

	document, err := h.documents.GetDocument(r.Context(), core.ID(id))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "document not found")
			return nil, false
		}
		h.logger.Error("failed to load document", "document_id", id, "err", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load document")
		return nil, false
	}

	// Ownership mismatches read as absence, not as forbidden.
	if document.UserId != userID(r) {
		h.writeError(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	return document, true
}

func (h *Handler) readQuestion(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return askRequest{}, false
	}
	return req, true
}

func userID(r *http.Request) string {
	if id := r.Header.Get(userIDHeader); id != "" {
		return id
	}
	return anonymousUser
}

// writeSSE emits one event. Every payload line gets its own data: prefix;
// a continuation line without one would be dropped by conforming clients.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	for _, line := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, "\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
