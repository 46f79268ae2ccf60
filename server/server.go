// Package server exposes studymesh over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/studymesh"
	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/logging"
)

// Service is the subset of *studymesh.StudyMesh served over HTTP.
type Service interface {
	Ask(ctx context.Context, req studymesh.Request) (*studymesh.Response, error)
	Mermaid() string
}

// Options configures the HTTP handler.
type Options struct {
	// RequestTimeout bounds a single /ask call. Zero means no extra timeout.
	RequestTimeout time.Duration
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64
	Logger       logging.Logger
}

// Message is one prior conversation turn on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question  string    `json:"question"`
	History   []Message `json:"history,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

// AskResponse is the body returned by POST /ask.
type AskResponse struct {
	Answer    string   `json:"answer"`
	Route     string   `json:"route"`
	RequestID string   `json:"request_id"`
	Nodes     []string `json:"nodes,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type handler struct {
	svc  Service
	opts Options
}

// NewHandler creates the HTTP handler for svc.
func NewHandler(svc Service, optFns ...func(o *Options)) http.Handler {
	opts := Options{
		MaxBodyBytes: 1 << 20,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	h := &handler{svc: svc, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/", h.root)
	r.Get("/healthz", h.health)
	r.Get("/graph", h.graph)
	r.Post("/ask", h.ask)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "studymesh backend is running"})
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) graph(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(h.svc.Mermaid()))
}

func (h *handler) ask(w http.ResponseWriter, r *http.Request) {
	var body AskRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	ctx := r.Context()
	if h.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.RequestTimeout)
		defer cancel()
	}

	resp, err := h.svc.Ask(ctx, studymesh.Request{
		Question:  body.Question,
		History:   toContents(body.History),
		SessionID: body.SessionID,
	})
	if err != nil {
		status, code := classify(err)
		h.opts.Logger.Error("server.ask.failed",
			"http_request_id", middleware.GetReqID(r.Context()),
			"status", status,
			"code", code,
			"error", err.Error(),
		)
		writeError(w, status, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Answer:    resp.Answer,
		Route:     resp.Route,
		RequestID: resp.RequestID,
		Nodes:     resp.Nodes,
	})
}

// classify maps request failures to HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, studymesh.ErrEmptyQuestion):
		return http.StatusBadRequest, "empty_question"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	switch kind := core.ErrorKind(err); kind {
	case "classification", "retrieval", "generation":
		return http.StatusBadGateway, kind
	case "canceled":
		return 499, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

func toContents(msgs []Message) []core.Content {
	out := make([]core.Content, 0, len(msgs))
	for _, m := range msgs {
		role := m.Role
		switch role {
		case core.RoleUser, core.RoleAssistant:
		case "human":
			role = core.RoleUser
		case "ai", "bot":
			role = core.RoleAssistant
		default:
			continue
		}
		if m.Content == "" {
			continue
		}
		out = append(out, core.NewTextContent(role, m.Content))
	}
	return out
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
