package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/VinMeld/complaint-portal/internal/models"
	"github.com/oklog/ulid/v2"
	"github.com/rs/cors"
)

type contextKey string

const (
	requestIDContextKey contextKey = "request_id"
)

// appHandler is a route that reports unexpected failures by returning them.
type appHandler func(w http.ResponseWriter, r *http.Request) error

// wrap turns a returned error into the internal-error envelope.
func (h *Handler) wrap(fn appHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.internalError(w, r, err)
		}
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	id := requestID(r.Context())
	h.Logger.Error("unhandled error", "method", r.Method, "path", r.URL.Path, "request_id", id, "error", err)
	writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
		Error:     "An error has occurred processing your request. " + err.Error(),
		RequestID: id,
	})
}

// SecurityHeaders sets the anti-framing and referrer headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Referrer-Policy", "same-origin")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Content-Security-Policy", "frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// CORS allows the configured UI origin to call the API with credentials.
func CORS(origin string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler
}

// RequestID tags each request with a ULID, echoed in X-Request-Id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.Make().String()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// accessLog logs one line per request and turns panics into internal errors.
func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				rec.status = http.StatusInternalServerError
				h.internalError(rec, r, fmt.Errorf("panic: %v", p))
			}
			h.Logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", requestID(r.Context()),
			)
		}()
		next.ServeHTTP(rec, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

// reject reports a user-correctable problem: 200 with a JSON string body.
func reject(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, msg)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: msg})
}
