package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/triage-ai/palisade-moderation/internal/auth"
	"go.uber.org/zap"
	"google.golang.org/grpc/metadata"
)

// --- Auth middleware ---

// authMiddleware maps the request headers onto incoming gRPC metadata so the
// same Authenticator serves both transports, then injects the client into
// the request context.
func (d *Dependencies) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		md := metadata.MD{}
		if v := r.Header.Get("Authorization"); v != "" {
			md.Set(auth.AuthorizationKey, v)
		}
		if v := r.Header.Get("X-Client-Id"); v != "" {
			md.Set(auth.ClientIDKey, v)
		}

		client, err := d.Auth.Authenticate(metadata.NewIncomingContext(r.Context(), md))
		if err != nil {
			if errors.Is(err, auth.ErrAuthUnavailable) {
				writeJSON(w, http.StatusServiceUnavailable, ErrorResp{Detail: "Authentication unavailable"})
				return
			}
			d.Logger.Warn("auth failed", zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Missing or invalid API key"})
			return
		}

		next(w, r.WithContext(auth.WithClient(r.Context(), client)))
	}
}

// adminMiddleware checks "Authorization: Bearer <admin token>".
func (d *Dependencies) adminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	want := []byte("Bearer " + d.AdminToken)
	return func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "Invalid admin token"})
			return
		}
		next(w, r)
	}
}

// --- JSON helpers ---

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// readJSON decodes a JSON request body into the given pointer.
func readJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// --- CORS ---

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Client-Id")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
