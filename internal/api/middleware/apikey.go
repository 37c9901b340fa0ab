package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
)

// APIKey authenticates requests against a static key list from configuration.
// Keys are compared as SHA-256 digests in constant time.
type APIKey struct {
	headerName string
	hashes     [][]byte
}

func NewAPIKey(headerName string, keys []string) *APIKey {
	m := &APIKey{headerName: headerName}
	for _, k := range keys {
		h := sha256.Sum256([]byte(k))
		m.hashes = append(m.hashes, h[:])
	}
	return m
}

func (m *APIKey) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(m.headerName)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "API key required in header "+m.headerName)
			return
		}

		if len(m.hashes) == 0 {
			slog.Error("no API keys configured, rejecting request", "remote", r.RemoteAddr)
			writeError(w, http.StatusInternalServerError, "server API key configuration error")
			return
		}

		provided := sha256.Sum256([]byte(key))
		for _, h := range m.hashes {
			if subtle.ConstantTimeCompare(h, provided[:]) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}

		slog.Warn("rejected invalid API key", "remote", r.RemoteAddr, "path", r.URL.Path)
		writeError(w, http.StatusForbidden, "invalid API key")
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
