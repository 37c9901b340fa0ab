package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxserve/voxserve/internal/engine"
)

type HealthHandler struct {
	engine engine.Engine
	redis  *redis.Client
}

func NewHealthHandler(eng engine.Engine, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{engine: eng, redis: rdb}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether this instance can accept synthesis work: the model
// artifacts must be present and the broker reachable.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.engine.IsReady() {
		checks["model"] = "ok"
	} else if missing := h.engine.MissingArtifacts(); len(missing) > 0 {
		checks["model"] = "unhealthy: missing model files: " + strings.Join(missing, ", ")
	} else {
		checks["model"] = "unhealthy: model not loaded"
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{
		"status":    statusStr(status),
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
