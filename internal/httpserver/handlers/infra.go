package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/migasfree/migasfree-backend/internal/httpserver/deps"
	"github.com/migasfree/migasfree-backend/internal/keystore"
)

type componentStatus struct {
	OK        bool    `json:"ok"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Impact    string  `json:"impact,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type infraResponse struct {
	SyncMode   string                     `json:"sync_mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports component health for operators: database, redis and the
// server keypair. Degradation levels mirror what the sync protocol can
// still do without each piece.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"database": checkDatabase(r.Context(), d),
			"redis":    checkRedis(r.Context(), d),
			"keystore": checkKeystore(d),
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(infraResponse{
			SyncMode:   determineSyncMode(components),
			Components: components,
		})
	}
}

func determineSyncMode(components map[string]componentStatus) string {
	// No database or no server key means no sync exchange can complete.
	if db, exists := components["database"]; exists && !db.OK {
		return "critical"
	}
	if ks, exists := components["keystore"]; exists && !ks.OK {
		return "critical"
	}

	// Redis down degrades admission control and counters but syncs proceed.
	if rd, exists := components["redis"]; exists && !rd.OK {
		return "degraded"
	}
	return "ok"
}

func checkDatabase(ctx context.Context, d deps.Deps) componentStatus {
	if d.DB == nil {
		return componentStatus{OK: false, Impact: "sync-disabled", Error: "not initialized"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := d.DB.Ping(pingCtx); err != nil {
		return componentStatus{OK: false, Impact: "sync-disabled", Error: err.Error()}
	}
	return componentStatus{OK: true, LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: false, Impact: "admission-and-counters-disabled", Error: "client not initialized"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(pingCtx).Err(); err != nil {
		return componentStatus{OK: false, Impact: "admission-and-counters-disabled", Error: "timeout"}
	}
	return componentStatus{OK: true}
}

func checkKeystore(d deps.Deps) componentStatus {
	if d.Keys == nil {
		return componentStatus{OK: false, Impact: "sync-disabled", Error: "not initialized"}
	}
	if _, err := d.Keys.PrivateKey(keystore.ServerKeyName); err != nil {
		return componentStatus{OK: false, Impact: "sync-disabled", Error: err.Error()}
	}
	return componentStatus{OK: true}
}
