package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const storagePingTimeout = 2 * time.Second

// StoragePinger reports whether durable session storage is reachable.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

type healthReport struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}

// healthHandler answers readiness checks. With a storage pinger the backend is
// pinged on every call and an unreachable store turns the answer into a 503.
func healthHandler(storage StoragePinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Status: "ok"}
		code := http.StatusOK
		if storage != nil {
			ctx, cancel := context.WithTimeout(r.Context(), storagePingTimeout)
			err := storage.Ping(ctx)
			cancel()
			if err != nil {
				logger.WarnContext(r.Context(), "storage health check failed", "error", err)
				report = healthReport{Status: "degraded", Storage: "unreachable"}
				code = http.StatusServiceUnavailable
			} else {
				report.Storage = "ok"
			}
		}

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			return
		}
		WriteJSON(w, code, report)
	}
}
