package api

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status      string  `json:"status"`
	Timestamp   string  `json:"timestamp"`
	Uptime      float64 `json:"uptime"`
	Environment string  `json:"environment"`
}

// healthHandler 返回服务状态、当前时间和运行时长（秒）。
func healthHandler(environment string, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		writeJSON(w, http.StatusOK, healthResponse{
			Status:      "OK",
			Timestamp:   now.UTC().Format(time.RFC3339Nano),
			Uptime:      now.Sub(startedAt).Seconds(),
			Environment: environment,
		})
	}
}
