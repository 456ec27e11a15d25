package api

import (
	"context"
	"net/http"
	"time"
)

// WatcherStatusData represents the status of the hot folder.
type WatcherStatusData struct {
	Status         string `json:"status"`
	WatchDir       string `json:"watch_dir"`
	FilesSubmitted int64  `json:"files_submitted"`
	FilesSkipped   int64  `json:"files_skipped"`
}

// QueueStatusData summarizes the scene workers.
type QueueStatusData struct {
	RunningTasks int   `json:"running_tasks"`
	Pending      int   `json:"pending_scenes"`
	Completed    int64 `json:"completed_scenes"`
	Failed       int64 `json:"failed_scenes"`
}

type HealthResponse struct {
	Status        string             `json:"status"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Checks        map[string]string  `json:"checks"`
	Storage       string             `json:"storage,omitempty"`
	Queue         *QueueStatusData   `json:"queue,omitempty"`
	Watcher       *WatcherStatusData `json:"watcher,omitempty"`
}

// HealthSources are the optional collaborators the health check reports on.
// Nil fields are reported as not configured.
type HealthSources struct {
	Database interface{ HealthCheck(ctx context.Context) error }
	MQTT     interface{ IsConnected() bool }
	Watcher  interface{ Status() *WatcherStatusData }
	Queue    func() QueueStatusData
	Storage  string
}

type HealthHandler struct {
	src       HealthSources
	version   string
	startTime time.Time
}

func NewHealthHandler(src HealthSources, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{src: src, version: version, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Task database check
	if h.src.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		err := h.src.Database.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks["database"] = "error"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	if h.src.MQTT != nil {
		if h.src.MQTT.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Storage:       h.src.Storage,
	}
	if h.src.Watcher != nil {
		if ws := h.src.Watcher.Status(); ws != nil {
			checks["file_watcher"] = ws.Status
			resp.Watcher = ws
		}
	}
	if h.src.Queue != nil {
		q := h.src.Queue()
		resp.Queue = &q
	}

	WriteJSON(w, httpStatus, resp)
}
