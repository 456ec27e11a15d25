package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func TestCatalogRoutes(t *testing.T) {
	r := chi.NewRouter()
	CatalogHandler{}.Routes(r)

	for _, path := range []string{"/voices", "/resolutions", "/bgm"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			var items []map[string]any
			if err := json.NewDecoder(w.Body).Decode(&items); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(items) == 0 || items[0]["id"] == nil {
				t.Errorf("items = %v", items)
			}
		})
	}

	t.Run("/subtitle_presets", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/subtitle_presets", nil))
		var resp subtitlePresetsResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if len(resp.Presets) == 0 || resp.Presets[0].ID != "classic_yellow" {
			t.Errorf("presets = %v", resp.Presets)
		}
		if len(resp.Fonts) == 0 {
			t.Error("no fonts")
		}
	})
}

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(context.Context) error { return f.err }

type fakeMQTT bool

func (f fakeMQTT) IsConnected() bool { return bool(f) }

type fakeWatcher struct{}

func (fakeWatcher) Status() *WatcherStatusData {
	return &WatcherStatusData{Status: "watching", WatchDir: "/in", FilesSubmitted: 3}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		src        HealthSources
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "nothing_configured",
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"database": "not_configured", "mqtt": "not_configured"},
		},
		{
			name:       "all_ok",
			src:        HealthSources{Database: fakeDB{}, MQTT: fakeMQTT(true), Watcher: fakeWatcher{}},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"database": "ok", "mqtt": "ok", "file_watcher": "watching"},
		},
		{
			name:       "mqtt_down_degrades",
			src:        HealthSources{MQTT: fakeMQTT(false)},
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantChecks: map[string]string{"mqtt": "disconnected"},
		},
		{
			name:       "database_down",
			src:        HealthSources{Database: fakeDB{err: errors.New("refused")}, MQTT: fakeMQTT(false)},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"database": "error"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.src.Queue = func() QueueStatusData { return QueueStatusData{RunningTasks: 1, Pending: 4} }
			tt.src.Storage = "local"
			h := NewHealthHandler(tt.src, "test", time.Now().Add(-time.Minute))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			var resp HealthResponse
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("checks[%s] = %q, want %q", k, resp.Checks[k], v)
				}
			}
			if resp.Queue == nil || resp.Queue.Pending != 4 || resp.Storage != "local" {
				t.Errorf("queue = %+v storage = %q", resp.Queue, resp.Storage)
			}
			if resp.UptimeSeconds < 59 {
				t.Errorf("uptime = %d", resp.UptimeSeconds)
			}
		})
	}
}
