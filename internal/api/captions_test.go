package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/snarg/subforge/internal/caption"
)

func TestCaptionsHandler(t *testing.T) {
	h := NewCaptionsHandler(caption.DefaultCanvas)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantIn   []string
	}{
		{
			name:     "portrait_default",
			body:     `{"text":"你好世界。","duration":2}`,
			wantCode: http.StatusOK,
			wantIn:   []string{"[Script Info]", "PlayResX: 1080", "PlayResY: 1920", "Dialogue:"},
		},
		{
			name:     "landscape_resolution",
			body:     `{"text":"hello world","duration":1.5,"resolution":"16:9","lead_ms":0}`,
			wantCode: http.StatusOK,
			wantIn:   []string{"PlayResX: 1920", "PlayResY: 1080"},
		},
		{
			name:     "explicit_canvas_and_font",
			body:     `{"text":"测试","duration":1,"resolution":"720x1280","font":"Noto Sans CJK SC"}`,
			wantCode: http.StatusOK,
			wantIn:   []string{"PlayResX: 720", "Noto Sans CJK SC"},
		},
		{
			name:     "nothing_to_caption",
			body:     `{"text":"……","duration":2}`,
			wantCode: http.StatusNoContent,
		},
		{
			name:     "negative_duration",
			body:     `{"text":"hi","duration":-1}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad_json",
			body:     `{`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest("POST", "/api/captions", strings.NewReader(tt.body)))
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body=%s", w.Code, tt.wantCode, w.Body)
			}
			if tt.wantCode == http.StatusOK {
				if ct := w.Header().Get("Content-Type"); ct != caption.ContentType {
					t.Errorf("Content-Type = %q", ct)
				}
			}
			for _, s := range tt.wantIn {
				if !strings.Contains(w.Body.String(), s) {
					t.Errorf("body missing %q", s)
				}
			}
		})
	}
}
