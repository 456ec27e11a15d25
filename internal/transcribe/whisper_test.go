package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene_0.mp3")
	if err := os.WriteFile(path, []byte("ID3fake"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWhisperTranscribe(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		got = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got[k] = v[0]
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"你好","language":"zh","duration":1.3,
			"words":[{"word":"你","start":0.12,"end":0.5},{"word":"好","start":0.5,"end":1.0}]}`))
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "whisper-1", 5*time.Second)
	resp, err := wc.Transcribe(context.Background(), writeAudio(t), Options{Prompt: "你好", BeamSize: 1})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if resp.Text != "你好" || resp.Duration != 1.3 {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.Words) != 2 || resp.Words[0].Start != 0.12 {
		t.Errorf("Words = %+v", resp.Words)
	}

	want := map[string]string{
		"model":                     "whisper-1",
		"language":                  "zh",
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "word",
		"prompt":                    "你好",
		"beam_size":                 "1",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("form field %s = %q, want %q", k, got[k], v)
		}
	}
	if wc.Name() != "whisper" || wc.Model() != "whisper-1" {
		t.Errorf("Name/Model = %s/%s", wc.Name(), wc.Model())
	}
}

func TestWhisperTranscribe_Errors(t *testing.T) {
	t.Run("http_status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		_, err := NewWhisperClient(srv.URL, "", time.Second).Transcribe(context.Background(), writeAudio(t), Options{})
		if err == nil {
			t.Fatal("expected error for 503")
		}
	})

	t.Run("bad_json", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()
		_, err := NewWhisperClient(srv.URL, "", time.Second).Transcribe(context.Background(), writeAudio(t), Options{})
		if err == nil {
			t.Fatal("expected decode error")
		}
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := NewWhisperClient("http://127.0.0.1:1", "", time.Second).Transcribe(context.Background(), "/nonexistent.mp3", Options{})
		if err == nil {
			t.Fatal("expected open error")
		}
	})
}
