package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/caption"
)

type fakePainter struct {
	gradientErr error
	calls       []string
}

func (p *fakePainter) GradientBackground(ctx context.Context, out, top, bottom string) error {
	p.calls = append(p.calls, "gradient")
	return p.gradientErr
}

func (p *fakePainter) SolidBackground(ctx context.Context, out, colour string) error {
	p.calls = append(p.calls, "solid:"+colour)
	return nil
}

func TestGenerate_Seedream(t *testing.T) {
	var got generateRequest
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/images", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer override-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{{"url": srv.URL + "/img.jpg"}}})
	})
	mux.HandleFunc("/img.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("JPEGDATA"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	painter := &fakePainter{}
	g := New(Options{URL: srv.URL + "/images", APIKey: "key", Model: "seedream", Painter: painter, Log: zerolog.Nop()})
	out := filepath.Join(t.TempDir(), "bg.jpg")

	err := g.Generate(context.Background(), Request{
		Prompt: "城市夜景",
		Canvas: caption.Canvas{Width: 1080, Height: 1920},
		APIKey: "override-key",
	}, out)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "JPEGDATA" {
		t.Errorf("image = %q", data)
	}
	if got.Size != "1080x1920" || got.Model != "seedream" || got.Prompt != "城市夜景" {
		t.Errorf("request = %+v", got)
	}
	if len(painter.calls) != 0 {
		t.Errorf("painter used: %v", painter.calls)
	}
}

func TestGenerate_Fallbacks(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota"}}`, http.StatusTooManyRequests)
	}))
	defer failing.Close()

	tests := []struct {
		name      string
		opts      Options
		prompt    string
		gradErr   error
		wantCalls []string
	}{
		{"mock", Options{Mock: true, APIKey: "k"}, "tech future", nil, []string{"solid:0x2c3e50"}},
		{"no_key", Options{URL: failing.URL}, "山水", nil, []string{"solid:0x1a1a1a"}},
		{"api_error", Options{URL: failing.URL, APIKey: "k"}, "山水", nil, []string{"gradient"}},
		{"gradient_error", Options{URL: failing.URL, APIKey: "k"}, "山水", errors.New("no gradients filter"), []string{"gradient", "solid:0x1e3a5f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePainter{gradientErr: tt.gradErr}
			tt.opts.Painter = p
			tt.opts.Log = zerolog.Nop()
			if err := New(tt.opts).Generate(context.Background(), Request{Prompt: tt.prompt}, filepath.Join(t.TempDir(), "bg.jpg")); err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if len(p.calls) != len(tt.wantCalls) {
				t.Fatalf("calls = %v, want %v", p.calls, tt.wantCalls)
			}
			for i := range p.calls {
				if p.calls[i] != tt.wantCalls[i] {
					t.Errorf("calls[%d] = %q, want %q", i, p.calls[i], tt.wantCalls[i])
				}
			}
		})
	}
}

func TestGenerate_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	g := New(Options{URL: srv.URL, APIKey: "k", Log: zerolog.Nop()})
	if err := g.fetch(context.Background(), Request{}, "k", filepath.Join(t.TempDir(), "x.jpg")); err == nil {
		t.Error("expected error for empty data")
	}
}
