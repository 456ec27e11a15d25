package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/config"
)

func writeTemp(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "temp.mp4")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(t.TempDir())
	src := writeTemp(t, "video-bytes")

	if err := s.Save(ctx, "video_ab12cd34.mp4", src, "video/mp4"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be moved into the store")
	}
	if !s.Exists(ctx, "video_ab12cd34.mp4") {
		t.Error("Exists = false after Save")
	}
	if p := s.LocalPath("video_ab12cd34.mp4"); p != filepath.Join(s.Dir(), "video_ab12cd34.mp4") {
		t.Errorf("LocalPath = %q", p)
	}
	if s.LocalPath("missing.mp4") != "" {
		t.Error("LocalPath of missing key should be empty")
	}
	if u, err := s.URL(ctx, "video_ab12cd34.mp4"); u != "" || err != nil {
		t.Errorf("URL = %q, %v; want empty", u, err)
	}

	r, err := s.Open(ctx, "video_ab12cd34.mp4")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "video-bytes" {
		t.Errorf("data = %q", data)
	}
	if s.Type() != "local" {
		t.Errorf("Type = %q", s.Type())
	}
}

func TestCopyAtomic(t *testing.T) {
	src := writeTemp(t, "payload")
	dst := filepath.Join(t.TempDir(), "out.mp4")
	if err := copyAtomic(src, dst); err != nil {
		t.Fatalf("copyAtomic: %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "payload" {
		t.Errorf("data = %q", data)
	}
	if err := copyAtomic(filepath.Join(t.TempDir(), "nope"), dst); err == nil {
		t.Error("expected error for missing source")
	}
}

type fakeBackup struct {
	objects map[string]string
}

func (f *fakeBackup) URL(ctx context.Context, key string) (string, error) {
	return "https://bucket.example/videos/" + key + "?sig=1", nil
}

func (f *fakeBackup) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if v, ok := f.objects[key]; ok {
		return io.NopCloser(strings.NewReader(v)), nil
	}
	return nil, errors.New("not found")
}

func (f *fakeBackup) Exists(ctx context.Context, key string) bool {
	_, ok := f.objects[key]
	return ok
}

type recordingEnqueuer struct{ jobs []string }

func (r *recordingEnqueuer) Enqueue(key, path, contentType string) {
	r.jobs = append(r.jobs, key+"|"+filepath.Base(path)+"|"+contentType)
}

func TestTieredStore(t *testing.T) {
	ctx := context.Background()
	backup := &fakeBackup{objects: map[string]string{"old.mp4": "from-s3"}}
	up := &recordingEnqueuer{}
	s := NewTieredStore(backup, NewLocalStore(t.TempDir()), up, zerolog.Nop())

	if err := s.Save(ctx, "new.mp4", writeTemp(t, "local"), "video/mp4"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(up.jobs) != 1 || up.jobs[0] != "new.mp4|new.mp4|video/mp4" {
		t.Errorf("upload jobs = %v", up.jobs)
	}

	t.Run("url_only_once_backed_up", func(t *testing.T) {
		if u, _ := s.URL(ctx, "new.mp4"); u != "" {
			t.Errorf("URL before backup = %q, want empty", u)
		}
		if u, _ := s.URL(ctx, "old.mp4"); !strings.HasPrefix(u, "https://bucket.example/") {
			t.Errorf("URL = %q", u)
		}
	})

	t.Run("open_local_then_s3", func(t *testing.T) {
		for key, want := range map[string]string{"new.mp4": "local", "old.mp4": "from-s3"} {
			r, err := s.Open(ctx, key)
			if err != nil {
				t.Fatalf("Open(%s): %v", key, err)
			}
			data, _ := io.ReadAll(r)
			r.Close()
			if string(data) != want {
				t.Errorf("Open(%s) = %q, want %q", key, data, want)
			}
		}
		if _, err := s.Open(ctx, "gone.mp4"); err == nil {
			t.Error("expected error for missing key")
		}
	})

	if !s.Exists(ctx, "old.mp4") || !s.Exists(ctx, "new.mp4") || s.Exists(ctx, "gone.mp4") {
		t.Error("Exists mismatch")
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey("", "video_1.mp4"); got != "videos/video_1.mp4" {
		t.Errorf("objectKey = %q", got)
	}
	if got := objectKey("prod", "video_1.mp4"); got != "prod/videos/video_1.mp4" {
		t.Errorf("objectKey = %q", got)
	}
}

func TestNewLocalOnly(t *testing.T) {
	store, services, err := New(config.S3Config{}, t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if store.Type() != "local" || services != nil {
		t.Errorf("store = %s services = %v", store.Type(), services)
	}
}

func TestAsyncUploaderDropsWhenStopped(t *testing.T) {
	u := NewAsyncUploader(nil, 1, zerolog.Nop())
	u.Start()
	u.Stop()
	u.Enqueue("k", "/tmp/x", "video/mp4") // must not panic
}
