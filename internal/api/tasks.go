package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/snarg/subforge/internal/notify"
	"github.com/snarg/subforge/internal/pipeline"
	"github.com/snarg/subforge/internal/storage"
	"github.com/snarg/subforge/internal/tasks"
)

// Jobs starts and stops generation tasks.
type Jobs interface {
	Submit(ctx context.Context, req pipeline.Request) (string, error)
	Abort(ctx context.Context, id string) error
}

// EventSource delivers task updates as they happen.
type EventSource interface {
	Subscribe(taskID string) (<-chan notify.Event, func())
	ReplaySince(lastEventID, taskID string) []notify.Event
}

type TasksHandler struct {
	jobs      Jobs
	store     tasks.Store
	artifacts storage.ArtifactStore
	events    EventSource // nil: progress streams poll only
	poll      time.Duration
}

func NewTasksHandler(jobs Jobs, store tasks.Store, artifacts storage.ArtifactStore, events EventSource) *TasksHandler {
	return &TasksHandler{
		jobs:      jobs,
		store:     store,
		artifacts: artifacts,
		events:    events,
		poll:      time.Second,
	}
}

type imageConfig struct {
	APIKey  string `json:"api_key"`
	ModelID string `json:"model_id"`
}

type generateRequest struct {
	Text          string       `json:"text"`
	Voice         string       `json:"voice"`
	Resolution    string       `json:"resolution"`
	BGM           string       `json:"bgm"`
	SubtitleStyle string       `json:"subtitle_style"`
	FontName      string       `json:"font_name"`
	ImageConfig   *imageConfig `json:"image_config"`
}

// Generate starts a generation task.
func (h *TasksHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	}
	if body.BGM != "" && !slices.ContainsFunc(pipeline.Music, func(t pipeline.Track) bool { return t.ID == body.BGM }) {
		WriteErrorDetail(w, http.StatusBadRequest, "unknown bgm", body.BGM)
		return
	}

	req := pipeline.Request{
		Text:          body.Text,
		Voice:         body.Voice,
		Resolution:    body.Resolution,
		BGM:           body.BGM,
		SubtitleStyle: body.SubtitleStyle,
		FontName:      body.FontName,
	}
	if body.ImageConfig != nil {
		req.ImageAPIKey = body.ImageConfig.APIKey
		req.ImageModel = body.ImageConfig.ModelID
	}

	id, err := h.jobs.Submit(r.Context(), req)
	switch {
	case errors.Is(err, pipeline.ErrEmptyText):
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	case errors.Is(err, pipeline.ErrShuttingDown):
		WriteError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("submit task failed")
		WriteError(w, http.StatusInternalServerError, "failed to start task")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"task_id": id})
}

// Status returns a task snapshot.
func (h *TasksHandler) Status(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// Abort stops a running task.
func (h *TasksHandler) Abort(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.jobs.Abort(r.Context(), id); err != nil {
		if errors.Is(err, tasks.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "task not found")
			return
		}
		hlog.FromRequest(r).Error().Err(err).Str("task_id", id).Msg("abort failed")
		WriteError(w, http.StatusInternalServerError, "abort failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

// Download serves the finished video, from disk when it is local and by
// redirect to a presigned URL otherwise.
func (h *TasksHandler) Download(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if t.VideoKey == "" {
		WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ai_video_%s.mp4"`, t.ID))

	if path := h.artifacts.LocalPath(t.VideoKey); path != "" {
		http.ServeFile(w, r, path)
		return
	}
	if url, err := h.artifacts.URL(r.Context(), t.VideoKey); err == nil && url != "" {
		w.Header().Del("Content-Disposition")
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	rc, err := h.artifacts.Open(r.Context(), t.VideoKey)
	if err != nil {
		w.Header().Del("Content-Disposition")
		WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "video/mp4")
	io.Copy(w, rc)
}

// Progress streams task snapshots as server-sent events until the task
// finishes. Updates are pushed as they happen; the store is also re-read
// every poll interval so no state is missed.
func (h *TasksHandler) Progress(w http.ResponseWriter, r *http.Request) {
	t, ok := h.lookup(w, r)
	if !ok {
		return
	}
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var ch <-chan notify.Event
	if h.events != nil {
		var cancel func()
		ch, cancel = h.events.Subscribe(t.ID)
		defer cancel()
		if last := r.Header.Get("Last-Event-ID"); last != "" {
			for _, e := range h.events.ReplaySince(last, t.ID) {
				fmt.Fprintf(w, "id: %s\ndata: %s\n\n", e.ID, e.Data)
			}
		}
	}

	log := hlog.FromRequest(r)
	log.Debug().Str("task_id", t.ID).Msg("progress stream opened")

	writeSnapshot := func(t *tasks.Task) bool {
		data, err := json.Marshal(t)
		if err != nil {
			return false
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		rc.Flush()
		return t.Status.Terminal()
	}
	if writeSnapshot(t) {
		return
	}

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("task_id", t.ID).Msg("progress stream closed by client")
			return
		case e := <-ch:
			fmt.Fprintf(w, "id: %s\ndata: %s\n\n", e.ID, e.Data)
			rc.Flush()
			var s struct {
				Status tasks.Status `json:"status"`
			}
			if json.Unmarshal(e.Data, &s) == nil && s.Status.Terminal() {
				return
			}
		case <-ticker.C:
			cur, err := h.store.Get(r.Context(), t.ID)
			if err != nil {
				return
			}
			if writeSnapshot(cur) {
				return
			}
		}
	}
}

func (h *TasksHandler) lookup(w http.ResponseWriter, r *http.Request) (*tasks.Task, bool) {
	id, err := PathID(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	t, err := h.store.Get(r.Context(), id)
	if errors.Is(err, tasks.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "task not found")
		return nil, false
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("task_id", id).Msg("load task failed")
		WriteError(w, http.StatusInternalServerError, "failed to load task")
		return nil, false
	}
	return t, true
}

// Routes registers task routes on the given router. Reads are open; writes
// go through auth.
func (h *TasksHandler) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Get("/progress/{id}", h.Progress)
	r.Get("/status/{id}", h.Status)
	r.Get("/download/{id}", h.Download)
	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/generate", h.Generate)
		r.Post("/abort/{id}", h.Abort)
	})
}
