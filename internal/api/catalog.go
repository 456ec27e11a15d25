package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snarg/subforge/internal/caption"
	"github.com/snarg/subforge/internal/pipeline"
	"github.com/snarg/subforge/internal/speech"
)

// CatalogHandler lists the choices a generation request can make.
type CatalogHandler struct{}

func (CatalogHandler) Voices(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, speech.Voices)
}

func (CatalogHandler) Resolutions(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, pipeline.Resolutions)
}

func (CatalogHandler) Music(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, pipeline.Music)
}

type presetItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type subtitlePresetsResponse struct {
	Presets []presetItem `json:"presets"`
	Fonts   []string     `json:"fonts"`
}

func (CatalogHandler) SubtitlePresets(w http.ResponseWriter, r *http.Request) {
	resp := subtitlePresetsResponse{Fonts: caption.Fonts}
	for _, p := range caption.Presets() {
		resp.Presets = append(resp.Presets, presetItem{ID: p.ID, Name: p.Name})
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Routes registers catalog routes on the given router.
func (h CatalogHandler) Routes(r chi.Router) {
	r.Get("/voices", h.Voices)
	r.Get("/resolutions", h.Resolutions)
	r.Get("/bgm", h.Music)
	r.Get("/subtitle_presets", h.SubtitlePresets)
}
