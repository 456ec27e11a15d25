package api

import (
	"net/http"
	"time"

	"github.com/snarg/subforge/internal/caption"
	"github.com/snarg/subforge/internal/metrics"
	"github.com/snarg/subforge/internal/pipeline"
)

type captionRequest struct {
	Text       string         `json:"text"`
	Hints      []caption.Hint `json:"hints"`
	Duration   float64        `json:"duration"`
	Resolution string         `json:"resolution"`
	Style      string         `json:"style"`
	Font       string         `json:"font"`
	LeadMS     *int           `json:"lead_ms"`
}

// CaptionsHandler compiles a caption track for one piece of narration
// without rendering any video.
type CaptionsHandler struct {
	canvas caption.Canvas
}

func NewCaptionsHandler(canvas caption.Canvas) *CaptionsHandler {
	return &CaptionsHandler{canvas: canvas}
}

func (h *CaptionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body captionRequest
	if err := DecodeJSON(r, &body); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if body.Duration < 0 {
		WriteError(w, http.StatusBadRequest, "duration must not be negative")
		return
	}

	req := caption.Request{
		Text:     body.Text,
		Hints:    body.Hints,
		Duration: body.Duration,
		Canvas:   pipeline.ResolveCanvas(body.Resolution, h.canvas),
		StyleID:  body.Style,
		FontName: body.Font,
	}
	if body.LeadMS != nil {
		lead := time.Duration(*body.LeadMS) * time.Millisecond
		req.LeadOffset = &lead
	}

	doc := caption.Compile(req)
	metrics.ObserveDocument(doc)
	if doc == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", caption.ContentType)
	w.WriteHeader(http.StatusOK)
	doc.WriteTo(w)
}
