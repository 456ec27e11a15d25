// Package imagegen produces scene background images.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/subforge/internal/caption"
)

// Painter renders locally generated backgrounds.
type Painter interface {
	GradientBackground(ctx context.Context, out, top, bottom string) error
	SolidBackground(ctx context.Context, out, colour string) error
}

// Request describes one background image.
type Request struct {
	Prompt string
	Canvas caption.Canvas
	// APIKey and Model override the configured credentials when set.
	APIKey string
	Model  string
}

// Options configures a Generator.
type Options struct {
	URL     string
	APIKey  string
	Model   string
	Mock    bool // never call the API
	Timeout time.Duration
	Painter Painter
	Log     zerolog.Logger
}

// Generator creates backgrounds through the Seedream image API, falling back
// to a locally rendered backdrop.
type Generator struct {
	opts   Options
	client *http.Client
	log    zerolog.Logger
}

// New creates a Generator.
func New(opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Generator{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    opts.Log,
	}
}

// Generate writes a background image for req to out. It only fails when
// even the local fallback cannot be rendered.
func (g *Generator) Generate(ctx context.Context, req Request, out string) error {
	key := req.APIKey
	if key == "" {
		key = g.opts.APIKey
	}
	if g.opts.Mock || key == "" {
		return g.opts.Painter.SolidBackground(ctx, out, mockColour(req.Prompt))
	}

	err := g.fetch(ctx, req, key, out)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	g.log.Warn().Err(err).Msg("image generation failed, rendering gradient backdrop")

	if err := g.opts.Painter.GradientBackground(ctx, out, "0x2d1b4e", "0x1a365d"); err != nil {
		g.log.Warn().Err(err).Msg("gradient backdrop failed, rendering solid backdrop")
		return g.opts.Painter.SolidBackground(ctx, out, "0x1e3a5f")
	}
	return nil
}

func mockColour(prompt string) string {
	if strings.Contains(strings.ToLower(prompt), "tech") {
		return "0x2c3e50"
	}
	return "0x1a1a1a"
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Watermark      bool   `json:"watermark"`
}

type generateResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Generator) fetch(ctx context.Context, req Request, key, out string) error {
	model := req.Model
	if model == "" {
		model = g.opts.Model
	}
	body, err := json.Marshal(generateRequest{
		Model:          model,
		Prompt:         req.Prompt,
		Size:           req.Canvas.String(),
		ResponseFormat: "url",
	})
	if err != nil {
		return err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+key)

	resp, err := g.client.Do(hreq)
	if err != nil {
		return fmt.Errorf("seedream request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("seedream API error (status %d): %s", resp.StatusCode, string(raw))
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if gr.Error != nil {
		return fmt.Errorf("seedream: %s", gr.Error.Message)
	}
	if len(gr.Data) == 0 || gr.Data[0].URL == "" {
		return fmt.Errorf("seedream: no image in response")
	}
	return g.download(ctx, gr.Data[0].URL, out)
}

func (g *Generator) download(ctx context.Context, url, out string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download image: status %d", resp.StatusCode)
	}

	tmp := out + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, out)
}
