// Command captions compiles caption tracks for a batch of scenes without
// rendering video. Input is a JSON array of scenes read from a file or stdin:
//
//	[{"text": "第一句。", "duration": 2.4, "hints": [{"onset": 0.1}]}]
//
// Each scene with something to display is written to <out>/scene_<n>.ass.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/snarg/subforge/internal/caption"
	"github.com/snarg/subforge/internal/pipeline"
)

type scene struct {
	Text     string         `json:"text"`
	Hints    []caption.Hint `json:"hints"`
	Duration float64        `json:"duration"`
}

func main() {
	in := flag.String("in", "-", "Scene JSON file, - for stdin")
	out := flag.String("out", ".", "Output directory")
	resolution := flag.String("resolution", "9:16", "Aspect ratio id or WIDTHxHEIGHT")
	style := flag.String("style", caption.DefaultPresetID, "Caption preset id")
	font := flag.String("font", "", "Font family")
	lead := flag.Duration("lead", caption.DefaultLeadOffset, "Highlight lead before each onset")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	scenes, err := readScenes(*in)
	if err != nil {
		log.Fatal().Err(err).Str("in", *in).Msg("failed to read scenes")
	}
	if err := os.MkdirAll(*out, 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create output directory")
	}

	canvas := pipeline.ResolveCanvas(*resolution, caption.ParseCanvas(*resolution))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, s := range scenes {
		g.Go(func() error {
			doc := caption.Compile(caption.Request{
				Text:       s.Text,
				Hints:      s.Hints,
				Duration:   s.Duration,
				Canvas:     canvas,
				StyleID:    *style,
				FontName:   *font,
				LeadOffset: lead,
			})
			if doc == nil {
				log.Warn().Int("scene", i+1).Msg("nothing to caption, skipped")
				return nil
			}
			path := filepath.Join(*out, fmt.Sprintf("scene_%d.ass", i+1))
			if err := os.WriteFile(path, []byte(doc.String()), 0644); err != nil {
				return fmt.Errorf("scene %d: %w", i+1, err)
			}
			log.Debug().Int("scene", i+1).Int("cues", len(doc.Cues)).Str("path", path).Msg("captions written")
			return nil
		})
	}

	start := time.Now()
	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("compile failed")
	}
	log.Info().Int("scenes", len(scenes)).Dur("took", time.Since(start)).Msg("captions compiled")
}

func readScenes(path string) ([]scene, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var scenes []scene
	if err := json.NewDecoder(r).Decode(&scenes); err != nil {
		return nil, fmt.Errorf("decode scenes: %w", err)
	}
	return scenes, nil
}
