package pipeline

import "github.com/snarg/subforge/internal/caption"

// Resolution is a selectable output aspect ratio.
type Resolution struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Canvas caption.Canvas `json:"-"`
}

var Resolutions = []Resolution{
	{ID: "9:16", Name: "竖屏 9:16 (抖音/短视频)", Canvas: caption.Canvas{Width: 1080, Height: 1920}},
	{ID: "16:9", Name: "横屏 16:9 (B站/YouTube)", Canvas: caption.Canvas{Width: 1920, Height: 1080}},
	{ID: "1:1", Name: "正方形 1:1", Canvas: caption.Canvas{Width: 1080, Height: 1080}},
}

// ResolveCanvas maps an aspect ratio id ("16:9") or an explicit "WxH" size to
// a canvas. Empty or unknown values give fallback.
func ResolveCanvas(id string, fallback caption.Canvas) caption.Canvas {
	for _, r := range Resolutions {
		if r.ID == id {
			return r.Canvas
		}
	}
	if id == "" {
		return fallback
	}
	c := caption.ParseCanvas(id)
	if c == caption.DefaultCanvas && id != caption.DefaultCanvas.String() {
		return fallback
	}
	return c
}

// Track is a background music choice. Files live at <BGM_DIR>/<id>.mp3.
type Track struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NoMusic disables the background mix.
const NoMusic = "none"

var Music = []Track{
	{ID: NoMusic, Name: "无音乐"},
	{ID: "chill", Name: "安静思考 (Chill)"},
	{ID: "tech", Name: "动感科技 (Tech)"},
	{ID: "inspiring", Name: "昂扬向上 (Inspire)"},
}

// musicVolume is the background level before ducking.
const musicVolume = 0.3
