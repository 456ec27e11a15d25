package caption

// Effect is the animation applied to a token while it is being spoken.
type Effect string

const (
	EffectZoomPop     Effect = "zoom_pop"
	EffectKaraokeWipe Effect = "karaoke_wipe"
	EffectExplode     Effect = "explode"
	EffectNone        Effect = "none"
)

// Colours use the ASS &HAABBGGRR notation.
const (
	colourWhite    = "&H00FFFFFF"
	colourYellow   = "&H0000FFFF"
	colourPink     = "&H00FF00FF"
	colourRed      = "&H000000FF"
	colourCharcoal = "&H00151515"
	colourBlack    = "&H00000000"
	colourShadow50 = "&H80000000"
	colourShadow38 = "&H60000000"
)

// Preset is a named caption look.
type Preset struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Base    string `json:"base_color"`
	Active  string `json:"active_color"`
	Outline string `json:"outline_color"`
	Shadow  string `json:"shadow_color"`
	Effect  Effect `json:"effect"`
}

// DefaultPresetID is used for unknown style identifiers.
const DefaultPresetID = "classic_yellow"

var presets = [...]Preset{
	{
		ID:      "classic_yellow",
		Name:    "经典黄白 (缩放)",
		Base:    colourWhite,
		Active:  colourYellow,
		Outline: colourCharcoal,
		Shadow:  colourShadow50,
		Effect:  EffectZoomPop,
	},
	{
		ID:      "modern_white",
		Name:    "现代极简 (平滑)",
		Base:    colourWhite,
		Active:  colourYellow,
		Outline: colourBlack,
		Shadow:  colourShadow38,
		Effect:  EffectKaraokeWipe,
	},
	{
		ID:      "vibrant_pink",
		Name:    "活力粉紫 (缩放)",
		Base:    colourWhite,
		Active:  colourPink,
		Outline: colourCharcoal,
		Shadow:  colourShadow50,
		Effect:  EffectZoomPop,
	},
	{
		ID:      "explode_shock",
		Name:    "炸裂冲击 (震撼)",
		Base:    colourWhite,
		Active:  colourYellow,
		Outline: colourRed,
		Shadow:  colourShadow50,
		Effect:  EffectExplode,
	},
}

// LookupPreset returns the preset for id, or the default preset when id is
// unknown. It never fails.
func LookupPreset(id string) Preset {
	for _, p := range presets {
		if p.ID == id {
			return p
		}
	}
	return presets[0]
}

// Presets lists the registry in display order.
func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets[:])
	return out
}

// Fonts are the font families offered to clients. Any other name is passed
// through to the style sheet unchanged.
var Fonts = []string{
	"PingFang SC",
	"Hiragino Sans GB",
	"Microsoft YaHei",
	"Arial Unicode MS",
	"STHeiti",
}

// DefaultFont is the style sheet font when none is requested.
const DefaultFont = "PingFang SC"
