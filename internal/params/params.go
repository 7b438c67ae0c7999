package params

import (
	"math"
	"strings"
)

// Scene selects the primary renderer mounted by the host.
type Scene string

const (
	SceneStars     Scene = "stars"
	SceneBlackhole Scene = "blackhole"
)

var sceneNames = []string{string(SceneStars), string(SceneBlackhole)}

// SceneNames returns the supported scenes.
func SceneNames() []string {
	out := make([]string, len(sceneNames))
	copy(out, sceneNames)
	return out
}

// ParseScene maps loose user input onto a scene, defaulting to stars.
func ParseScene(name string) Scene {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "blackhole", "black-hole", "disk", "hole":
		return SceneBlackhole
	default:
		return SceneStars
	}
}

// Settings is the live render configuration. Renderers re-read it every frame.
type Settings struct {
	Scene         Scene            `json:"scene"`
	Enabled       bool             `json:"enabled"`
	LowPower      bool             `json:"lowPower"`
	ReducedMotion bool             `json:"reducedMotion"`
	TargetFPS     float64          `json:"targetFps"`
	Quality       Quality          `json:"quality"`
	Stars         StarSettings     `json:"stars"`
	Disk          DiskSettings     `json:"disk"`
	Parallax      ParallaxSettings `json:"parallax"`
}

// StarSettings configures the starfield and meteor shower.
type StarSettings struct {
	Density       float64 `json:"density"`
	SizeScale     float64 `json:"sizeScale"`
	ShowStars     bool    `json:"showStars"`
	StarColor     RGB     `json:"colorPrimary"`
	MeteorColor   RGB     `json:"colorSecondary"`
	SparkleBudget int     `json:"sparkleBudget"`
	MinStars      int     `json:"minStars"`
	MaxStars      int     `json:"maxStars"`
}

// DiskSettings configures the pixel black hole.
type DiskSettings struct {
	TargetFPS         float64 `json:"fps"`
	Scale             float64 `json:"scale"`
	YScale            float64 `json:"yScale"`
	DiskRadius        float64 `json:"diskRadius"`
	Beaming           float64 `json:"beaming"`
	BeamingPhase      float64 `json:"beamingPhase"`
	BeamingGamma      float64 `json:"beamingGamma"`
	Glow              float64 `json:"glow"`
	Lensing           float64 `json:"lensing"`
	BackGlow          float64 `json:"backGlow"`
	UnderGlow         float64 `json:"underGlow"`
	InnerHot          float64 `json:"innerHot"`
	HighDetail        bool    `json:"highDetail"`
	PixelSize         int     `json:"pixelSize"`
	TargetDisplaySize float64 `json:"targetDisplaySize,omitempty"`
	UseRadialPalette  bool    `json:"useRadialPalette"`
	PaletteOuter      RGB     `json:"paletteOuter"`
	PaletteMid        RGB     `json:"paletteMid"`
	PaletteInner      RGB     `json:"paletteInner"`
	PhotonRingPasses  int     `json:"photonRingPasses"`
	InflowRate        float64 `json:"inflowRate"`
	FlickerAmp        float64 `json:"flickerAmp"`
	TurbSize          int     `json:"turbSize"`
	SliceMul          float64 `json:"sliceMul"`
	StepAdd           int     `json:"stepAdd"`
	ImageSource       string  `json:"imageSource,omitempty"`
	Color             *RGB    `json:"colorPrimary,omitempty"`
}

// ParallaxSettings configures the decorative image layers.
type ParallaxSettings struct {
	Enabled bool     `json:"enabled"`
	Preset  string   `json:"preset"`
	Sources []string `json:"sources,omitempty"`
	Opacity float64  `json:"opacity"`
}

// Defaults returns the settings the site ships with.
func Defaults() Settings {
	return Settings{
		Scene:     SceneStars,
		Enabled:   true,
		TargetFPS: 30,
		Quality:   QualityBalanced,
		Stars: StarSettings{
			Density:       1,
			SizeScale:     1,
			ShowStars:     true,
			StarColor:     White,
			MeteorColor:   White,
			SparkleBudget: 28,
			MinStars:      8,
			MaxStars:      110,
		},
		Disk: DiskSettings{
			TargetFPS:        28,
			Scale:            0.18,
			YScale:           0.45,
			DiskRadius:       0.62,
			Beaming:          0.7,
			BeamingGamma:     1.4,
			Glow:             0.8,
			Lensing:          0.28,
			BackGlow:         0.8,
			UnderGlow:        0.35,
			InnerHot:         0.35,
			HighDetail:       true,
			PixelSize:        1,
			PaletteOuter:     RGB{255, 180, 0},
			PaletteMid:       RGB{255, 210, 80},
			PaletteInner:     RGB{255, 245, 220},
			PhotonRingPasses: 1,
			TurbSize:         256,
			SliceMul:         1,
		},
		Parallax: ParallaxSettings{
			Preset:  "galaxy",
			Opacity: 1,
		},
	}
}

// Active reports whether animated output should be produced at all.
func (s Settings) Active() bool {
	return s.Enabled && !s.LowPower && !s.ReducedMotion
}

// Sanitize clamps every field into a safe range. It never fails.
func (s *Settings) Sanitize() {
	s.Scene = ParseScene(string(s.Scene))
	s.Quality = ParseQuality(string(s.Quality))
	s.TargetFPS = sanitizeFPS(s.TargetFPS, 30)

	st := &s.Stars
	st.Density = clamp(finite(st.Density, 1), 0, 4)
	st.SizeScale = clamp(finite(st.SizeScale, 1), 0.1, 4)
	st.SparkleBudget = clampInt(st.SparkleBudget, 0, 256)
	if st.MinStars <= 0 {
		st.MinStars = 8
	}
	if st.MaxStars <= 0 {
		st.MaxStars = 110
	}
	st.MaxStars = clampInt(st.MaxStars, 1, 2000)
	st.MinStars = clampInt(st.MinStars, 0, st.MaxStars)

	d := &s.Disk
	d.TargetFPS = sanitizeFPS(d.TargetFPS, 28)
	d.Scale = clamp(finite(d.Scale, 0.18), 0.05, 1)
	d.YScale = clamp(finite(d.YScale, 0.45), 0.05, 1)
	d.DiskRadius = clamp(finite(d.DiskRadius, 0.62), 0.05, 0.9)
	d.Beaming = clamp(finite(d.Beaming, 0.7), 0, 2)
	d.BeamingPhase = math.Mod(finite(d.BeamingPhase, 0), 2*math.Pi)
	d.BeamingGamma = clamp(finite(d.BeamingGamma, 1.4), 1, 8)
	d.Glow = clamp(finite(d.Glow, 0.8), 0, 2)
	d.Lensing = clamp(finite(d.Lensing, 0.28), 0, 2)
	d.BackGlow = clamp(finite(d.BackGlow, 0.8), 0, 2)
	d.UnderGlow = clamp(finite(d.UnderGlow, 0.35), 0, 2)
	d.InnerHot = clamp(finite(d.InnerHot, 0.35), 0, 1)
	d.PixelSize = clampInt(d.PixelSize, 1, 8)
	d.TargetDisplaySize = clamp(finite(d.TargetDisplaySize, 0), 0, 8192)
	d.PhotonRingPasses = clampInt(d.PhotonRingPasses, 1, 8)
	d.InflowRate = clamp(finite(d.InflowRate, 0), 0, 50)
	d.FlickerAmp = clamp(finite(d.FlickerAmp, 0), 0, 0.5)
	d.TurbSize = clampInt(d.TurbSize, 128, 1024)
	d.SliceMul = clamp(finite(d.SliceMul, 1), 0.5, 4)
	d.StepAdd = clampInt(d.StepAdd, 0, 64)

	p := &s.Parallax
	p.Preset = strings.ToLower(strings.TrimSpace(p.Preset))
	p.Opacity = clamp(finite(p.Opacity, 1), 0, 1)
}

// Effective returns a sanitized copy with the quality tier applied.
func (s Settings) Effective() Settings {
	s.Sanitize()
	s.Quality.apply(&s)
	return s
}

func sanitizeFPS(v, fallback float64) float64 {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return clamp(v, 1, 240)
}

func finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
