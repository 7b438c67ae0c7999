// Package parallax places decorative image layers that shift with scroll
// position and pointer movement.
package parallax

import (
	"math"
	"sort"
	"strings"

	"github.com/guidoenr/backdrop/internal/params"
)

// SmallBreakpoint is the narrowest viewport on which the presets show.
const SmallBreakpoint = 640

// LayerSpec describes one layer. Horizontal and vertical offsets are
// fractions of the viewport measured from the chosen edge; negative values
// push the layer past that edge.
type LayerSpec struct {
	Name   string
	Source int // index into the configured sources, wrapped

	X, Y       float64
	FromRight  bool
	FromBottom bool

	Size   float64 // px, square box
	SizeVW float64 // when set, box size as a fraction of viewport width
	Jitter float64 // total random spread added to Size per mount

	ScrollFactor float64
	PointerX     float64 // px at full pointer deflection
	PointerY     float64
	Rotation     float64 // degrees, clockwise

	OpacityBias float64
	Hue         float64 // hue rotation in degrees
	Saturate    float64
	Brightness  float64
	Mask        bool // soft radial edge

	Glow      *params.RGB // paint a soft radial glow instead of an image
	GlowAlpha float64

	MinWidth float64
}

// IsGlow reports whether the layer paints a glow rather than an image.
func (l LayerSpec) IsGlow() bool { return l.Glow != nil }

// Preset is a named set of layers with a base opacity.
type Preset struct {
	Name    string
	Opacity float64
	Layers  []LayerSpec
}

var (
	glowWhite = params.RGB{255, 255, 255}
	glowWarm  = params.RGB{255, 120, 80}
)

var presets = map[string]Preset{
	"galaxy": {
		Name:    "galaxy",
		Opacity: 0.14,
		Layers: []LayerSpec{
			{Name: "blue-galaxy", Source: 0, X: -0.08, Y: 0.06, Size: 620, Jitter: 96,
				ScrollFactor: -0.03, PointerX: 8, PointerY: 6, Rotation: -4,
				Saturate: 1.1, Brightness: 1.05, Mask: true, MinWidth: SmallBreakpoint},
			{Name: "white-galaxy", Source: 1, X: -0.06, FromRight: true, Y: 0.24, Size: 540, Jitter: 80,
				ScrollFactor: -0.045, PointerX: 10, PointerY: 8, Rotation: 6, OpacityBias: -0.02,
				Saturate: 1.05, Brightness: 1.04, Mask: true, MinWidth: SmallBreakpoint},
			{Name: "dust", Source: 2, X: -0.12, Y: -0.06, FromBottom: true, Size: 680,
				ScrollFactor: -0.028, PointerX: 6, PointerY: 10, Rotation: 8, OpacityBias: -0.04,
				Saturate: 1.1, Brightness: 1.02, Mask: true, MinWidth: SmallBreakpoint},
		},
	},
	"blackhole-gif": {
		Name:    "blackhole-gif",
		Opacity: 0.18,
		Layers: []LayerSpec{
			{Name: "glow-left", X: -0.12, Y: 0.12, SizeVW: 0.48, Glow: &glowWhite, GlowAlpha: 0.07,
				ScrollFactor: -0.025, PointerX: 6, PointerY: 4, MinWidth: SmallBreakpoint},
			{Name: "glow-right", X: -0.10, FromRight: true, Y: -0.06, FromBottom: true, SizeVW: 0.52,
				Glow: &glowWarm, GlowAlpha: 0.06, ScrollFactor: -0.04, PointerX: 5, PointerY: 7,
				MinWidth: SmallBreakpoint},
			{Name: "magenta", Source: 0, X: -0.05, Y: 0.06, Size: 500, Jitter: 48,
				ScrollFactor: -0.03, PointerX: 14, PointerY: 10, Rotation: -8,
				Hue: 260, Saturate: 1.4, Brightness: 1.06, MinWidth: SmallBreakpoint},
			{Name: "golden", Source: 0, X: -0.03, FromRight: true, Y: 0.20, Size: 620, Jitter: 60,
				ScrollFactor: -0.05, PointerX: 18, PointerY: 12, Rotation: 6,
				Hue: 20, Saturate: 1.25, Brightness: 1.05, MinWidth: SmallBreakpoint},
			{Name: "cyan", Source: 0, X: -0.10, Y: -0.04, FromBottom: true, Size: 560,
				ScrollFactor: -0.045, PointerX: 10, PointerY: 16, Rotation: 10,
				Hue: 180, Saturate: 1.3, Brightness: 1.04, MinWidth: SmallBreakpoint},
			{Name: "blue", Source: 0, X: -0.08, FromRight: true, Y: -0.06, Size: 480,
				ScrollFactor: -0.022, PointerX: 9, PointerY: 6, Rotation: -4,
				Hue: 220, Saturate: 1.2, Brightness: 1.06, MinWidth: SmallBreakpoint},
		},
	},
}

// LookupPreset finds a preset by name. Unknown names fall back to galaxy.
func LookupPreset(name string) Preset {
	if p, ok := presets[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return presets["galaxy"]
}

// PresetNames lists the built-in presets.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Offset is the translation of a layer for the given scroll position and
// normalized pointer (mx, my in [-1,1]).
func Offset(spec LayerSpec, scrollY, mx, my float64) (dx, dy float64) {
	return mx * spec.PointerX, scrollY*spec.ScrollFactor + my*spec.PointerY
}

// NormalizePointer maps a pointer position in logical pixels onto [-1,1]
// on each axis.
func NormalizePointer(x, y, width, height float64) (nx, ny float64) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	return clampUnit(x/width*2 - 1), clampUnit(y/height*2 - 1)
}

// Box returns the unrotated, untranslated top-left corner of a layer of the
// given size inside a width x height viewport.
func Box(spec LayerSpec, size, width, height float64) (x, y float64) {
	x = width * spec.X
	if spec.FromRight {
		x = width - width*spec.X - size
	}
	y = height * spec.Y
	if spec.FromBottom {
		y = height - height*spec.Y - size
	}
	return x, y
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
