// Package starfield simulates and draws the twinkling starfield and its
// occasional meteors.
package starfield

import (
	"fmt"
	"math"

	"github.com/gogpu/gg"
	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/surface"
)

const (
	SparkleChance  = 0.18
	HeroChance     = 0.25
	DiagonalChance = 0.5
	DriftX         = 0.08
	DriftY         = 0.04

	MeteorChance = 0.012
	MeteorFade   = 0.018

	DefaultSparkleBudget = 28
	smallViewport        = 720
)

// Source supplies uniform random numbers in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Star is a twinkling point. Sparkle stars additionally carry rotating arms.
type Star struct {
	X, Y       float64
	Radius     float64
	Phase      float64
	PulseSpeed float64
	VX, VY     float64
	Alpha      float64

	Sparkle       bool
	Rotation      float64
	RotationSpeed float64
	Flow          float64
	FlowSpeed     float64
	ArmLength     float64
	ArmWidth      float64
	Diagonals     bool
}

// Meteor is a short-lived streak travelling along a diagonal.
type Meteor struct {
	X, Y      float64
	Length    float64
	Speed     float64
	Thickness float64
	Angle     float64
	Alpha     float64
}

// Field holds the simulation state for one viewport.
type Field struct {
	rng        Source
	width      float64
	height     float64
	stars      []Star
	meteors    []Meteor
	maxMeteors int
	spawned    uint64
}

// NewField creates an empty field.
func NewField(rng Source) *Field {
	return &Field{rng: rng}
}

// StarCount sizes the population from the viewport area, scaled by density and
// divided by sqrt(dpr) so dense screens are not oversubscribed.
func StarCount(width, height, dpr, density float64, minStars, maxStars int) int {
	if width <= 0 || height <= 0 {
		return 0
	}
	if dpr < 1 {
		dpr = 1
	}
	base := math.Round(math.Sqrt(width*height) / 30)
	base = math.Min(110, math.Max(18, base))
	n := int(math.Round(base * density / math.Sqrt(dpr)))
	if n < minStars {
		n = minStars
	}
	if maxStars > 0 && n > maxStars {
		n = maxStars
	}
	return n
}

// MeteorCap is the number of meteors allowed at once.
func MeteorCap(width, height, density float64) int {
	base := 4.0
	if math.Min(width, height) < smallViewport {
		base = 2
	}
	n := int(math.Round(base * density))
	if n < 1 {
		n = 1
	}
	return n
}

// Populate replaces the stars for a viewport and resets meteors.
func (f *Field) Populate(width, height, dpr float64, cfg params.StarSettings) {
	f.width = width
	f.height = height
	f.maxMeteors = MeteorCap(width, height, cfg.Density)
	f.meteors = f.meteors[:0]
	f.stars = f.stars[:0]
	if !cfg.ShowStars {
		return
	}
	n := StarCount(width, height, dpr, cfg.Density, cfg.MinStars, cfg.MaxStars)
	for i := 0; i < n; i++ {
		f.stars = append(f.stars, f.newStar(cfg.SizeScale))
	}
}

// Reset drops every star and meteor.
func (f *Field) Reset() {
	f.stars = f.stars[:0]
	f.meteors = f.meteors[:0]
}

// Reposition scatters the existing stars across new bounds.
func (f *Field) Reposition(width, height float64) {
	f.width = width
	f.height = height
	for i := range f.stars {
		f.stars[i].X = f.rng.Float64() * width
		f.stars[i].Y = f.rng.Float64() * height
	}
	f.meteors = f.meteors[:0]
}

func (f *Field) newStar(sizeScale float64) Star {
	st := Star{
		X:          f.rng.Float64() * f.width,
		Y:          f.rng.Float64() * f.height,
		Radius:     (f.rng.Float64()*1.1 + 0.6) * sizeScale,
		Phase:      f.rng.Float64() * 2 * math.Pi,
		PulseSpeed: f.rng.Float64()*0.006 + 0.002,
		VX:         DriftX,
		VY:         DriftY,
	}
	st.Alpha = 0.5 + 0.3*math.Sin(st.Phase)
	st.Sparkle = f.rng.Float64() < SparkleChance
	if st.Sparkle {
		hero := f.rng.Float64() < HeroChance
		if hero {
			st.ArmLength = 18 * sizeScale
			st.ArmWidth = 1.6 * sizeScale
		} else {
			st.ArmLength = 12 * sizeScale
			st.ArmWidth = 1.2 * sizeScale
		}
		st.Rotation = f.rng.Float64() * 2 * math.Pi
		st.RotationSpeed = f.rng.Float64()*0.0012 + 0.0004
		if f.rng.Float64() < 0.5 {
			st.RotationSpeed = -st.RotationSpeed
		}
		st.Flow = f.rng.Float64() * 2 * math.Pi
		st.FlowSpeed = f.rng.Float64()*0.008 + 0.003
		st.Diagonals = f.rng.Float64() < DiagonalChance
	}
	return st
}

// Step advances every star and meteor by one frame and drops meteors that
// faded out or left the viewport.
func (f *Field) Step() {
	for i := range f.stars {
		st := &f.stars[i]
		st.Phase += st.PulseSpeed
		st.Alpha = 0.5 + 0.3*math.Sin(st.Phase)
		st.X = wrap(st.X+st.VX, f.width)
		st.Y = wrap(st.Y+st.VY, f.height)
		if st.Sparkle {
			st.Rotation += st.RotationSpeed
			st.Flow += st.FlowSpeed
		}
	}

	live := f.meteors[:0]
	for _, m := range f.meteors {
		m.X += math.Cos(m.Angle) * m.Speed
		m.Y += math.Sin(m.Angle) * m.Speed
		m.Alpha -= MeteorFade
		if m.Alpha <= 0 || m.Y > f.height || m.X < 0 || m.X > f.width {
			continue
		}
		live = append(live, m)
	}
	f.meteors = live
}

// MaybeSpawn adds a meteor with the per-frame spawn probability.
func (f *Field) MaybeSpawn() bool {
	if f.rng.Float64() >= MeteorChance {
		return false
	}
	return f.SpawnMeteor()
}

// SpawnMeteor adds a meteor in the central 60% of the viewport unless the
// cap is reached.
func (f *Field) SpawnMeteor() bool {
	if len(f.meteors) >= f.maxMeteors {
		return false
	}
	angle := 3 * math.Pi / 4
	m := Meteor{
		X:         f.width*0.2 + f.rng.Float64()*f.width*0.6,
		Y:         f.height*0.2 + f.rng.Float64()*f.height*0.6,
		Length:    f.rng.Float64()*40 + 40,
		Speed:     f.rng.Float64()*3 + 3.2,
		Thickness: f.rng.Float64()*0.8 + 1.2,
		Alpha:     1,
	}
	if f.rng.Float64() > 0.5 {
		angle = math.Pi / 4
	}
	m.Angle = angle
	f.meteors = append(f.meteors, m)
	f.spawned++
	return true
}

// Stars returns the live stars. The slice is owned by the field.
func (f *Field) Stars() []Star { return f.stars }

// Meteors returns the live meteors. The slice is owned by the field.
func (f *Field) Meteors() []Meteor { return f.meteors }

func (f *Field) MaxMeteors() int { return f.maxMeteors }

// Spawned counts every meteor launched since the field was created.
func (f *Field) Spawned() uint64 { return f.spawned }

func (f *Field) Bounds() (w, h float64) { return f.width, f.height }

var (
	tailStops = []surface.Stop{{Offset: 0, Alpha: 0.9}, {Offset: 0.3, Alpha: 0.28}, {Offset: 1, Alpha: 0}}
	headStops = []surface.Stop{{Offset: 0, Alpha: 0.75}, {Offset: 0.45, Alpha: 0.35}, {Offset: 1, Alpha: 0}}
)

const diagonalDim = 0.7

// Draw paints the field and reports how many stars got sparkle arms. At most
// budget sparkle stars get their arms drawn; the rest fall back to the plain
// glow.
func (f *Field) Draw(s *surface.Surface, starRGB, meteorRGB params.RGB, budget int) (int, error) {
	sr, sg, sb := starRGB.Floats()
	starCol := gg.RGBA{R: sr, G: sg, B: sb, A: 1}
	arms := 0
	for i := range f.stars {
		st := &f.stars[i]
		if err := drawGlow(s, st, starCol); err != nil {
			return arms, fmt.Errorf("star glow: %w", err)
		}
		if st.Sparkle && arms < budget {
			if err := drawArms(s, st, starCol); err != nil {
				return arms, fmt.Errorf("sparkle arms: %w", err)
			}
			arms++
		}
	}

	mr, mg, mb := meteorRGB.Floats()
	meteorCol := gg.RGBA{R: mr, G: mg, B: mb, A: 1}
	for i := range f.meteors {
		if err := drawMeteor(s, &f.meteors[i], meteorCol); err != nil {
			return arms, fmt.Errorf("meteor: %w", err)
		}
	}
	return arms, nil
}

func drawGlow(s *surface.Surface, st *Star, col gg.RGBA) error {
	core := math.Max(1.2, st.Radius*1.2)
	outer := core * 3.2
	stops := []surface.Stop{
		{Offset: 0, Alpha: math.Min(1, 0.9*st.Alpha)},
		{Offset: 0.4, Alpha: 0.45 * st.Alpha},
		{Offset: 1, Alpha: 0},
	}
	return s.Glow(st.X, st.Y, outer, col, stops, surface.SourceOver)
}

func drawArms(s *surface.Surface, st *Star, col gg.RGBA) error {
	band := 0.16 + 0.08*math.Sin(st.Flow)
	peak := math.Min(0.9, 0.75*st.Alpha)
	stops := []surface.Stop{
		{Offset: math.Max(0, 0.5-band*1.6), Alpha: 0},
		{Offset: math.Max(0, 0.5-band*0.5), Alpha: peak},
		{Offset: math.Min(1, 0.5+band*0.5), Alpha: peak},
		{Offset: math.Min(1, 0.5+band*1.6), Alpha: 0},
	}
	L := st.ArmLength
	arm := func(angle, length, width, dim float64) error {
		dx, dy := math.Cos(angle)*length, math.Sin(angle)*length
		profile := func(t float64) float64 {
			// the gradient always spans the full arm length
			pos := (2*t - 1) * length
			return surface.StopAlpha(stops, (pos+L)/(2*L)) * dim
		}
		return s.Segment(st.X-dx, st.Y-dy, st.X+dx, st.Y+dy, width, col, profile, surface.Lighter)
	}

	if err := arm(st.Rotation, L, st.ArmWidth, 1); err != nil {
		return err
	}
	if err := arm(st.Rotation+math.Pi/2, L, st.ArmWidth, 1); err != nil {
		return err
	}
	if st.Diagonals {
		diagLen := L * 0.85
		diagW := math.Max(0.8, st.ArmWidth*0.8)
		if err := arm(st.Rotation+math.Pi/4, diagLen, diagW, diagonalDim); err != nil {
			return err
		}
		if err := arm(st.Rotation-math.Pi/4, diagLen, diagW, diagonalDim); err != nil {
			return err
		}
	}
	return nil
}

func drawMeteor(s *surface.Surface, m *Meteor, col gg.RGBA) error {
	tailX := m.X - math.Cos(m.Angle)*m.Length
	tailY := m.Y - math.Sin(m.Angle)*m.Length
	alpha := m.Alpha
	err := s.Segment(m.X, m.Y, tailX, tailY, m.Thickness, col, func(t float64) float64 {
		return surface.StopAlpha(tailStops, t) * alpha
	}, surface.Lighter)
	if err != nil {
		return err
	}

	head := col
	head.A = alpha
	return s.Glow(m.X, m.Y, m.Thickness*2.1, head, headStops, surface.Lighter)
}

func wrap(v, size float64) float64 {
	if size <= 0 {
		return 0
	}
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	if v >= size {
		v = 0
	}
	return v
}
