// Package noise builds the tileable turbulence texture used by the accretion disk.
package noise

import "math"

const (
	DefaultSeed uint32 = 1337

	octaves     = 4
	persistence = 0.55
	lacunarity  = 2.1
	contrast    = 1.6
)

// Field is an immutable square grid of filament noise in [0,1].
type Field struct {
	size int
	seed uint32
	data []uint8
}

// Build precomputes a resolution x resolution field. The values carry a
// horizontal flow bias and a contrast curve so samples read as filaments.
func Build(resolution int, seed uint32) *Field {
	if resolution < 1 {
		resolution = 1
	}
	f := &Field{
		size: resolution,
		seed: seed,
		data: make([]uint8, resolution*resolution),
	}
	inv := 1.0 / float64(resolution)
	for y := 0; y < resolution; y++ {
		ny := float64(y) * inv
		row := y * resolution
		for x := 0; x < resolution; x++ {
			nx := float64(x) * inv
			n := Fractal(nx*6, ny*3.5+math.Sin(nx*math.Pi)*0.15, seed)
			v := math.Pow(n, contrast)
			f.data[row+x] = uint8(math.Floor(v * 255))
		}
	}
	return f
}

// Size returns the grid resolution.
func (f *Field) Size() int { return f.size }

// Seed returns the hash seed the field was built with.
func (f *Field) Seed() uint32 { return f.seed }

// Sample returns the nearest stored value. Both coordinates wrap, so any
// finite u, v (negative included) is valid.
func (f *Field) Sample(u, v float64) float64 {
	x := int(wrap01(u) * float64(f.size-1))
	y := int(wrap01(v) * float64(f.size-1))
	return float64(f.data[y*f.size+x]) / 255
}

// Fractal sums four octaves of value noise and normalizes the result to [0,1].
func Fractal(x, y float64, seed uint32) float64 {
	amp := 1.0
	freq := 1.0
	total := 0.0
	sumAmp := 0.0

	for i := 0; i < octaves; i++ {
		total += Value(x*freq, y*freq, seed) * amp
		sumAmp += amp
		amp *= persistence
		freq *= lacunarity
	}

	return total / sumAmp
}

// Value is smooth lattice noise in [0,1].
func Value(x, y float64, seed uint32) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	xi := int32(x0)
	yi := int32(y0)

	sx := smoothstep(x - x0)
	sy := smoothstep(y - y0)

	n00 := Hash(xi, yi, seed)
	n10 := Hash(xi+1, yi, seed)
	n01 := Hash(xi, yi+1, seed)
	n11 := Hash(xi+1, yi+1, seed)

	ix0 := lerp(n00, n10, sx)
	ix1 := lerp(n01, n11, sx)

	return lerp(ix0, ix1, sy)
}

// Hash maps a lattice point to [0,1] using 32-bit integer mixing only, so
// results are identical on every platform.
func Hash(x, y int32, seed uint32) float64 {
	h := uint32(x) ^ (uint32(y) << 16) ^ seed
	h = (h ^ (h >> 15)) * 2246822519
	h = (h ^ (h >> 13)) * 3266489917
	h ^= h >> 16
	return float64(h) / 4294967295
}

func wrap01(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	v -= math.Floor(v)
	if v >= 1 {
		return 0
	}
	return v
}

func smoothstep(v float64) float64 {
	return v * v * (3 - 2*v)
}

func lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}
