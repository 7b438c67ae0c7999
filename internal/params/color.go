package params

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// RGB is an 8-bit sRGB triple.
type RGB [3]uint8

var (
	White = RGB{255, 255, 255}
	Gold  = RGB{255, 204, 0}
)

// Floats returns the channels scaled to [0,1].
func (c RGB) Floats() (float64, float64, float64) {
	return float64(c[0]) / 255, float64(c[1]) / 255, float64(c[2]) / 255
}

// Scale multiplies every channel, saturating at 255.
func (c RGB) Scale(f float64) RGB {
	var out RGB
	for i, v := range c {
		out[i] = uint8(clamp(float64(int(float64(v)*f+0.5)), 0, 255))
	}
	return out
}

// Mix blends toward other by t in [0,1], rounding like the canvas does.
func (c RGB) Mix(other RGB, t float64) RGB {
	t = clamp(t, 0, 1)
	var out RGB
	for i := range c {
		v := float64(c[i])*(1-t) + float64(other[i])*t
		out[i] = uint8(clamp(float64(int(v+0.5)), 0, 255))
	}
	return out
}

func (c RGB) String() string {
	return fmt.Sprintf("%d,%d,%d", c[0], c[1], c[2])
}

// ParseRGB accepts "r,g,b", "r g b" or a hex color such as "#ffcc00".
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RGB{}, fmt.Errorf("empty color")
	}
	if strings.HasPrefix(s, "#") {
		col, err := colorful.Hex(s)
		if err != nil {
			return RGB{}, fmt.Errorf("parse hex color %q: %w", s, err)
		}
		r, g, b := col.RGB255()
		return RGB{r, g, b}, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("parse color %q: want 3 components, got %d", s, len(parts))
	}
	var out RGB
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return RGB{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		out[i] = uint8(clampInt(v, 0, 255))
	}
	return out, nil
}

// UnmarshalJSON accepts either a [r,g,b] array or a string understood by ParseRGB.
func (c *RGB) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		parsed, err := ParseRGB(text)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode color: %w", err)
	}
	if len(raw) != 3 {
		return fmt.Errorf("decode color: want 3 components, got %d", len(raw))
	}
	for i, v := range raw {
		c[i] = uint8(clampInt(v, 0, 255))
	}
	return nil
}

// MarshalJSON writes the color as a [r,g,b] array.
func (c RGB) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{int(c[0]), int(c[1]), int(c[2])})
}
