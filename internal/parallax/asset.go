package parallax

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"
)

const (
	// MaxFrames caps how many animation frames are kept per layer.
	MaxFrames = 16
	// BakeScale shrinks baked sprites; they are stretched back when drawn.
	BakeScale = 0.5

	defaultGIFDelay = 100 * time.Millisecond
	maskReach       = 0.75
)

// asset is a decoded source: one frame for stills, several for animations.
type asset struct {
	frames []image.Image
	delays []time.Duration
}

func decodeAsset(r io.Reader) (*asset, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(6)
	if bytes.HasPrefix(head, []byte("GIF8")) {
		g, err := gif.DecodeAll(br)
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		return composeGIF(g), nil
	}
	img, _, err := image.Decode(br)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &asset{frames: []image.Image{img}, delays: []time.Duration{0}}, nil
}

// composeGIF flattens GIF frames onto a full canvas, honoring disposal, and
// keeps at most MaxFrames of them evenly spaced in time.
func composeGIF(g *gif.GIF) *asset {
	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		for _, fr := range g.Image {
			b := fr.Bounds()
			w, h = max(w, b.Max.X), max(h, b.Max.Y)
		}
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	keepEvery := 1
	if len(g.Image) > MaxFrames {
		keepEvery = int(math.Ceil(float64(len(g.Image)) / MaxFrames))
	}

	a := &asset{}
	for i, fr := range g.Image {
		var previous *image.NRGBA
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = cloneNRGBA(canvas)
		}
		draw.Draw(canvas, fr.Bounds(), fr, fr.Bounds().Min, draw.Over)

		delay := defaultGIFDelay
		if i < len(g.Delay) && g.Delay[i] > 1 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		if i%keepEvery == 0 {
			a.frames = append(a.frames, cloneNRGBA(canvas))
			a.delays = append(a.delays, delay)
		} else {
			a.delays[len(a.delays)-1] += delay
		}

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, fr.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}
	return a
}

func cloneNRGBA(src *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(src.Rect)
	copy(out.Pix, src.Pix)
	return out
}

// bake renders src into a square sprite of the given side: fitted inside the
// box, tinted, masked and rotated. The result is larger than side when rotated.
func bake(src image.Image, side int, spec LayerSpec) *image.NRGBA {
	if side < 1 {
		side = 1
	}
	box := image.NewNRGBA(image.Rect(0, 0, side, side))
	sb := src.Bounds()
	if sb.Dx() > 0 && sb.Dy() > 0 {
		fit := math.Min(float64(side)/float64(sb.Dx()), float64(side)/float64(sb.Dy()))
		fw := int(math.Round(float64(sb.Dx()) * fit))
		fh := int(math.Round(float64(sb.Dy()) * fit))
		x0, y0 := (side-fw)/2, (side-fh)/2
		draw.ApproxBiLinear.Scale(box, image.Rect(x0, y0, x0+fw, y0+fh), src, sb, draw.Src, nil)
	}
	tint(box, spec)
	if spec.Rotation == 0 {
		return box
	}
	return rotate(box, spec.Rotation)
}

// tint applies hue rotation, saturation and brightness plus the soft edge
// mask, in place.
func tint(img *image.NRGBA, spec LayerSpec) {
	sat := spec.Saturate
	if sat == 0 {
		sat = 1
	}
	bright := spec.Brightness
	if bright == 0 {
		bright = 1
	}
	adjust := spec.Hue != 0 || sat != 1 || bright != 1

	w, h := img.Rect.Dx(), img.Rect.Dy()
	cx, cy := float64(w)/2, float64(h)/2
	reach := math.Min(cx, cy) * maskReach

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*img.Stride + x*4
			if img.Pix[i+3] == 0 {
				continue
			}
			if adjust {
				c := colorful.Color{
					R: float64(img.Pix[i]) / 255,
					G: float64(img.Pix[i+1]) / 255,
					B: float64(img.Pix[i+2]) / 255,
				}
				hh, ss, vv := c.Hsv()
				hh = math.Mod(hh+spec.Hue+360, 360)
				out := colorful.Hsv(hh, math.Min(1, ss*sat), math.Min(1, vv*bright)).Clamped()
				img.Pix[i], img.Pix[i+1], img.Pix[i+2] = out.RGB255()
			}
			if spec.Mask && reach > 0 {
				d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
				m := math.Max(0, 1-d/reach)
				img.Pix[i+3] = uint8(float64(img.Pix[i+3])*m + 0.5)
			}
		}
	}
}

// rotate turns img clockwise by deg degrees about its centre onto a canvas
// large enough to hold every corner.
func rotate(img *image.NRGBA, deg float64) *image.NRGBA {
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	w, h := float64(img.Rect.Dx()), float64(img.Rect.Dy())
	side := int(math.Ceil(w*math.Abs(cos) + h*math.Abs(sin)))
	sideY := int(math.Ceil(w*math.Abs(sin) + h*math.Abs(cos)))
	out := image.NewNRGBA(image.Rect(0, 0, side, sideY))

	cx, cy := w/2, h/2
	ox, oy := float64(side)/2, float64(sideY)/2
	s2d := f64.Aff3{
		cos, -sin, ox - cos*cx + sin*cy,
		sin, cos, oy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(out, s2d, img, img.Rect, draw.Over, nil)
	return out
}
