package app

import (
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"
	"github.com/guidoenr/backdrop/internal/env"
	"github.com/guidoenr/backdrop/internal/surface"
)

// Compositor stacks renderer surfaces onto an opaque black frame at the
// viewport's device resolution.
type Compositor struct {
	out *surface.Surface
}

// NewCompositor creates an empty compositor.
func NewCompositor() *Compositor {
	return &Compositor{out: surface.NewBuffer(1, 1)}
}

// Compose paints base with ordinary alpha, then each overlay with a screen
// blend, and returns a view of the result valid until the next call.
func (c *Compositor) Compose(vp env.Viewport, base *surface.Surface, overlays ...*surface.Surface) *image.NRGBA {
	dpr := math.Max(1, vp.DPR)
	w := int(math.Max(1, math.Floor(vp.Width*dpr)))
	h := int(math.Max(1, math.Floor(vp.Height*dpr)))
	if c.out.BufferWidth() != w || c.out.BufferHeight() != h {
		c.out.SetSize(w, h)
	}
	c.out.Fill(gg.RGBA{A: 1})

	if base != nil {
		base.CompositeOnto(c.out.RGBA())
	}
	ctx := c.out.Context()
	for _, o := range overlays {
		if o == nil {
			continue
		}
		ctx.DrawImageEx(gg.ImageBufFromImage(o.RGBA()), gg.DrawImageOptions{
			DstWidth:  float64(w),
			DstHeight: float64(h),
			BlendMode: gg.BlendScreen,
		})
	}
	return c.out.NRGBA()
}

// SavePNG writes the last composed frame.
func (c *Compositor) SavePNG(path string) error {
	return c.out.Context().SavePNG(path)
}

// EncodePNG streams the last composed frame.
func (c *Compositor) EncodePNG(w io.Writer) error {
	return c.out.Context().EncodePNG(w)
}
