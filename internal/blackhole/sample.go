package blackhole

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/guidoenr/backdrop/internal/params"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	thumbSize     = 32
	minAlpha      = 0.2
	maxImageBytes = 32 << 20
)

// LoadImage decodes a reference image from a file path or an http(s) URL.
func LoadImage(ctx context.Context, client *http.Client, source string) (image.Image, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("empty image source")
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return fetchImage(ctx, client, source)
	}
	f, err := os.Open(filepath.Clean(source))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	return img, nil
}

func fetchImage(ctx context.Context, client *http.Client, url string) (image.Image, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

// DominantColor shrinks img to a 32x32 thumbnail and averages it, weighting
// each pixel by squared brightness and warmth so bright golds dominate.
// Nearly transparent pixels are ignored. ok is false when nothing qualified.
func DominantColor(img image.Image) (col params.RGB, ok bool) {
	if img == nil || img.Bounds().Empty() {
		return col, false
	}
	thumb := image.NewNRGBA(image.Rect(0, 0, thumbSize, thumbSize))
	draw.ApproxBiLinear.Scale(thumb, thumb.Rect, img, img.Bounds(), draw.Src, nil)

	var r, g, b, wsum float64
	for i := 0; i < len(thumb.Pix); i += 4 {
		R := float64(thumb.Pix[i])
		G := float64(thumb.Pix[i+1])
		B := float64(thumb.Pix[i+2])
		if float64(thumb.Pix[i+3])/255 < minAlpha {
			continue
		}
		brightness := (R + G + B) / 3
		warm := math.Max(0, R-B) + math.Max(0, R-G)
		w := (brightness / 255) * (brightness / 255) * (1 + warm/255)
		r += R * w
		g += G * w
		b += B * w
		wsum += w
	}
	if wsum <= 0 {
		return col, false
	}
	col = params.RGB{channel(r / wsum), channel(g / wsum), channel(b / wsum)}
	return col, true
}

func channel(v float64) uint8 {
	return uint8(math.Min(255, math.Max(0, math.Round(v))))
}
