package render

import (
	"bufio"
	"image"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"golang.org/x/term"
)

// Frame contains the rendered terminal lines and optional status text.
type Frame struct {
	Lines  []string
	Status string
}

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// Terminal draws frames as colored glyphs, one cell per block of pixels.
type Terminal struct {
	out        *bufio.Writer
	width      int
	height     int
	autoSize   bool
	palette    []rune
	useANSI    bool
	showStatus bool
	cells      *image.NRGBA
	started    bool
}

// NewTerminal creates a terminal presenter. A zero width or height follows
// the terminal size.
func NewTerminal(opts Options) *Terminal {
	return newTerminal(os.Stdout, opts)
}

func newTerminal(w io.Writer, opts Options) *Terminal {
	t := &Terminal{
		out:        bufio.NewWriterSize(w, 64*1024),
		width:      opts.Width,
		height:     opts.Height,
		autoSize:   opts.Width <= 0 || opts.Height <= 0,
		palette:    Palette(opts.Palette),
		useANSI:    opts.UseANSI,
		showStatus: opts.Status,
	}
	if t.width <= 0 {
		t.width = 80
	}
	if t.height <= 0 {
		t.height = 24
	}
	return t
}

// Size reports the grid size in cells, excluding the status line.
func (t *Terminal) Size() (int, int) {
	h := t.height
	if t.showStatus && h > 1 {
		h--
	}
	return t.width, h
}

// Present converts frame into glyph rows and writes them at the cursor home.
func (t *Terminal) Present(frame *image.NRGBA, status string) error {
	if !t.started {
		t.out.WriteString("\x1b[?1049h\x1b[2J\x1b[?25l")
		t.started = true
	}
	t.ensureDimensions()

	f := t.Render(frame, status)
	t.out.WriteString("\x1b[H")
	for _, line := range f.Lines {
		t.out.WriteString(line)
		t.out.WriteByte('\n')
	}
	if t.showStatus {
		t.out.WriteString(statusBar(f.Status, t.width))
	}
	return t.out.Flush()
}

// Close restores the cursor and leaves the alternate screen.
func (t *Terminal) Close() error {
	if !t.started {
		return nil
	}
	t.started = false
	t.out.WriteString("\x1b[?25h\x1b[?1049l\x1b[0m")
	return t.out.Flush()
}

// Render maps frame onto the cell grid. It does not touch the terminal.
func (t *Terminal) Render(frame *image.NRGBA, status string) Frame {
	cols, rows := t.Size()
	if frame == nil || cols <= 0 || rows <= 0 {
		return Frame{Status: status}
	}
	if t.cells == nil || t.cells.Rect.Dx() != cols || t.cells.Rect.Dy() != rows {
		t.cells = image.NewNRGBA(image.Rect(0, 0, cols, rows))
	}
	draw.ApproxBiLinear.Scale(t.cells, t.cells.Rect, frame, frame.Rect, draw.Src, nil)
	cells := t.cells

	lines := make([]string, rows)
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > rows {
		numWorkers = rows
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				var builder strings.Builder
				builder.Grow(cols * 8)
				lastColor := -1
				for x := 0; x < cols; x++ {
					char, fg := t.sampleCell(cells, x, y)
					if t.useANSI && fg != lastColor {
						builder.WriteString(colorCode(fg))
						lastColor = fg
					}
					builder.WriteRune(char)
				}
				if t.useANSI {
					builder.WriteString(resetANSI)
				}
				lines[y] = builder.String()
			}
		}()
	}
	for y := 0; y < rows; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()

	return Frame{Lines: lines, Status: status}
}

func (t *Terminal) sampleCell(cells *image.NRGBA, x, y int) (rune, int) {
	i := cells.PixOffset(x, y)
	a := float64(cells.Pix[i+3]) / 255
	r := float64(cells.Pix[i]) / 255 * a
	g := float64(cells.Pix[i+1]) / 255 * a
	b := float64(cells.Pix[i+2]) / 255 * a

	luma := 0.299*r + 0.587*g + 0.114*b
	index := clampInt(int(math.Sqrt(luma)*float64(len(t.palette)-1)+0.5), 0, len(t.palette)-1)
	if !t.useANSI {
		return t.palette[index], 15
	}
	// Glyph density carries brightness, so the color keeps only hue and saturation.
	h, s, _ := colorful.Color{R: r, G: g, B: b}.Hsv()
	lit := colorful.Hsv(h, s, 1).Clamped()
	return t.palette[index], rgbToANSI(lit.R, lit.G, lit.B)
}

func (t *Terminal) ensureDimensions() {
	if !t.autoSize {
		return
	}
	fd := int(os.Stdout.Fd())
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}
	t.width, t.height = w, h
}

func colorCode(index int) string {
	if index < 0 {
		index = 0
	} else if index >= len(precomputedANSI) {
		index = len(precomputedANSI) - 1
	}
	return precomputedANSI[index]
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// Grayscale ramp for neutral colors
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	if len(text) >= width {
		return text[:width]
	}
	return text + strings.Repeat(" ", width-len(text))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
