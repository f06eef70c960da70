package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/roman-kulish/daqscope/internal/acquisition"
	"github.com/roman-kulish/daqscope/internal/spectrum"
)

const (
	defaultWidth    = 1200
	defaultHeight   = 900
	defaultFontSize = 13.0

	defaultDatetimeFormat = time.DateTime + ".000"

	// Space between stacked panels, holds the X scale of the panel above
	panelGap = 36
)

var (
	timeTraceColor      = colorful.Hsv(236, 1, 0.90) // blue
	magnitudeTraceColor = colorful.Hsv(0, 1, 0.90)   // red
	psdTraceColor       = colorful.Hsv(120, 0.8, 0.6)
	gridColor           = colorful.Hsv(0, 0, 0.85)
)

// BorderConfig defines the sizes of white space around the panels
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Space for the Y scales
	Bottom int // Space for the last X scale and the information bar
	Right  int // Right padding
}

// Config holds the scope image configuration
type Config struct {
	Width          int            // Image width in pixels
	Height         int            // Image height in pixels
	FontSize       float64        // Font size in points
	DatetimeFormat string         // Format of the frame timestamp
	Location       *time.Location // Timezone of the frame timestamp

	BorderConfig BorderConfig
}

// Scope draws a frame as three stacked panels: the time domain signal,
// the single-sided magnitude spectrum and the PSD, both on a logarithmic
// frequency axis.
type Scope struct {
	config Config
	font   *truetype.Font
}

// NewScope creates a scope with the given configuration, zero values are
// replaced with defaults
func NewScope(config Config) (*Scope, error) {
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.BorderConfig == (BorderConfig{}) {
		config.BorderConfig = BorderConfig{Top: 36, Left: 90, Bottom: 60, Right: 30}
	}

	b := config.BorderConfig
	if config.Width-b.Left-b.Right < 100 || config.Height-b.Top-b.Bottom-2*panelGap < 3*50 {
		return nil, fmt.Errorf("image %dx%d too small for the scope", config.Width, config.Height)
	}

	parsedFont, err := freetype.ParseFont(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	return &Scope{config: config, font: parsedFont}, nil
}

// Draw renders frame into a new image. A frame without a spectrum leaves
// the spectrum panels empty.
func (s *Scope) Draw(frame *acquisition.Frame) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, s.config.Width, s.config.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	panels := s.panels()
	for _, p := range panels {
		drawFrame(img, p)
	}

	ann := newAnnotator(img, s.font, s.config.FontSize)
	defer ann.Close()

	title := fmt.Sprintf("Sample rate = %s", humanHz(float64(frame.SampleRate)))
	if err := ann.title(panels[0], title); err != nil {
		return nil, fmt.Errorf("drawing title: %w", err)
	}

	// Time domain
	limits := spectrum.TimeDomainLimits(frame.TimeDomain)
	plotEnvelope(img, panels[0], frame.TimeDomain, limits, timeTraceColor)

	if err := ann.yScale(panels[0], limits, "V"); err != nil {
		return nil, fmt.Errorf("drawing time domain scale: %w", err)
	}
	duration := float64(len(frame.TimeDomain)) / float64(max(frame.SampleRate, 1))
	if err := ann.xTimeScale(panels[0], duration); err != nil {
		return nil, fmt.Errorf("drawing time scale: %w", err)
	}

	// Spectrum
	if est := frame.Spectrum; est != nil {
		axis := frequencyAxis{max: float64(est.SampleRate / 2)}

		magLimits := spectrum.MagnitudeLimits(est.Magnitudes)
		psdLimits := spectrum.PSDLimits(est.PSD)

		if axis.valid() {
			plotSpectrum(img, panels[1], axis, est.Frequencies, est.Magnitudes, magLimits, magnitudeTraceColor)
			plotSpectrum(img, panels[2], axis, est.Frequencies, est.PSD, psdLimits, psdTraceColor)

			for i, p := range panels[1:] {
				if err := ann.xFrequencyScale(p, axis); err != nil {
					return nil, fmt.Errorf("drawing frequency scale %d: %w", i, err)
				}
			}
		}

		if err := ann.yScale(panels[1], magLimits, "V"); err != nil {
			return nil, fmt.Errorf("drawing magnitude scale: %w", err)
		}
		if err := ann.yScale(panels[2], psdLimits, "dB"); err != nil {
			return nil, fmt.Errorf("drawing PSD scale: %w", err)
		}
	}

	if err := ann.infoBar(panels[2], s.info(frame)); err != nil {
		return nil, fmt.Errorf("drawing info bar: %w", err)
	}

	return img, nil
}

func (s *Scope) info(frame *acquisition.Frame) string {
	var sb strings.Builder

	sb.WriteString(frame.Timestamp.In(s.config.Location).Format(s.config.DatetimeFormat))
	sb.WriteString(fmt.Sprintf("; Window: %s samples", humanize.Comma(int64(len(frame.TimeDomain)))))

	if frame.Spectrum != nil {
		if f, m, ok := frame.Spectrum.Peak(); ok {
			sb.WriteString(fmt.Sprintf("; Peak: %s at %.3g V", humanHz(f), m))
		}
		if frame.Spectrum.Size > 0 {
			bin := float64(frame.SampleRate) / float64(frame.Spectrum.Size)
			sb.WriteString(fmt.Sprintf("; 1 bin = %s", humanHz(bin)))
		}
	}

	return sb.String()
}

// panels splits the area inside the borders into three stacked panels
func (s *Scope) panels() [3]image.Rectangle {
	b := s.config.BorderConfig

	left, right := b.Left, s.config.Width-b.Right
	top := b.Top
	height := (s.config.Height - b.Top - b.Bottom - 2*panelGap) / 3

	var panels [3]image.Rectangle
	for i := range panels {
		y := top + i*(height+panelGap)
		panels[i] = image.Rect(left, y, right, y+height)
	}
	return panels
}

func drawFrame(img *image.RGBA, area image.Rectangle) {
	for x := area.Min.X; x < area.Max.X; x++ {
		img.Set(x, area.Min.Y, gridColor)
		img.Set(x, area.Max.Y-1, gridColor)
	}
	for y := area.Min.Y; y < area.Max.Y; y++ {
		img.Set(area.Min.X, y, gridColor)
		img.Set(area.Max.X-1, y, gridColor)
	}
}

// plotEnvelope draws samples left to right across the panel. When there
// are more samples than pixel columns, each column shows the min..max
// range of the samples that fall into it.
func plotEnvelope(img *image.RGBA, area image.Rectangle, samples []float64, l spectrum.Limits, c color.Color) {
	n := len(samples)
	if n == 0 {
		return
	}

	columns := area.Dx()
	if n <= columns {
		prevX, prevY := -1, 0
		for i, v := range samples {
			x := area.Min.X
			if n > 1 {
				x += i * (columns - 1) / (n - 1)
			}
			y := valueToY(area, v, l)
			if prevX >= 0 {
				drawLine(img, prevX, prevY, x, y, c)
			} else {
				img.Set(x, y, c)
			}
			prevX, prevY = x, y
		}
		return
	}

	for col := 0; col < columns; col++ {
		from, to := col*n/columns, (col+1)*n/columns
		if to <= from {
			continue
		}

		lo, hi := samples[from], samples[from]
		for _, v := range samples[from:to] {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}

		x := area.Min.X + col
		drawLine(img, x, valueToY(area, lo, l), x, valueToY(area, hi, l), c)
	}
}

// plotSpectrum draws values against frequencies on a log frequency axis,
// bins below 1 Hz (DC included) are left out.
func plotSpectrum(img *image.RGBA, area image.Rectangle, axis frequencyAxis, freqs, values []float64, l spectrum.Limits, c color.Color) {
	prevX, prevY := -1, 0
	for i, f := range freqs {
		if f < 1 || i >= len(values) {
			continue
		}

		x, y := axis.x(area, math.Min(f, axis.max)), valueToY(area, values[i], l)
		if prevX >= 0 {
			drawLine(img, prevX, prevY, x, y, c)
		}
		prevX, prevY = x, y
	}
}

// valueToY maps v onto the panel, clamped to its bounds
func valueToY(area image.Rectangle, v float64, l spectrum.Limits) int {
	ratio := (v - l.Low) / (l.High - l.Low)
	if math.IsNaN(ratio) {
		ratio = 0
	}
	ratio = math.Min(math.Max(ratio, 0), 1)

	return area.Max.Y - 1 - int(math.Round(ratio*float64(area.Dy()-1)))
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	steps := max(abs(x1-x0), abs(y1-y0))
	if steps == 0 {
		img.Set(x0, y0, c)
		return
	}

	for i := 0; i <= steps; i++ {
		x := x0 + (x1-x0)*i/steps
		y := y0 + (y1-y0)*i/steps
		img.Set(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
