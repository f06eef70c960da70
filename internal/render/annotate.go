package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/roman-kulish/daqscope/internal/spectrum"
)

const (
	dpi            = 72.0
	tickMarkLength = 5
	labelMargin    = 4
)

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	img      *image.RGBA
}

func newAnnotator(img *image.RGBA, parsedFont *truetype.Font, size float64) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(size)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.Black)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	return &annotator{
		context: ctx,
		img:     img,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     dpi,
			Hinting: font.HintingFull,
		}),
	}
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) width(s string) int {
	return font.MeasureString(a.fontFace, s).Round()
}

func (a *annotator) draw(s string, x, y int) error {
	if _, err := a.context.DrawString(s, freetype.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing %q: %w", s, err)
	}
	return nil
}

// title centres text in the band above area
func (a *annotator) title(area image.Rectangle, text string) error {
	x := area.Min.X + (area.Dx()-a.width(text))/2
	return a.draw(text, x, area.Min.Y-labelMargin)
}

// yScale labels the bottom, middle and top of a panel
func (a *annotator) yScale(area image.Rectangle, l spectrum.Limits, unit string) error {
	for i := 0; i <= 2; i++ {
		v := l.Low + float64(i)*(l.High-l.Low)/2
		y := area.Max.Y - 1 - i*(area.Dy()-1)/2

		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			a.img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%.3g %s", v, unit)
		if err := a.draw(label, area.Min.X-tickMarkLength-labelMargin-a.width(label), y+a.fontHeight()/3); err != nil {
			return err
		}
	}
	return nil
}

// xTimeScale labels a time axis spanning duration seconds in five steps
func (a *annotator) xTimeScale(area image.Rectangle, duration float64) error {
	const steps = 5

	for i := 0; i <= steps; i++ {
		t := duration * float64(i) / steps
		x := area.Min.X + i*(area.Dx()-1)/steps

		label := fmt.Sprintf("%.2f s", t)
		if err := a.xTick(area, x, label); err != nil {
			return err
		}
	}
	return nil
}

// xFrequencyScale labels the decades of a logarithmic frequency axis
func (a *annotator) xFrequencyScale(area image.Rectangle, axis frequencyAxis) error {
	for f := 1.0; f <= axis.max; f *= 10 {
		if err := a.xTick(area, axis.x(area, f), humanHz(f)); err != nil {
			return err
		}
	}
	return nil
}

func (a *annotator) xTick(area image.Rectangle, x int, label string) error {
	for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
		a.img.Set(x, y, color.Black)
	}

	w := a.width(label)
	x = min(max(x-w/2, area.Min.X-w/2), area.Max.X-w/2)
	return a.draw(label, x, area.Max.Y+tickMarkLength+labelMargin+a.fontHeight()*2/3)
}

// infoBar writes a line of text into the bottom border
func (a *annotator) infoBar(area image.Rectangle, text string) error {
	return a.draw(text, area.Min.X, a.img.Bounds().Max.Y-a.fontHeight()/2)
}

func humanHz(hz float64) string {
	fract, suffix := humanize.ComputeSI(hz)
	return fmt.Sprintf("%0.2f %sHz", fract, suffix)
}

// frequencyAxis maps frequencies onto a log10 axis over [1 Hz, max]
type frequencyAxis struct {
	max float64
}

func (f frequencyAxis) valid() bool {
	return f.max > 1
}

func (f frequencyAxis) x(area image.Rectangle, hz float64) int {
	ratio := math.Log10(hz) / math.Log10(f.max)
	return area.Min.X + int(math.Round(ratio*float64(area.Dx()-1)))
}
