package render

import (
	"context"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/daqscope/internal/acquisition"
	"github.com/roman-kulish/daqscope/internal/spectrum"
)

func testFrame(t *testing.T, rate int) *acquisition.Frame {
	t.Helper()

	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = 0.2 + 0.5*math.Sin(2*math.Pi*50*float64(i)/float64(rate))
	}

	est, err := spectrum.Analyze(samples, rate, rate)
	require.NoError(t, err)

	return &acquisition.Frame{
		Timestamp:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		SampleRate: rate,
		TimeDomain: samples,
		Spectrum:   est,
	}
}

func countColor(img *image.RGBA, area image.Rectangle, c interface{ RGBA() (r, g, b, a uint32) }) int {
	r, g, b, _ := c.RGBA()

	var n int
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			if pr>>8 == r>>8 && pg>>8 == g>>8 && pb>>8 == b>>8 {
				n++
			}
		}
	}
	return n
}

func TestScope_Draw(t *testing.T) {
	scope, err := NewScope(Config{Width: 800, Height: 600, Location: time.UTC})
	require.NoError(t, err)

	img, err := scope.Draw(testFrame(t, 2000))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())

	panels := scope.panels()
	assert.Positive(t, countColor(img, panels[0], timeTraceColor), "time domain trace")
	assert.Positive(t, countColor(img, panels[1], magnitudeTraceColor), "magnitude trace")
	assert.Positive(t, countColor(img, panels[2], psdTraceColor), "PSD trace")
}

func TestScope_DrawShortWindow(t *testing.T) {
	scope, err := NewScope(Config{})
	require.NoError(t, err)

	// fewer samples than pixel columns are joined with lines
	img, err := scope.Draw(testFrame(t, 64))
	require.NoError(t, err)
	assert.Positive(t, countColor(img, scope.panels()[0], timeTraceColor))
}

func TestScope_DrawWithoutSpectrum(t *testing.T) {
	scope, err := NewScope(Config{})
	require.NoError(t, err)

	frame := testFrame(t, 1000)
	frame.Spectrum = nil

	img, err := scope.Draw(frame)
	require.NoError(t, err)

	panels := scope.panels()
	assert.Positive(t, countColor(img, panels[0], timeTraceColor))
	assert.Zero(t, countColor(img, panels[1], magnitudeTraceColor))

	_, err = scope.Draw(&acquisition.Frame{SampleRate: 1000})
	require.NoError(t, err, "an empty frame still renders")
}

func TestNewScope_TooSmall(t *testing.T) {
	_, err := NewScope(Config{Width: 120, Height: 90})
	assert.Error(t, err)
}

func TestLive_WritesLatestFrame(t *testing.T) {
	scope, err := NewScope(Config{Width: 640, Height: 480})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scope.png")
	live := NewLive(scope, path)
	live.Start(context.Background())

	live.Render(testFrame(t, 1000))

	require.Eventually(t, func() bool { return live.Rendered() >= 1 }, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, live.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 480), img.Bounds())

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".scope.png.*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "no temporary files left behind")
}

func TestLive_RenderDoesNotBlock(t *testing.T) {
	scope, err := NewScope(Config{})
	require.NoError(t, err)

	// not started: nothing drains the queue
	live := NewLive(scope, filepath.Join(t.TempDir(), "scope.png"))

	frames := []*acquisition.Frame{testFrame(t, 100), testFrame(t, 200), testFrame(t, 300)}
	for _, frame := range frames {
		live.Render(frame)
	}

	assert.EqualValues(t, 2, live.Dropped())
	assert.Same(t, frames[2], <-live.frames, "latest frame wins")
	require.NoError(t, live.Close())
}

func TestWritePNG_MissingDirectory(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	assert.Error(t, WritePNG(filepath.Join(t.TempDir(), "missing", "out.png"), img))
}

func TestHumanHz(t *testing.T) {
	assert.Equal(t, "1.00 kHz", humanHz(1000))
	assert.Equal(t, "50.00 Hz", humanHz(50))
}
