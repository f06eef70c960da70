package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// MagnitudeFloor replaces magnitudes below it before conversion to dB, so
// that silent bins map to -200 dB instead of -Inf.
const MagnitudeFloor = 1e-10

// ErrInputUnderrun is returned when the window does not hold exactly one
// second of samples
var ErrInputUnderrun = errors.New("analysis input underrun")

// Analyzer computes one-sided amplitude spectra of fixed-length windows.
type Analyzer struct {
	rate        int
	size        int
	frequencies []float64
}

// NewAnalyzer creates an analyzer for windows of rate samples transformed
// at size points. size is usually equal to rate.
func NewAnalyzer(rate, size int) (*Analyzer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", rate)
	}
	if size < 2 {
		return nil, fmt.Errorf("invalid transform size: %d", size)
	}

	return &Analyzer{
		rate:        rate,
		size:        size,
		frequencies: linspace(0, float64(rate/2), size/2),
	}, nil
}

// Analyze returns the spectrum of samples, which must hold exactly one
// window of rate samples.
//
// The samples are zero-padded or truncated to the transform size. Bins
// [0, size/2) are kept and scaled by 2/len(samples), except DC which is
// scaled by 1/len(samples).
func (a *Analyzer) Analyze(samples []float64) (*Estimate, error) {
	if len(samples) != a.rate {
		return nil, fmt.Errorf("%w: %d samples, %d required", ErrInputUnderrun, len(samples), a.rate)
	}

	x := make([]float64, a.size)
	copy(x, samples)

	spectrum := fft.FFTReal(x)

	bins := a.size / 2
	scale := 2 / float64(len(samples))

	e := Estimate{
		SampleRate:  a.rate,
		Size:        a.size,
		Frequencies: append([]float64(nil), a.frequencies...),
		Magnitudes:  make([]float64, bins),
		PSD:         make([]float64, bins),
	}

	for i := 0; i < bins; i++ {
		m := cmplx.Abs(spectrum[i]) * scale
		if i == 0 {
			m /= 2
		}
		e.Magnitudes[i] = m
		e.PSD[i] = 20 * math.Log10(math.Max(m, MagnitudeFloor))
	}

	return &e, nil
}

// Analyze is a shorthand for a single window analysis.
func Analyze(samples []float64, rate, size int) (*Estimate, error) {
	a, err := NewAnalyzer(rate, size)
	if err != nil {
		return nil, err
	}
	return a.Analyze(samples)
}

// linspace returns num evenly spaced values over [start, stop], endpoint included.
func linspace(start, stop float64, num int) []float64 {
	out := make([]float64, num)
	if num == 1 {
		out[0] = start
		return out
	}

	step := (stop - start) / float64(num-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[num-1] = stop
	return out
}
