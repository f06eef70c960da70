package spectrum

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Estimate is the one-sided spectrum of one analysis window.
type Estimate struct {
	SampleRate  int       `json:"sampleRate"`  // Sample rate of the analysed signal in Hz
	Size        int       `json:"size"`        // Transform length
	Frequencies []float64 `json:"frequencies"` // Bin frequencies in Hz, ascending from 0 to fs/2
	Magnitudes  []float64 `json:"magnitudes"`  // Single-sided amplitude per bin, in signal units
	PSD         []float64 `json:"psd"`         // Magnitudes in dB, floored at MagnitudeFloor
}

// Len returns the number of bins.
func (e *Estimate) Len() int {
	return len(e.Magnitudes)
}

// Peak returns the strongest bin above DC. ok is false when the estimate
// is nil or has no bin other than DC.
func (e *Estimate) Peak() (frequency, magnitude float64, ok bool) {
	if e == nil || len(e.Magnitudes) < 2 {
		return 0, 0, false
	}

	i := floats.MaxIdx(e.Magnitudes[1:]) + 1
	return e.Frequencies[i], e.Magnitudes[i], true
}

// Summary condenses one analysed window into a handful of scalars.
type Summary struct {
	Timestamp     time.Time `json:"timestamp"`     // When the window was analysed
	Min           float64   `json:"min"`           // Smallest sample in the window
	Max           float64   `json:"max"`           // Largest sample in the window
	Mean          float64   `json:"mean"`          // DC level
	RMS           float64   `json:"rms"`           // Root mean square of the window
	PeakFrequency *float64  `json:"peakFrequency"` // Dominant non-DC frequency in Hz (nil if none)
	PeakMagnitude *float64  `json:"peakMagnitude"` // Amplitude of the dominant bin (nil if none)
}

// Summarize computes the summary of a window and its spectrum.
func Summarize(ts time.Time, samples []float64, e *Estimate) Summary {
	s := Summary{Timestamp: ts}

	if len(samples) > 0 {
		s.Min = floats.Min(samples)
		s.Max = floats.Max(samples)
		s.Mean = floats.Sum(samples) / float64(len(samples))
		s.RMS = math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
	}

	if e != nil {
		if f, m, ok := e.Peak(); ok {
			s.PeakFrequency, s.PeakMagnitude = &f, &m
		}
	}

	return s
}
