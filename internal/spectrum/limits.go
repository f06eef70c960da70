package spectrum

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Axis limits of the live view. PSDFloor is the fixed bottom of the PSD
// axis; PSDMinTop keeps a quiet spectrum from collapsing the axis.
const (
	PSDFloor     = -160
	PSDMinTop    = -60
	PSDHeadroom  = 5
	AxisHeadroom = 1.1
	AxisFootroom = 0.9
)

// Limits is a closed axis range.
type Limits struct {
	Low  float64
	High float64
}

// TimeDomainLimits scales the sample range outwards by 10% on the side
// away from zero:
//
//	all positive:   [min*0.9, max*1.1]
//	all negative:   [min*1.1, max*0.9]
//	straddles zero: [min*1.1, max*1.1]
//
// An empty or flat-zero window gets [-1, 1].
func TimeDomainLimits(samples []float64) Limits {
	if len(samples) == 0 {
		return Limits{-1, 1}
	}

	low, high := floats.Min(samples), floats.Max(samples)

	var l Limits
	switch {
	case low > 0:
		l = Limits{low * AxisFootroom, high * AxisHeadroom}
	case high < 0:
		l = Limits{low * AxisHeadroom, high * AxisFootroom}
	default:
		l = Limits{low * AxisHeadroom, high * AxisHeadroom}
	}

	return widen(l)
}

// MagnitudeLimits returns [0, 1.1 * max] over the bins between DC and the
// last bin, which are left out so that an offset does not flatten the plot.
func MagnitudeLimits(magnitudes []float64) Limits {
	var peak float64
	if len(magnitudes) > 2 {
		peak = floats.Max(magnitudes[1 : len(magnitudes)-1])
	}
	if peak <= 0 {
		return Limits{0, 1}
	}

	return Limits{0, peak * AxisHeadroom}
}

// PSDLimits returns [-160, max(-60, max(psd)+5)] dB.
func PSDLimits(psd []float64) Limits {
	top := float64(PSDMinTop)
	if len(psd) > 0 {
		top = math.Max(top, floats.Max(psd)+PSDHeadroom)
	}

	return Limits{PSDFloor, top}
}

func widen(l Limits) Limits {
	if l.High > l.Low {
		return l
	}
	return Limits{l.Low - 1, l.High + 1}
}
