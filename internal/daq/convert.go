package daq

import (
	"fmt"
	"math"
)

const (
	// DefaultBitDepth is the resolution of the unsigned ADC codes
	DefaultBitDepth = 16

	// DefaultFullScale maps the bipolar code range onto [-1, 1) volts
	DefaultFullScale = 1.0
)

// Converter maps unsigned B-bit codes of a bipolar input range to volts:
//
//	volts = (raw / 2^(B-1) - 1) * fullScale
//
// With the defaults this is raw/2^15 - 1.
type Converter struct {
	half      float64 // 2^(B-1)
	fullScale float64
}

// NewConverter creates a converter for the given bit depth and full-scale voltage.
func NewConverter(bitDepth int, fullScale float64) (Converter, error) {
	if bitDepth < 1 || bitDepth > 16 {
		return Converter{}, fmt.Errorf("invalid bit depth: %d, must be between 1 and 16", bitDepth)
	}
	if fullScale <= 0 || math.IsInf(fullScale, 0) || math.IsNaN(fullScale) {
		return Converter{}, fmt.Errorf("invalid full scale: %f", fullScale)
	}
	return Converter{
		half:      math.Ldexp(1, bitDepth-1),
		fullScale: fullScale,
	}, nil
}

// DefaultConverter returns the 16-bit, unit full-scale converter.
func DefaultConverter() Converter {
	return Converter{half: math.Ldexp(1, DefaultBitDepth-1), fullScale: DefaultFullScale}
}

// Convert converts raw codes to volts. Codes outside the bit range are not
// validated and still map linearly.
func (c Converter) Convert(raw []RawSample) []float64 {
	out := make([]float64, len(raw))
	for i, r := range raw {
		out[i] = (float64(r)/c.half - 1) * c.fullScale
	}
	return out
}
