package display

import (
	"fmt"
	"math"
)

// Hue values understood by the bridge (0 to 65280 around the colour wheel)
var hueColors = map[string]int{
	"red":    0,
	"yellow": 12750,
	"green":  25500,
	"blue":   46920,
	"violet": 56100,
	"max":    65280,
}

// ColorScale maps portfolio performance onto a hue between two colours
type ColorScale struct {
	palette   []int
	threshold float64
}

// NewColorScale builds a scale with numColors steps between down and up.
// Performance is clamped to ±threshold before mapping.
func NewColorScale(down, up string, numColors int, threshold float64) (*ColorScale, error) {
	downHue, ok := hueColors[down]
	if !ok {
		return nil, fmt.Errorf("unknown colour %q", down)
	}
	upHue, ok := hueColors[up]
	if !ok {
		return nil, fmt.Errorf("unknown colour %q", up)
	}
	if numColors < 1 {
		return nil, fmt.Errorf("number of colours must be positive, got %d", numColors)
	}
	if !(threshold > 0) {
		return nil, fmt.Errorf("performance threshold must be positive, got %v", threshold)
	}

	palette := make([]int, numColors+1)
	for i := range palette {
		palette[i] = int(float64(downHue) + float64(upHue-downHue)*float64(i)/float64(numColors))
	}

	return &ColorScale{palette: palette, threshold: threshold}, nil
}

// Performance returns current/baseline - 1
func Performance(current, baseline float64) float64 {
	if baseline == 0 {
		return 0
	}
	return current/baseline - 1
}

// Hue returns the hue for a performance value
func (s *ColorScale) Hue(performance float64) int {
	if math.IsNaN(performance) {
		performance = 0
	}
	performance = math.Max(-s.threshold, math.Min(s.threshold, performance))

	percentile := (performance + s.threshold) / (2 * s.threshold)
	idx := int(math.Ceil(float64(len(s.palette)) * percentile))
	if idx >= len(s.palette) {
		idx = len(s.palette) - 1
	}
	return s.palette[idx]
}

// Palette returns a copy of the hue steps
func (s *ColorScale) Palette() []int {
	out := make([]int, len(s.palette))
	copy(out, s.palette)
	return out
}
