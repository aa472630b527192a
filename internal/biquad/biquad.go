// Package biquad implements a fixed-coefficient direct-form-I IIR biquad
// modeling a 2nd-order Butterworth bandpass over the 0.1-0.5 Hz breathing
// band at a nominal 50 Hz input rate.
package biquad

// Coefficients are the fixed 0.1-0.5 Hz Butterworth bandpass coefficients
// at 50 Hz. There is no dynamic reconfiguration.
const (
	b0 = 0.0201
	b1 = 0.0
	b2 = -0.0201
	a1 = -1.5610
	a2 = 0.6414
)

// Filter holds the two-sample input/output history of the biquad.
type Filter struct {
	x1, x2 float32
	y1, y2 float32
}

// New creates a filter with zeroed history.
func New() *Filter {
	return &Filter{}
}

// Process runs one sample through the filter and updates its history.
func (f *Filter) Process(x float32) float32 {
	y := float32(b0)*x + float32(b1)*f.x1 + float32(b2)*f.x2 -
		float32(a1)*f.y1 - float32(a2)*f.y2

	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// Reset zeroes all four state variables.
func (f *Filter) Reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}
