package rtd

import "math"

// FullScale is the conversion code that corresponds to R = Rref.
const FullScale = 32768

// cvdC is the Callendar-Van Dusen C coefficient, used only by the forward
// relation below 0 °C.
const cvdC = -4.183e-12

// Converter turns a resistance into degrees Celsius using the
// Callendar-Van Dusen relation above 0 °C and a fitted polynomial below.
type Converter struct {
	R0   float64    // nominal resistance at 0 °C
	RRef float64    // reference resistor
	A, B float64    // CVD coefficients for T >= 0
	Poly [6]float64 // below-zero fit over (R/R0)*100, ascending powers
}

// NewConverter builds a Converter. poly must hold six coefficients.
func NewConverter(r0, rref, a, b float64, poly []float64) Converter {
	c := Converter{R0: r0, RRef: rref, A: a, B: b}
	copy(c.Poly[:], poly)
	return c
}

// Resistance returns the resistance for a conversion ratio (code/32768).
func (c Converter) Resistance(ratio float64) float64 {
	return ratio * c.RRef
}

// Temperature returns degrees Celsius for resistance r. The quadratic
// solution is computed first; a negative result is recomputed with the
// polynomial.
func (c Converter) Temperature(r float64) float64 {
	if t := c.quadratic(r); t >= 0 {
		return t
	}
	return c.polynomial(r)
}

// quadratic inverts R = R0(1 + A·T + B·T²).
func (c Converter) quadratic(r float64) float64 {
	d := c.A*c.A - 4*c.B + 4*c.B*r/c.R0
	return (math.Sqrt(d) - c.A) / (2 * c.B)
}

// polynomial evaluates the below-zero fit with Horner's rule.
func (c Converter) polynomial(r float64) float64 {
	x := r / c.R0 * 100
	t := 0.0
	for i := len(c.Poly) - 1; i >= 0; i-- {
		t = t*x + c.Poly[i]
	}
	return t
}

// ResistanceAt is the forward relation. Above 0 °C it is the quadratic
// form; below it adds the C term.
func (c Converter) ResistanceAt(t float64) float64 {
	r := 1 + c.A*t + c.B*t*t
	if t < 0 {
		r += cvdC * (t - 100) * t * t * t
	}
	return c.R0 * r
}
