package rtd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var pt100 = NewConverter(100, 430, 3.9083e-3, -5.775e-7,
	[]float64{-242.02, 2.2228, 2.5859e-3, -4.8260e-6, -2.8183e-8, 1.5243e-10})

func TestRoundTripAboveZero(t *testing.T) {
	for deg := 0; deg <= 850; deg++ {
		want := float64(deg)
		got := pt100.Temperature(pt100.ResistanceAt(want))
		if math.Abs(got-want) > 1e-6 {
			t.Fatalf("T=%v: decoded %v", want, got)
		}
	}
}

func TestRoundTripPT1000(t *testing.T) {
	pt1000 := pt100
	pt1000.R0 = 1000
	pt1000.RRef = 4300
	for _, want := range []float64{0, 0.5, 107, 250, 600} {
		assert.InDelta(t, want, pt1000.Temperature(pt1000.ResistanceAt(want)), 1e-6)
	}
}

func TestBelowZeroUsesPolynomial(t *testing.T) {
	r := pt100.ResistanceAt(-50)

	q := pt100.quadratic(r)
	assert.Less(t, q, 0.0, "quadratic solution should be negative below zero")

	got := pt100.Temperature(r)
	assert.Equal(t, pt100.polynomial(r), got)
	assert.NotEqual(t, q, got)
	assert.InDelta(t, -50, got, 0.01)
}

func TestBelowZeroRange(t *testing.T) {
	for _, want := range []float64{-200, -100, -40, -10, -1} {
		assert.InDelta(t, want, pt100.Temperature(pt100.ResistanceAt(want)), 0.01, "T=%v", want)
	}
}

func TestResistanceFromRatio(t *testing.T) {
	assert.InDelta(t, 215.0, pt100.Resistance(0.5), 1e-9)
	assert.InDelta(t, 100.0, pt100.Resistance(100.0/430.0), 1e-9)
}

func TestZeroDegrees(t *testing.T) {
	assert.InDelta(t, 0.0, pt100.Temperature(100), 1e-9)
}
