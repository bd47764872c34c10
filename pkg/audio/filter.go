package audio

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Biquad is one second-order filter section in direct form II transposed.
// Coefficients are normalized so A0 == 1.
type Biquad struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// BandPass is a digital Butterworth band-pass filter factored into
// second-order sections, applied zero-phase (forward and backward) so the
// filtered signal carries no group delay. One instance is immutable and safe
// for concurrent use.
type BandPass struct {
	sections []Biquad
}

// NewBandPass designs a Butterworth band-pass of the given order (number of
// analog prototype poles; the digital filter has 2*order poles) between
// lowHz and highHz at sampleRate. Band edges are clamped to
// [0.001, 0.99] of the Nyquist frequency, matching common DSP toolkits, so a
// 3400 Hz edge stays valid at an 8 kHz rate.
func NewBandPass(order int, lowHz, highHz float64, sampleRate int) (*BandPass, error) {
	if order < 1 {
		return nil, fmt.Errorf("audio: band-pass order must be >= 1, got %d", order)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	nyq := float64(sampleRate) / 2
	lo := clamp(lowHz/nyq, 0.001, 0.99)
	hi := clamp(highHz/nyq, 0.001, 0.99)
	if lo >= hi {
		return nil, fmt.Errorf("audio: band edges out of order: %g Hz .. %g Hz at %d Hz", lowHz, highHz, sampleRate)
	}
	return &BandPass{sections: designButterBandPass(order, lo, hi)}, nil
}

// Apply filters samples zero-phase: forward pass, reverse, backward pass,
// reverse again. The input is padded with an odd reflection of roughly three
// filter lengths at each end so the edges settle, and each pass starts from
// the filter's step-response steady state scaled to the first padded sample.
// The input slice is not modified.
func (f *BandPass) Apply(samples []float32) []float32 {
	if len(samples) == 0 {
		return nil
	}
	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s)
	}

	pad := 3 * (2*len(f.sections) + 1)
	if pad >= len(x) {
		pad = len(x) - 1
	}
	ext := oddExtend(x, pad)

	f.sosFilt(ext)
	reverse(ext)
	f.sosFilt(ext)
	reverse(ext)

	out := make([]float32, len(samples))
	for i := range out {
		out[i] = float32(ext[pad+i])
	}
	return out
}

// sosFilt runs the section cascade in place over x, initializing each
// section's state to its step-response steady state scaled by x[0].
func (f *BandPass) sosFilt(x []float64) {
	x0 := x[0]
	for _, s := range f.sections {
		z1, z2 := stepStateZ(s)
		z1 *= x0
		z2 *= x0
		for i, v := range x {
			y := s.B0*v + z1
			z1 = s.B1*v - s.A1*y + z2
			z2 = s.B2*v - s.A2*y
			x[i] = y
		}
		// The next section sees this section's DC response to x0.
		x0 *= (s.B0 + s.B1 + s.B2) / (1 + s.A1 + s.A2)
	}
}

// stepStateZ returns the direct form II transposed state that makes the
// section already settled for a constant unit input.
func stepStateZ(s Biquad) (z1, z2 float64) {
	den := 1 + s.A1 + s.A2
	if den == 0 {
		return 0, 0
	}
	y := (s.B0 + s.B1 + s.B2) / den
	z1 = y - s.B0
	z2 = s.B2 - s.A2*y
	return z1, z2
}

// designButterBandPass builds the second-order sections for an order-n
// Butterworth band-pass with normalized edges lo..hi (1 = Nyquist).
//
// The analog low-pass prototype poles are band-transformed around the warped
// center frequency, mapped to the z-plane with the bilinear transform, and
// paired into biquads. Each digital section receives one zero at z=+1 and
// one at z=-1 (the band-pass transform places all zeros at DC and Nyquist),
// with the overall gain folded into the first section.
func designButterBandPass(n int, lo, hi float64) []Biquad {
	const fs = 2.0
	warpLo := 2 * fs * math.Tan(math.Pi*lo/fs)
	warpHi := 2 * fs * math.Tan(math.Pi*hi/fs)
	bw := warpHi - warpLo
	w0 := math.Sqrt(warpLo * warpHi)

	// Analog Butterworth low-pass prototype poles on the unit circle.
	proto := make([]complex128, 0, n)
	for k := 1; k <= n; k++ {
		theta := math.Pi * float64(2*k+n-1) / float64(2*n)
		proto = append(proto, cmplx.Exp(complex(0, theta)))
	}

	// Low-pass -> band-pass: each prototype pole spawns a pair.
	poles := make([]complex128, 0, 2*n)
	for _, p := range proto {
		half := p * complex(bw/2, 0)
		d := cmplx.Sqrt(half*half - complex(w0*w0, 0))
		poles = append(poles, half+d, half-d)
	}
	gain := math.Pow(bw, float64(n))

	// Bilinear transform. The n analog zeros at s=0 map to z=+1; the n
	// zeros at infinity map to z=-1.
	const fs2 = 2 * fs
	zPoles := make([]complex128, len(poles))
	gc := complex(gain, 0)
	for i, p := range poles {
		zPoles[i] = (complex(fs2, 0) + p) / (complex(fs2, 0) - p)
		gc /= complex(fs2, 0) - p
	}
	// Numerator contribution of the s-plane zeros at 0: prod(fs2 - 0) = fs2^n.
	gc *= complex(math.Pow(fs2, float64(n)), 0)
	gain = real(gc)

	// Pair conjugate poles into sections; zeros at +1 and -1 give the
	// numerator (1, 0, -1) per section.
	sections := make([]Biquad, 0, n)
	used := make([]bool, len(zPoles))
	for i, p := range zPoles {
		if used[i] {
			continue
		}
		used[i] = true
		mate := conjMate(zPoles, used, p)
		s := Biquad{
			B0: 1, B1: 0, B2: -1,
			A1: -2 * real(p),
			A2: real(p * cmplx.Conj(mate)),
		}
		if mate != cmplx.Conj(p) {
			// Real pole pair.
			s.A1 = -real(p) - real(mate)
			s.A2 = real(p) * real(mate)
		}
		sections = append(sections, s)
	}
	sections[0].B0 *= gain
	sections[0].B1 *= gain
	sections[0].B2 *= gain
	return sections
}

// conjMate marks and returns the closest conjugate partner of p among the
// unused poles. Butterworth band-pass poles always come in conjugate pairs
// (or real pairs when the prototype order is odd).
func conjMate(poles []complex128, used []bool, p complex128) complex128 {
	want := cmplx.Conj(p)
	best := -1
	bestDist := math.Inf(1)
	for i, q := range poles {
		if used[i] {
			continue
		}
		d := cmplx.Abs(q - want)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	used[best] = true
	return poles[best]
}

func oddExtend(x []float64, pad int) []float64 {
	out := make([]float64, 0, len(x)+2*pad)
	for i := pad; i >= 1; i-- {
		out = append(out, 2*x[0]-x[i])
	}
	out = append(out, x...)
	last := len(x) - 1
	for i := 1; i <= pad; i++ {
		out = append(out, 2*x[last]-x[last-i])
	}
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
