package audio

import (
	"fmt"
	"math"
)

// Resample converts samples from fromRate to toRate using polyphase rational
// resampling: the signal is conceptually upsampled by up = toRate/g, filtered
// with a windowed-sinc anti-aliasing low-pass, and decimated by
// down = fromRate/g, where g = gcd(fromRate, toRate). Only the retained
// output phases are ever computed.
//
// Equal rates return the input unchanged. Rates must be positive.
func Resample(samples []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("audio: invalid resample rates %d -> %d", fromRate, toRate)
	}
	if fromRate == toRate || len(samples) == 0 {
		return samples, nil
	}

	g := gcd(fromRate, toRate)
	up := toRate / g
	down := fromRate / g

	h := lowpassKernel(up, down)
	center := len(h) / 2

	outLen := (len(samples)*up + down - 1) / down
	out := make([]float32, outLen)

	for n := 0; n < outLen; n++ {
		// Position of output sample n on the upsampled grid.
		t := n*down + center
		// Only filter taps landing on real input samples contribute.
		k0 := t % up
		var acc float64
		for k := k0; k < len(h); k += up {
			xi := (t - k) / up
			if xi < 0 {
				break
			}
			if xi >= len(samples) {
				continue
			}
			acc += h[k] * float64(samples[xi])
		}
		out[n] = float32(acc)
	}
	return out, nil
}

// ResampleInt16 resamples 16-bit PCM, clipping the result back to the int16
// range so that filter overshoot cannot wrap.
func ResampleInt16(samples []int16, fromRate, toRate int) ([]int16, error) {
	if fromRate == toRate {
		return samples, nil
	}
	f, err := Resample(Normalize(samples), fromRate, toRate)
	if err != nil {
		return nil, err
	}
	return Denormalize(f), nil
}

// lowpassKernel designs the anti-aliasing FIR for a rational up/down
// conversion: a Kaiser-windowed sinc with cutoff at the narrower of the two
// Nyquist frequencies and DC gain equal to up (to preserve amplitude through
// zero-stuffing).
func lowpassKernel(up, down int) []float64 {
	maxRate := up
	if down > maxRate {
		maxRate = down
	}
	// Half-length of 10 periods of the widest rate gives ~60 dB stopband
	// with the beta below.
	half := 10 * maxRate
	n := 2*half + 1
	fc := 1.0 / float64(2*maxRate)
	const beta = 5.0

	h := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		x := float64(i - half)
		h[i] = sinc(2*fc*x) * kaiser(x/float64(half), beta)
		// Only the taps of the zeroth phase see an input sample at DC.
		if (i-half)%up == 0 {
			sum += h[i]
		}
	}
	// Normalize so each polyphase branch sums to 1 at DC, i.e. overall
	// gain up before decimation.
	for i := range h {
		h[i] /= sum
	}
	return h
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// kaiser evaluates the Kaiser window at position x in [-1, 1].
func kaiser(x, beta float64) float64 {
	if x < -1 || x > 1 {
		return 0
	}
	return besselI0(beta*math.Sqrt(1-x*x)) / besselI0(beta)
}

// besselI0 is the zeroth-order modified Bessel function of the first kind,
// evaluated by its power series. Converges quickly for the small arguments
// used by the Kaiser window.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	half := x / 2
	for k := 1; k < 32; k++ {
		term *= (half / float64(k)) * (half / float64(k))
		sum += term
		if term < 1e-12*sum {
			break
		}
	}
	return sum
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
