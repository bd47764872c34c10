package audio_test

import (
	"math"
	"testing"

	"github.com/MrWong99/payphone/pkg/audio"
)

func sine(freq float64, rate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

// rms over the central half of the signal, skipping edge transients.
func rms(x []float32) float64 {
	lo, hi := len(x)/4, 3*len(x)/4
	var sum float64
	for _, v := range x[lo:hi] {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(hi-lo))
}

func TestResampleDoublesLength(t *testing.T) {
	t.Parallel()

	in := sine(440, 8000, 800)
	out, err := audio.Resample(in, 8000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1600 {
		t.Fatalf("len = %d, want 1600", len(out))
	}
}

func TestResamplePreservesAmplitude(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct{ from, to int }{
		{8000, 16000},
		{16000, 8000},
		{24000, 8000},
	} {
		in := sine(440, tc.from, tc.from) // one second
		out, err := audio.Resample(in, tc.from, tc.to)
		if err != nil {
			t.Fatal(err)
		}
		inRMS, outRMS := rms(in), rms(out)
		if math.Abs(outRMS-inRMS) > 0.05*inRMS {
			t.Errorf("%d -> %d: rms %v -> %v", tc.from, tc.to, inRMS, outRMS)
		}
	}
}

func TestResamplePreservesFrequency(t *testing.T) {
	t.Parallel()

	in := sine(100, 8000, 8000)
	out, err := audio.Resample(in, 8000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	// A 100 Hz tone over one second crosses zero ~200 times regardless of
	// the sample rate.
	inZC, outZC := zeroCrossings(in), zeroCrossings(out)
	if outZC < inZC-4 || outZC > inZC+4 {
		t.Errorf("zero crossings %d -> %d", inZC, outZC)
	}
}

func zeroCrossings(x []float32) int {
	n := 0
	for i := 1; i < len(x); i++ {
		if (x[i-1] < 0) != (x[i] < 0) {
			n++
		}
	}
	return n
}

func TestResampleSameRateIsIdentity(t *testing.T) {
	t.Parallel()

	in := sine(440, 8000, 100)
	out, err := audio.Resample(in, 8000, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if &out[0] != &in[0] {
		t.Error("same-rate resample should return the input unchanged")
	}
}

func TestResampleRejectsBadRates(t *testing.T) {
	t.Parallel()

	if _, err := audio.Resample(nil, 0, 8000); err == nil {
		t.Error("expected error for zero source rate")
	}
	if _, err := audio.Resample(nil, 8000, -1); err == nil {
		t.Error("expected error for negative target rate")
	}
}

func TestBandPassPassesVoiceBand(t *testing.T) {
	t.Parallel()

	bp, err := audio.NewBandPass(4, 300, 3400, 8000)
	if err != nil {
		t.Fatal(err)
	}
	in := sine(1000, 8000, 8000)
	out := bp.Apply(in)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	if ratio := rms(out) / rms(in); ratio < 0.9 || ratio > 1.1 {
		t.Errorf("1 kHz passband gain = %v, want ~1", ratio)
	}
}

func TestBandPassRejectsOutOfBand(t *testing.T) {
	t.Parallel()

	bp, err := audio.NewBandPass(4, 300, 3400, 8000)
	if err != nil {
		t.Fatal(err)
	}
	low := bp.Apply(sine(50, 8000, 8000))
	if ratio := rms(low) / 0.3535; ratio > 0.05 {
		t.Errorf("50 Hz attenuation ratio = %v, want < 0.05", ratio)
	}
	// The upper edge sits close to Nyquist, so the skirt is shallow there;
	// just require meaningful attenuation relative to the passband.
	high := bp.Apply(sine(3900, 8000, 8000))
	if ratio := rms(high) / 0.3535; ratio > 0.7 {
		t.Errorf("3.9 kHz attenuation ratio = %v, want < 0.7", ratio)
	}
}

func TestBandPassClampsEdges(t *testing.T) {
	t.Parallel()

	// 3400 Hz is within an 8 kHz Nyquist but a 4000 Hz edge must clamp
	// rather than fail.
	if _, err := audio.NewBandPass(4, 300, 4000, 8000); err != nil {
		t.Fatalf("edge at Nyquist: %v", err)
	}
	if _, err := audio.NewBandPass(4, 3400, 300, 8000); err == nil {
		t.Error("expected error for inverted band edges")
	}
}

func TestBandPassEmptyInput(t *testing.T) {
	t.Parallel()

	bp, err := audio.NewBandPass(4, 300, 3400, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if got := bp.Apply(nil); got != nil {
		t.Errorf("Apply(nil) = %v, want nil", got)
	}
}
