// Package mock provides a scripted test double for the vad.Detector
// interface.
//
// Probabilities are consumed one per Infer call; once the script runs out
// the detector keeps returning the final value (or 0 for an empty script).
// Every window fed in is recorded for inspection.
package mock

import "sync"

// Detector is a scripted vad.Detector.
type Detector struct {
	mu sync.Mutex

	// Probabilities is the script of Infer results.
	Probabilities []float64

	// InferErr, when non-nil, is returned by every Infer call.
	InferErr error

	// Windows records the length of every window passed to Infer.
	Windows []int

	// ResetCalls counts Reset invocations.
	ResetCalls int

	// Closed reports whether Close was called.
	Closed bool

	next int
}

// Infer consumes the next scripted probability.
func (d *Detector) Infer(window []float32) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Windows = append(d.Windows, len(window))
	if d.InferErr != nil {
		return 0, d.InferErr
	}
	if len(d.Probabilities) == 0 {
		return 0, nil
	}
	i := d.next
	if i >= len(d.Probabilities) {
		i = len(d.Probabilities) - 1
	} else {
		d.next++
	}
	return d.Probabilities[i], nil
}

// Reset implements vad.Detector. It does not rewind the script.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCalls++
}

// Close implements vad.Detector.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

// Rewind restarts the probability script.
func (d *Detector) Rewind() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next = 0
}
