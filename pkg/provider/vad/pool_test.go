package vad_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/payphone/pkg/provider/vad"
	"github.com/MrWong99/payphone/pkg/provider/vad/mock"
)

func newPool(t *testing.T, size int) (*vad.Pool, []*mock.Detector) {
	t.Helper()
	var dets []*mock.Detector
	p, err := vad.NewPool(size, vad.DefaultConfig(), func() (vad.Detector, error) {
		d := &mock.Detector{Probabilities: []float64{0.9}}
		dets = append(dets, d)
		return d, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, dets
}

func TestPoolAcquireRelease(t *testing.T) {
	t.Parallel()

	p, _ := newPool(t, 2)
	if p.Available() != 2 {
		t.Fatalf("Available = %d, want 2", p.Available())
	}

	ctx := context.Background()
	m1, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p.Available() != 0 {
		t.Errorf("Available = %d with both models out", p.Available())
	}

	p.Release(m1)
	p.Release(m2)
	if p.Available() != 2 {
		t.Errorf("Available = %d after releases, want 2", p.Available())
	}
}

func TestPoolAcquireBlocksUntilRelease(t *testing.T) {
	t.Parallel()

	p, _ := newPool(t, 1)
	ctx := context.Background()
	m, err := p.Acquire(ctx)
	if err != nil {
		t.Fatal(err)
	}

	got := make(chan *vad.Model, 1)
	go func() {
		m2, err := p.Acquire(ctx)
		if err != nil {
			return
		}
		got <- m2
	}()

	select {
	case <-got:
		t.Fatal("Acquire returned while the only model was out")
	case <-time.After(30 * time.Millisecond):
	}

	p.Release(m)
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not observe the release")
	}
}

func TestPoolAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	p, _ := newPool(t, 1)
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire = %v, want deadline exceeded", err)
	}
}

func TestPoolReleaseResetsModel(t *testing.T) {
	t.Parallel()

	p, dets := newPool(t, 1)
	m, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	feed(t, m, 8)
	if !m.Speaking() {
		t.Fatal("model should be mid-utterance")
	}

	p.Release(m)
	m2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if m2.Speaking() {
		t.Error("released model kept its utterance state")
	}
	if dets[0].ResetCalls == 0 {
		t.Error("release did not reset the detector")
	}
}

func TestPoolCloseClosesDetectors(t *testing.T) {
	t.Parallel()

	p, dets := newPool(t, 2)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	for i, d := range dets {
		if !d.Closed {
			t.Errorf("detector %d not closed", i)
		}
	}
	if _, err := p.Acquire(context.Background()); !errors.Is(err, vad.ErrPoolClosed) {
		t.Errorf("Acquire after Close = %v, want ErrPoolClosed", err)
	}
}
