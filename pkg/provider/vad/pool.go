package vad

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultPoolSize is how many VAD models a payphone instance keeps warm.
// Calls beyond this number wait in Acquire until a model frees up.
const DefaultPoolSize = 3

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("vad: pool is closed")

// Pool shares a fixed set of [Model] instances across concurrent calls.
// Acquire blocks until a model is free; Release resets the model and
// returns it. Safe for concurrent use.
type Pool struct {
	models chan *Model

	mu     sync.Mutex
	all    []*Model
	closed bool
}

// NewPool builds size models, each wrapping a detector produced by
// newDetector. The factory is called once per slot so detectors never share
// recurrent state.
func NewPool(size int, cfg Config, newDetector func() (Detector, error)) (*Pool, error) {
	if size < 1 {
		size = DefaultPoolSize
	}
	p := &Pool{models: make(chan *Model, size)}
	for i := 0; i < size; i++ {
		det, err := newDetector()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("vad: build detector %d: %w", i, err)
		}
		m, err := NewModel(det, cfg)
		if err != nil {
			_ = det.Close()
			_ = p.Close()
			return nil, err
		}
		p.all = append(p.all, m)
		p.models <- m
	}
	return p, nil
}

// Acquire takes a model out of the pool, blocking until one is available or
// ctx ends.
func (p *Pool) Acquire(ctx context.Context) (*Model, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}
	select {
	case m, ok := <-p.models:
		if !ok {
			return nil, ErrPoolClosed
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release resets m and returns it to the pool. Releasing into a closed pool
// is a no-op; the model is closed with the rest.
func (p *Pool) Release(m *Model) {
	if m == nil {
		return
	}
	m.Reset()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.models <- m:
	default:
		// Double release; drop it rather than grow the pool.
	}
}

// Available returns how many models are currently idle.
func (p *Pool) Available() int {
	return len(p.models)
}

// Close closes every model ever built for the pool. Models still acquired
// are closed too, so Close is for process shutdown only.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.models)
	all := p.all
	p.mu.Unlock()

	var errs []error
	for _, m := range all {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
