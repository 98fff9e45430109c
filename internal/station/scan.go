// Package station implements one scanning station: the scan input pipeline,
// the control loop that sequences capture→validate→display, the station-local
// snapshot cache and outbox, and the sync reconciler that drains the outbox
// once connectivity returns.
package station

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

// Pipeline turns raw decode candidates (camera frames, typed entries) into a
// stream of normalized ticket ids. It holds at most one candidate: while the
// control loop is busy validating or displaying a result, new candidates are
// dropped, not queued. A held-up QR code streaming the same payload thirty
// times a second must produce one validation attempt, not thirty.
type Pipeline struct {
	mu      sync.Mutex
	paused  bool
	dropped atomic.Uint64
	ch      chan string
}

func NewPipeline() *Pipeline {
	return &Pipeline{ch: make(chan string, 1)}
}

// Publish offers one raw candidate. The id is trimmed; empty strings are
// rejected. Returns false when the candidate was dropped (paused pipeline,
// slot already full, or nothing left after normalization). The paused check
// and the deposit happen under one lock, so a concurrent Pause can never
// drain the slot and then have a stale candidate slip in behind it.
func (p *Pipeline) Publish(raw string) bool {
	id := strings.TrimSpace(raw)
	if id == "" {
		p.dropped.Add(1)
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.dropped.Add(1)
		return false
	}

	select {
	case p.ch <- id:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Next blocks until a candidate is available or the context is cancelled.
func (p *Pipeline) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case id := <-p.ch:
		return id, nil
	}
}

// Pause drops incoming candidates and discards any candidate already waiting,
// so a stale scan can never be validated after the machine comes back. Once
// Pause returns the slot is empty and stays empty until Resume.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true

	select {
	case <-p.ch:
		p.dropped.Add(1)
	default:
	}
}

func (p *Pipeline) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// Dropped returns how many candidates were discarded since start.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped.Load()
}

// Source feeds raw decode candidates into a pipeline until the context is
// cancelled. The camera decoder and manual entry both implement it.
type Source interface {
	Run(ctx context.Context, p *Pipeline) error
}

// ReaderSource publishes each line read from R verbatim. It stands in for a
// camera decode feed; operator input goes through ConsoleSource, which also
// understands station commands.
type ReaderSource struct {
	R io.Reader
}

func (s *ReaderSource) Run(ctx context.Context, p *Pipeline) error {
	scanner := bufio.NewScanner(s.R)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		p.Publish(scanner.Text())
	}
	return scanner.Err()
}
