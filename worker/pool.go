package worker

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"textgrab/engine"
)

// ResultCallback is invoked on recognition completion (from a worker
// goroutine). Callers should pass a closure that re-enters their own
// synchronization safely.
type ResultCallback func(res engine.Result, err error)

// RecognizeFunc runs one recognition.
type RecognizeFunc func(ctx context.Context, image []byte) (engine.Result, error)

// Pool is a fixed-size recognition worker pool with a 1-slot input queue
// (strict back-pressure).
type Pool struct {
	recognize RecognizeFunc
	jobs      chan job
	wg        sync.WaitGroup
}

type job struct {
	ctx   context.Context
	image []byte
	cb    ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int, recognize RecognizeFunc) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{recognize: recognize, jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Debug().Int("bytes", len(j.image)).Msg("worker: starting recognition")
				res, err := p.runWithContext(j.ctx, j.image)
				log.Debug().Int("chars", len(res.Text)).Err(err).Msg("worker: recognition completed")
				j.cb(res, err)
			}
		}()
	}
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, image []byte, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, image: image, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// runWithContext wraps the recognize call with a deadline-aware path.
func (p *Pool) runWithContext(ctx context.Context, image []byte) (engine.Result, error) {
	// Fast path: no deadline, call directly.
	if _, ok := ctx.Deadline(); !ok {
		return p.recognize(ctx, image)
	}
	// Deadline-aware shim: run in a sub-goroutine, respect ctx.Done(). Covers
	// backends that cannot interrupt themselves.
	type outcome struct {
		res engine.Result
		err error
	}
	resCh := make(chan outcome, 1)
	go func() {
		res, err := p.recognize(ctx, image)
		resCh <- outcome{res, err}
	}()
	select {
	case r := <-resCh:
		return r.res, r.err
	case <-ctx.Done():
		// The underlying call may continue in the background; its result is
		// discarded.
		return engine.Result{}, ctx.Err()
	}
}
