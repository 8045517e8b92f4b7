// Package controller owns the acquisition→recognition→review workflow: one
// state machine per process, one engine handle, at most one recognition in
// flight. Everything the UI shows derives from its state snapshots.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"textgrab/acquire"
	"textgrab/engine"
	"textgrab/worker"
)

// Fixed user-facing messages for engine failures.
const (
	msgInitFailed        = "Could not start the text recognizer."
	msgRecognitionFailed = "Text recognition failed. Please try again."
	msgNoTextFound       = "No text was found in the image."
)

// Config carries construction parameters for a Controller.
type Config struct {
	// Language is the code handed to the engine at init.
	Language string
	// Deadline bounds a single recognition. Defaults to 20s.
	Deadline time.Duration
	// PoolSize sizes the recognition worker pool. Defaults to NumCPU.
	PoolSize int
}

// Controller is the workflow state machine. All methods are safe for
// concurrent use; engine callbacks re-enter through the same lock, so
// transitions are serialized.
type Controller struct {
	eng      engine.Engine
	pool     *worker.Pool
	language string
	deadline time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stage    Stage
	progress Progress
	text     string
	errMsg   string
	handle   *imageHandle
	engineOK bool
	closed   bool
	gen      uint64
	seq      uint64
	subs     map[chan State]struct{}
}

// New creates a Controller in the idle stage with the engine not yet started.
func New(eng engine.Engine, cfg Config) *Controller {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 20 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		eng:      eng,
		language: cfg.Language,
		deadline: cfg.Deadline,
		ctx:      ctx,
		cancel:   cancel,
		stage:    StageIdle,
		subs:     make(map[chan State]struct{}),
	}
	c.pool = worker.New(cfg.PoolSize, eng.Recognize)
	return c
}

// Start transitions to initializing and brings the engine up in the
// background; the controller returns to idle once the engine reports ready
// or failed. ctx bounds only the engine init call.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.engineOK || c.stage != StageIdle {
		c.mu.Unlock()
		return
	}
	c.setStageLocked(StageInitializing)
	c.publishLocked()
	c.mu.Unlock()

	go func() {
		err := c.eng.Init(ctx, c.language)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		if err != nil {
			log.Error().Err(err).Str("engine", c.eng.Name()).Msg("engine init failed")
			c.errMsg = msgInitFailed
			c.engineOK = false
		} else {
			log.Info().Str("engine", c.eng.Name()).Str("language", c.language).Msg("engine ready")
			c.engineOK = true
		}
		c.setStageLocked(StageIdle)
		c.publishLocked()
	}()
}

// Submit hands an acquired image to the engine. It returns false without
// changing anything while the engine is unusable, another recognition is in
// flight, or the controller is closed; on true the stage is recognizing with
// a fresh preview handle.
func (c *Controller) Submit(p acquire.Payload) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.engineOK {
		return false
	}
	if c.stage != StageIdle && c.stage != StageDone {
		return false
	}

	jobCtx, jobCancel := context.WithTimeout(c.ctx, c.deadline)
	gen := c.gen + 1
	submitted := c.pool.Submit(jobCtx, p.Data, func(res engine.Result, err error) {
		c.finish(gen, res, err, jobCancel)
	})
	if !submitted {
		jobCancel()
		return false
	}

	c.gen = gen
	c.text = ""
	c.errMsg = ""
	c.progress = Progress{}
	c.releaseHandleLocked()
	c.handle = newImageHandle(p.Data, p.MIME, p.Name)
	c.setStageLocked(StageRecognizing)
	log.Info().Str("name", p.Name).Str("mime", p.MIME).Int("bytes", len(p.Data)).Msg("recognition submitted")
	c.publishLocked()
	return true
}

// finish lands a recognition outcome. Outcomes from a superseded attempt or
// from after teardown are ignored.
func (c *Controller) finish(gen uint64, res engine.Result, err error, cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("recognition failed")
		c.errMsg = recognitionMessage(err)
		c.setStageLocked(StageIdle)
		c.publishLocked()
		return
	}
	c.text = res.Text
	c.setStageLocked(StageDone)
	log.Info().Int("chars", len(res.Text)).Msg("recognition succeeded")
	c.publishLocked()
}

func recognitionMessage(err error) string {
	if errors.Is(err, engine.ErrNoText) {
		return msgNoTextFound
	}
	return msgRecognitionFailed
}

// OnProgress relays an engine progress event. Status and fraction are stored
// together; the latest event always wins. Events outside an active init or
// recognition are dropped.
func (c *Controller) OnProgress(p engine.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.stage != StageInitializing && c.stage != StageRecognizing {
		return
	}
	c.progress = Progress{Status: p.Status, Fraction: clampFraction(p.Fraction)}
	c.publishLocked()
}

func clampFraction(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ReportError surfaces an acquisition failure that happened before any
// payload was produced. Accepted only while idle so the error invariants
// hold; the caller sees false when the report was dropped.
func (c *Controller) ReportError(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.stage != StageIdle {
		return false
	}
	c.errMsg = msg
	c.publishLocked()
	return true
}

// Reset returns to a clean idle state. Ignored while a recognition or the
// engine bring-up is still running.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.stage == StageRecognizing || c.stage == StageInitializing {
		return
	}
	c.releaseHandleLocked()
	c.text = ""
	c.errMsg = ""
	c.progress = Progress{}
	c.setStageLocked(StageIdle)
	c.publishLocked()
}

// PreviewData returns the payload behind a live preview id. ok is false for
// released or unknown ids.
func (c *Controller) PreviewData(id string) (data []byte, mime string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil || c.handle.id != id {
		return nil, "", false
	}
	return c.handle.data, c.handle.mime, true
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel of state snapshots, primed with the current
// state. Updates coalesce: a slow reader sees the latest state, not every
// intermediate one. Call cancel when done; the channel closes on cancel or
// controller Close.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan State, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- c.snapshotLocked()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Close tears the controller down: the engine is terminated unconditionally,
// the preview handle is released, and any in-flight recognition result is
// ignored. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.releaseHandleLocked()
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.mu.Unlock()

	c.cancel()
	c.pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.eng.Terminate(ctx); err != nil {
		log.Warn().Err(err).Str("engine", c.eng.Name()).Msg("engine terminate failed")
	}
	log.Info().Msg("controller closed")
}

func (c *Controller) setStageLocked(s Stage) {
	if c.stage == s {
		return
	}
	log.Debug().Stringer("from", c.stage).Stringer("to", s).Msg("stage transition")
	c.stage = s
}

func (c *Controller) releaseHandleLocked() {
	if c.handle != nil {
		log.Debug().Str("id", c.handle.id).Str("name", c.handle.name).Msg("preview handle released")
		c.handle = nil
	}
}

func (c *Controller) snapshotLocked() State {
	st := State{
		Stage:       c.stage,
		Progress:    c.progress,
		Text:        c.text,
		Error:       c.errMsg,
		EngineName:  c.eng.Name(),
		EngineReady: c.engineOK,
		Language:    c.language,
		Seq:         c.seq,
	}
	if c.handle != nil {
		st.PreviewURL = "/preview/" + c.handle.id
	}
	return st
}

// publishLocked bumps the sequence and pushes the new snapshot to every
// subscriber, replacing any unread stale snapshot.
func (c *Controller) publishLocked() {
	c.seq++
	st := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
