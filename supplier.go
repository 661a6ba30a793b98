package typelens

// supplier.go — the pending-environment supplier (bootstrap).
//
// The pipeline produces its Environment exactly once, mid-run, and the
// value dies when the run returns. The Supplier inverts that control
// flow: it launches the pipeline on a dedicated background goroutine,
// installs a Handshake as the sole delivery point, and exposes the
// captured Environment through Get for arbitrary goroutines at
// arbitrary later times.
//
// Lifecycle: at most one live background goroutine per Supplier.
// Concurrent Gets share the in-flight attempt. Close releases the
// handshake, which unparks the pipeline and lets it tear down; the
// attempt then resolves to an internal closed marker, and the next Get
// swaps in a fresh attempt — guarded by the observed attempt so two
// racing Gets rebuild once, not twice. Genuine pipeline failures
// propagate to every waiter unchanged; the closed marker never escapes
// Get.

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
)

// ---------------------------------------------------------------------------
// Pending-environment slot
// ---------------------------------------------------------------------------

// pendingEnv is a one-shot future: PENDING until exactly one of
// complete or fail lands, then terminal.
type pendingEnv struct {
	mu   sync.Mutex
	done chan struct{}
	env  *Environment
	err  error
}

func newPendingEnv() *pendingEnv {
	return &pendingEnv{done: make(chan struct{})}
}

// complete moves PENDING→COMPLETE. Reports whether this call won.
func (p *pendingEnv) complete(env *Environment) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolvedLocked() {
		return false
	}
	p.env = env
	close(p.done)
	return true
}

// fail moves PENDING→FAILED. Reports whether this call won.
func (p *pendingEnv) fail(err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolvedLocked() {
		return false
	}
	p.err = err
	close(p.done)
	return true
}

func (p *pendingEnv) resolvedLocked() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *pendingEnv) resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolvedLocked()
}

// wait blocks until the slot resolves or ctx is done.
func (p *pendingEnv) wait(ctx context.Context) (*Environment, error) {
	select {
	case <-p.done:
		return p.env, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ---------------------------------------------------------------------------
// Attempt
// ---------------------------------------------------------------------------

// attempt is one pipeline launch: its slot, its handshake, and the
// background goroutine driving it.
type attempt struct {
	slot *pendingEnv
	hs   *Handshake
}

// wait resolves the attempt. A delivered environment whose handshake
// has since been released reads as the closed marker: the value is no
// longer valid.
func (a *attempt) wait(ctx context.Context) (*Environment, error) {
	env, err := a.slot.wait(ctx)
	if err != nil {
		return nil, err
	}
	if a.hs.Closed() {
		return nil, errClosed
	}
	return env, nil
}

// ---------------------------------------------------------------------------
// Supplier
// ---------------------------------------------------------------------------

// Supplier produces and keeps valid an Environment for later,
// arbitrary-goroutine consumption.
type Supplier struct {
	spec     LoadSpec
	settings *Settings
	logger   *log.Logger
	run      PipelineFunc

	mu  sync.Mutex
	cur *attempt
}

// NewSupplier returns a Supplier backed by the go/packages pipeline.
// A nil logger routes diagnostics to stderr.
func NewSupplier(spec LoadSpec, settings *Settings, logger *log.Logger) *Supplier {
	return NewSupplierFunc(spec, settings, logger, runPipeline)
}

// NewSupplierFunc returns a Supplier driving a custom pipeline backend.
func NewSupplierFunc(spec LoadSpec, settings *Settings, logger *log.Logger, run PipelineFunc) *Supplier {
	if logger == nil {
		logger = log.New(os.Stderr, "typelens: ", log.LstdFlags)
	}
	return &Supplier{spec: spec, settings: settings, logger: logger, run: run}
}

// current returns the live attempt, launching one if needed. Concurrent
// callers observe the same attempt.
func (s *Supplier) current() *attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		s.cur = s.launch()
	}
	return s.cur
}

// launch starts one pipeline run on a fresh background goroutine.
func (s *Supplier) launch() *attempt {
	slot := newPendingEnv()
	at := &attempt{slot: slot}
	at.hs = NewHandshake(func(env *Environment) { slot.complete(env) })
	go func() {
		err := s.run(s.spec, s.settings, s.logger, at.hs)
		switch {
		case err != nil:
			slot.fail(err)
		case !slot.resolved():
			// The pipeline returned without delivering. After a close
			// that is the expected exit; otherwise it is a backend bug.
			if at.hs.Closed() {
				slot.fail(errClosed)
			} else {
				slot.fail(&PipelineError{Diags: []string{"pipeline exited without delivering an environment"}})
			}
		}
	}()
	return at
}

// Get returns the supplier's Environment, launching the pipeline on
// first demand and blocking until it resolves.
func (s *Supplier) Get() (*Environment, error) {
	return s.GetContext(context.Background())
}

// GetContext is Get with caller-controlled cancellation of the wait.
// Cancelling the context abandons this wait only; the attempt keeps
// running for other callers.
//
// An attempt that resolved to the closed marker is discarded and
// rebuilt transparently, exactly once; the result of the rebuilt
// attempt is returned. Every other failure propagates unchanged.
func (s *Supplier) GetContext(ctx context.Context) (*Environment, error) {
	at := s.current()
	env, err := at.wait(ctx)
	if err == nil {
		return env, nil
	}
	if !errors.Is(err, errClosed) {
		return nil, err
	}

	// Swap in a fresh attempt, guarded by the one we observed failing:
	// racing Gets rebuild once between them.
	s.mu.Lock()
	if s.cur == at {
		s.cur = s.launch()
	}
	next := s.cur
	s.mu.Unlock()

	env, err = next.wait(ctx)
	if err == nil {
		return env, nil
	}
	if errors.Is(err, errClosed) {
		// Closed again while rebuilding. Don't loop; surface it as a
		// configuration problem rather than the internal marker.
		return nil, &ConfigError{Reason: "environment supplier closed while rebuilding"}
	}
	return nil, err
}

// Close releases the current attempt's handshake, unparking the
// background goroutine so the pipeline can tear down. The next Get
// rebuilds. Idempotent; a Close before the pipeline reaches its
// delivery point makes the eventual delivery return immediately, so no
// goroutine is left parked.
func (s *Supplier) Close() {
	s.mu.Lock()
	at := s.cur
	s.mu.Unlock()
	if at != nil {
		at.hs.Close()
	}
}
