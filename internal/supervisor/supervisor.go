// Package supervisor owns a run's lifecycle: running its cascade to
// completion in a goroutine (callers create the run's log directory first),
// publishing
// progress events, and honoring cooperative cancellation with a bounded
// grace period.
//
// Grounded on the original source's pipeline.py RunWorker (the run/cancel/
// resume shape) and the context.Context-based cancellation idiom used
// throughout services/trace.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kajovo/cascade/internal/model"
	"github.com/kajovo/cascade/internal/runlog"
)

// GracePeriod is how long a cancelled run gets to unwind before its context
// is hard-cancelled underneath it.
const GracePeriod = 10 * time.Second

// Handle is a running (or completed) run's supervisor-side state.
type Handle struct {
	RunID     string
	cancelled atomic.Bool
	cancelFn  context.CancelFunc
	done      chan struct{}

	mu    sync.Mutex
	state model.RunState
	err   error
}

// Cancel requests cooperative cancellation: Cancelled() starts returning
// true immediately, and after GracePeriod the run's context is hard
// cancelled if it hasn't exited on its own.
func (h *Handle) Cancel() {
	if !h.cancelled.CompareAndSwap(false, true) {
		return
	}
	go func() {
		select {
		case <-h.done:
		case <-time.After(GracePeriod):
			h.cancelFn()
		}
	}()
}

// Cancelled reports whether Cancel has been called — cascade steps should
// poll this between chunks/files and exit gracefully rather than relying
// solely on ctx.Done().
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// Done is closed once the run's goroutine returns.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns a snapshot of the run's current state.
func (h *Handle) State() model.RunState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the run's terminal error, if any, once Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) setState(s model.RunState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// EventBus fans run events out to any number of subscribers (the Run API's
// WebSocket handlers).
type EventBus struct {
	mu   sync.Mutex
	subs map[chan model.RunEvent]struct{}
	seq  int64
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan model.RunEvent]struct{})}
}

// Subscribe returns a channel receiving every future Publish call; Unsubscribe
// must be called when the caller is done to avoid leaking the channel.
func (b *EventBus) Subscribe() chan model.RunEvent {
	ch := make(chan model.RunEvent, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *EventBus) Unsubscribe(ch chan model.RunEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// Publish stamps ev with the next sequence number and fans it out,
// dropping it for any subscriber whose buffer is full rather than blocking
// the run.
func (b *EventBus) Publish(ev model.RunEvent) model.RunEvent {
	b.mu.Lock()
	b.seq++
	ev.Seq = b.seq
	ev.TS = time.Now().UTC()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	b.mu.Unlock()
	return ev
}

// Supervisor owns every in-flight run.
type Supervisor struct {
	mu     sync.Mutex
	runs   map[string]*Handle
	events *EventBus
}

func New() *Supervisor {
	return &Supervisor{runs: make(map[string]*Handle), events: NewEventBus()}
}

// Events returns the shared event bus every run publishes onto.
func (s *Supervisor) Events() *EventBus { return s.events }

// Start launches work in a new goroutine under a Handle registered as
// runID, publishing "run_started"/"run_completed"/"run_failed"/
// "run_cancelled" events around it. work should poll handle.Cancelled()
// between steps and return promptly when it flips true.
func (s *Supervisor) Start(ctx context.Context, runID string, work func(ctx context.Context, handle *Handle) (model.RunState, error)) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{RunID: runID, cancelFn: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.runs[runID] = h
	s.mu.Unlock()

	s.events.Publish(model.RunEvent{RunID: runID, Kind: "run_started", Message: "run started"})

	go func() {
		defer close(h.done)
		state, err := work(runCtx, h)
		h.setState(state)
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()

		switch {
		case h.Cancelled():
			s.events.Publish(model.RunEvent{RunID: runID, Kind: "run_cancelled", Message: "run cancelled"})
		case err != nil:
			s.events.Publish(model.RunEvent{RunID: runID, Kind: "run_failed", Message: err.Error()})
		default:
			s.events.Publish(model.RunEvent{RunID: runID, Kind: "run_completed", Message: "run completed"})
		}
	}()

	return h
}

// Get returns the Handle for runID, if it's known to this Supervisor
// instance (i.e. started since process boot — resumed runs get a fresh
// Handle via Start, not retrieved from here).
func (s *Supervisor) Get(runID string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.runs[runID]
	return h, ok
}

// Cancel requests cancellation of runID if it's currently tracked.
func (s *Supervisor) Cancel(runID string) error {
	h, ok := s.Get(runID)
	if !ok {
		return fmt.Errorf("supervisor: unknown run %s", runID)
	}
	h.Cancel()
	return nil
}

// PersistState snapshots state to disk via runlog.SaveJSON so a later
// Resume can find the run after a crash; the snapshot covers the whole run,
// not individual steps.
func PersistState(paths runlog.Paths, state model.RunState) error {
	return runlog.SaveJSON(paths.Root, "run_state", state)
}
