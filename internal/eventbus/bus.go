// Package eventbus keeps one append-only progress log per run and fans
// events out to push subscribers while serving non-blocking polls from
// the same log. One writer (the run's worker goroutine), many readers.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

// Bus owns the per-run event logs.
type Bus struct {
	mu        sync.RWMutex
	runs      map[string]*runLog
	retention time.Duration
}

type runLog struct {
	mu       sync.Mutex
	cond     *sync.Cond
	events   []model.ProgressEvent
	terminal bool
}

// New creates a Bus. Terminal run logs are retained for the given window
// before being dropped, so late pollers still see the final status.
func New(retention time.Duration) *Bus {
	return &Bus{
		runs:      make(map[string]*runLog),
		retention: retention,
	}
}

// Register creates the log for a run. It must be called before the
// worker starts so events emitted before any consumer attaches are
// buffered rather than lost.
func (b *Bus) Register(runID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.runs[runID]; ok {
		return apperr.Newf(apperr.KindState, "eventbus: run %s already registered", runID)
	}
	rl := &runLog{}
	rl.cond = sync.NewCond(&rl.mu)
	b.runs[runID] = rl
	return nil
}

// Publish appends an event to the run's log and wakes subscribers.
// Publishing to a terminal run is a no-op; publishing to an unknown run
// is a NotFound error.
func (b *Bus) Publish(runID string, eventType model.EventType, payload model.EventPayload) error {
	b.mu.RLock()
	rl, ok := b.runs[runID]
	b.mu.RUnlock()
	if !ok {
		return apperr.Newf(apperr.KindNotFound, "eventbus: unknown run %s", runID)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.terminal {
		return nil
	}

	rl.events = append(rl.events, model.ProgressEvent{
		RunID:      runID,
		SequenceNo: uint64(len(rl.events)) + 1,
		Type:       eventType,
		Payload:    payload,
		EmittedAt:  time.Now().UTC(),
	})
	if eventType.Terminal() {
		rl.terminal = true
		if b.retention > 0 {
			time.AfterFunc(b.retention, func() { b.Release(runID) })
		}
	}
	rl.cond.Broadcast()
	return nil
}

// Subscribe replays the run's full history and then streams new events
// in order until the run closes or ctx is cancelled. Cancelling one
// subscription never affects the run or other subscribers.
func (b *Bus) Subscribe(ctx context.Context, runID string) (<-chan model.ProgressEvent, error) {
	b.mu.RLock()
	rl, ok := b.runs[runID]
	b.mu.RUnlock()
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "eventbus: unknown run %s", runID)
	}

	ch := make(chan model.ProgressEvent, 16)

	// Wake the cond wait when the subscriber goes away.
	stop := context.AfterFunc(ctx, func() {
		rl.mu.Lock()
		rl.cond.Broadcast()
		rl.mu.Unlock()
	})

	go func() {
		defer close(ch)
		defer stop()

		cursor := 0
		for {
			rl.mu.Lock()
			for cursor >= len(rl.events) && !rl.terminal && ctx.Err() == nil {
				rl.cond.Wait()
			}
			if ctx.Err() != nil {
				rl.mu.Unlock()
				return
			}
			pending := make([]model.ProgressEvent, len(rl.events)-cursor)
			copy(pending, rl.events[cursor:])
			cursor = len(rl.events)
			done := rl.terminal && cursor >= len(rl.events)
			rl.mu.Unlock()

			for _, ev := range pending {
				select {
				case ch <- ev:
				case <-ctx.Done():
					return
				}
			}
			if done {
				return
			}
		}
	}()

	return ch, nil
}

// Poll returns events with sequence_no > since without blocking.
func (b *Bus) Poll(runID string, since uint64) ([]model.ProgressEvent, error) {
	b.mu.RLock()
	rl, ok := b.runs[runID]
	b.mu.RUnlock()
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "eventbus: unknown run %s", runID)
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if since >= uint64(len(rl.events)) {
		return nil, nil
	}
	out := make([]model.ProgressEvent, len(rl.events)-int(since))
	copy(out, rl.events[since:])
	return out, nil
}

// Terminal reports whether the run's log has been closed by a terminal
// event. Unknown runs report false.
func (b *Bus) Terminal(runID string) bool {
	b.mu.RLock()
	rl, ok := b.runs[runID]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.terminal
}

// Release drops a run's log and unblocks any remaining subscribers.
// Used by the retention sweep and by simulation cleanup.
func (b *Bus) Release(runID string) {
	b.mu.Lock()
	rl, ok := b.runs[runID]
	delete(b.runs, runID)
	b.mu.Unlock()
	if !ok {
		return
	}

	rl.mu.Lock()
	rl.terminal = true
	rl.cond.Broadcast()
	rl.mu.Unlock()
}
