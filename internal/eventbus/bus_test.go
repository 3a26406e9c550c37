package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditecx/auditecx-cli/internal/apperr"
	"github.com/auditecx/auditecx-cli/internal/model"
)

func TestPublishAssignsContiguousSequence(t *testing.T) {
	bus := New(0)
	require.NoError(t, bus.Register("run-1"))

	require.NoError(t, bus.Publish("run-1", model.EventStatus, model.StatusPayload{Message: "a"}))
	require.NoError(t, bus.Publish("run-1", model.EventDocumentsReady, model.CountPayload{Count: 3}))
	require.NoError(t, bus.Publish("run-1", model.EventComplete, model.CompletePayload{}))

	events, err := bus.Poll("run-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.SequenceNo)
		assert.Equal(t, "run-1", ev.RunID)
	}
}

func TestRegisterTwiceIsStateError(t *testing.T) {
	bus := New(0)
	require.NoError(t, bus.Register("run-1"))

	err := bus.Register("run-1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindState, apperr.KindOf(err))
}

func TestPublishUnknownRunIsNotFound(t *testing.T) {
	bus := New(0)

	err := bus.Publish("missing", model.EventStatus, model.StatusPayload{Message: "a"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = bus.Poll("missing", 0)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = bus.Subscribe(context.Background(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPublishAfterTerminalIsNoOp(t *testing.T) {
	bus := New(0)
	require.NoError(t, bus.Register("run-1"))
	require.NoError(t, bus.Publish("run-1", model.EventError, model.ErrorPayload{Message: "boom"}))

	require.NoError(t, bus.Publish("run-1", model.EventStatus, model.StatusPayload{Message: "late"}))

	events, err := bus.Poll("run-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventError, events[0].Type)
	assert.True(t, bus.Terminal("run-1"))
}

func TestPollFromCursor(t *testing.T) {
	bus := New(0)
	require.NoError(t, bus.Register("run-1"))
	require.NoError(t, bus.Publish("run-1", model.EventStatus, model.StatusPayload{Message: "a"}))
	require.NoError(t, bus.Publish("run-1", model.EventStatus, model.StatusPayload{Message: "b"}))

	events, err := bus.Poll("run-1", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].SequenceNo)

	events, err = bus.Poll("run-1", 2)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSubscribeReplaysHistoryThenStreams(t *testing.T) {
	bus := New(0)
	require.NoError(t, bus.Register("run-1"))
	require.NoError(t, bus.Publish("run-1", model.EventStatus, model.StatusPayload{Message: "before"}))

	ch, err := bus.Subscribe(context.Background(), "run-1")
	require.NoError(t, err)

	require.NoError(t, bus.Publish("run-1", model.EventStatus, model.StatusPayload{Message: "after"}))
	require.NoError(t, bus.Publish("run-1", model.EventComplete, model.CompletePayload{}))

	var got []model.ProgressEvent
	for ev := range ch {
		got = append(got, ev)
	}

	require.Len(t, got, 3)
	assert.Equal(t, model.StatusPayload{Message: "before"}, got[0].Payload)
	assert.Equal(t, model.StatusPayload{Message: "after"}, got[1].Payload)
	assert.Equal(t, model.EventComplete, got[2].Type)
}

func TestSubscribeClosesOnTerminalRun(t *testing.T) {
	bus := New(0)
	require.NoError(t, bus.Register("run-1"))
	require.NoError(t, bus.Publish("run-1", model.EventComplete, model.CompletePayload{}))

	ch, err := bus.Subscribe(context.Background(), "run-1")
	require.NoError(t, err)

	var count int
	for range ch {
		count++
	}
	assert.Equal(t, 1, count)
}

func TestSubscriberCancelDoesNotAffectOthers(t *testing.T) {
	bus := New(0)
	require.NoError(t, bus.Register("run-1"))

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancelled, err := bus.Subscribe(cancelCtx, "run-1")
	require.NoError(t, err)
	cancel()

	// The cancelled subscription drains without events.
	select {
	case _, open := <-cancelled:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("cancelled subscriber did not close")
	}

	survivor, err := bus.Subscribe(context.Background(), "run-1")
	require.NoError(t, err)
	require.NoError(t, bus.Publish("run-1", model.EventComplete, model.CompletePayload{}))

	var got []model.ProgressEvent
	for ev := range survivor {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.Equal(t, model.EventComplete, got[0].Type)
}

func TestReleaseDropsLogAndUnblocksSubscribers(t *testing.T) {
	bus := New(0)
	require.NoError(t, bus.Register("run-1"))

	ch, err := bus.Subscribe(context.Background(), "run-1")
	require.NoError(t, err)

	bus.Release("run-1")

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscriber not released")
	}

	_, err = bus.Poll("run-1", 0)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.False(t, bus.Terminal("run-1"))
}
