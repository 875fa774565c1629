package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go.uber.org/zap"
)

// TestHubBatchBySize verifies the hub flushes once the batch size limit is reached.
func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:    8,
		MaxBatch:      2,
		FlushInterval: time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	evt := sampleEvent(StageRunStart)
	hub.Emit(evt)
	hub.Emit(evt)
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1 && len(sink.Batches()[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHubBatchByInterval verifies partial batches flush on the ticker.
func TestHubBatchByInterval(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:    4,
		MaxBatch:      10,
		FlushInterval: 20 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(sampleEvent(StageRunStart))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

// TestHubEmitNonBlocking asserts Emit never blocks callers, even without a reader.
func TestHubEmitNonBlocking(t *testing.T) {
	t.Parallel()

	hub := &Hub{
		events: make(chan Event),
		logger: zap.NewNop(),
	}
	start := time.Now()
	hub.Emit(sampleEvent(StageRunStart))
	require.Less(t, time.Since(start), 50*time.Millisecond)
	require.Equal(t, int64(1), hub.Dropped())
}

// TestHubFlushOnClose ensures Close drains buffered events and closes sinks.
func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:    4,
		MaxBatch:      100,
		FlushInterval: time.Minute,
	}, sink)

	hub.Emit(sampleEvent(StageRunStart))
	hub.Emit(sampleEvent(StageFetchDone))

	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, sink.Batches(), 1)
	require.Len(t, sink.Batches()[0], 2)
	require.True(t, sink.Closed())

	hub.Emit(sampleEvent(StageRunDone))
	require.Len(t, sink.Batches(), 1)
}

// TestHubSkipsInvalidEvents ensures malformed events never reach sinks.
func TestHubSkipsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{MaxBatch: 100, FlushInterval: time.Minute}, sink)

	bad := sampleEvent(StageFetchDone)
	bad.Site = ""
	hub.Emit(bad)
	hub.Emit(Event{Stage: StageRunStart, TS: time.Now()})

	require.NoError(t, hub.Close(context.Background()))
	require.Empty(t, sink.Batches())
}

// TestHubSinkErrorsAreAdvisory ensures a failing sink does not stop delivery to others.
func TestHubSinkErrorsAreAdvisory(t *testing.T) {
	t.Parallel()

	good := newStubSink()
	hub := NewHub(Config{MaxBatch: 1, FlushInterval: time.Minute}, failingSink{}, good)

	hub.Emit(sampleEvent(StageRunStart))
	require.NoError(t, hub.Close(context.Background()))
	require.Len(t, good.Batches(), 1)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	evt := sampleEvent(StageTargetDone)
	require.ErrorContains(t, evt.Validate(), "target")
	evt.Target = "pami/2020"
	require.NoError(t, evt.Validate())

	evt.Stage = "BOGUS"
	require.Error(t, evt.Validate())

	evt = sampleEvent(StageRunDone)
	evt.Dur = -time.Second
	require.Error(t, evt.Validate())
}

func TestParseRunID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	got, err := ParseRunID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, Event{RunID: got}.RunUUID())

	_, err = ParseRunID("nope")
	require.Error(t, err)
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, Status2xx, ClassifyStatus(200))
	require.Equal(t, Status3xx, ClassifyStatus(301))
	require.Equal(t, Status4xx, ClassifyStatus(404))
	require.Equal(t, Status5xx, ClassifyStatus(503))
	require.Equal(t, StatusOther, ClassifyStatus(0))
}

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *stubSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Event, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]Event(nil), b...)
	}
	return out
}

type failingSink struct{}

func (failingSink) Consume(context.Context, []Event) error { return errors.New("sink down") }
func (failingSink) Close(context.Context) error            { return errors.New("sink down") }

func sampleEvent(stage Stage) Event {
	evt := Event{
		RunID: [16]byte(uuid.New()),
		TS:    time.Now(),
		Stage: stage,
	}
	if stage == StageFetchDone {
		evt.Site = "dblp.org"
		evt.StatusClass = Status2xx
	}
	return evt
}
