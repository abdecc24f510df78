package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/logging"
)

type eventSink struct {
	mu     sync.Mutex
	events []entity.ScanEvent
}

func (s *eventSink) add(ev entity.ScanEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Code)
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OCRFrameRate = 0
	return cfg
}

func TestScanner_CooldownOverFrames(t *testing.T) {
	t0 := time.UnixMilli(10_000)
	dec := &fakeDecoder{byFrame: map[uint64][]entity.Detection{
		1: {{Value: "CYL-7", Symbology: entity.SymbologyCode128}},
		2: {{Value: "CYL-7", Symbology: entity.SymbologyCode128}},
		3: {{Value: "CYL-7", Symbology: entity.SymbologyCode128}},
	}}
	handle := newFakeHandle(dec, entity.Capabilities{})
	primary := &fakeBackend{kind: entity.BackendCamera, probe: available(), handle: handle}
	sc := New(NewSelector(primary, nil, testSettle, logging.Discard()), nil, testConfig(), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	sink := &eventSink{}
	done := make(chan error, 1)
	go func() { done <- sc.Run(ctx, sink.add) }()

	handle.frames <- entity.Frame{Seq: 1, CapturedAt: t0}
	require.Eventually(t, func() bool { return len(sink.codes()) == 1 }, time.Second, 5*time.Millisecond)

	handle.frames <- entity.Frame{Seq: 2, CapturedAt: t0.Add(time.Second)}
	require.Eventually(t, func() bool { return dec.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	handle.frames <- entity.Frame{Seq: 3, CapturedAt: t0.Add(2100 * time.Millisecond)}
	require.Eventually(t, func() bool { return len(sink.codes()) == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.True(t, handle.closed.Load())
	require.Equal(t, []string{"CYL-7", "CYL-7"}, sink.codes())
}

func TestScanner_TextPath(t *testing.T) {
	rec := &fakeRecognizer{probe: available(), text: map[uint64]string{1: "Delivery slip\n%800005be-1578330321a"}}
	handle := newFakeHandle(&fakeDecoder{}, entity.Capabilities{SupportsOCR: true})
	primary := &fakeBackend{kind: entity.BackendCamera, probe: available(), handle: handle}
	sc := New(NewSelector(primary, nil, testSettle, logging.Discard()), rec, testConfig(), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &eventSink{}
	go func() { _ = sc.Run(ctx, sink.add) }()

	handle.frames <- entity.Frame{Seq: 1, CapturedAt: time.Now()}
	require.Eventually(t, func() bool { return len(sink.codes()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "800005BE-1578330321A", sink.codes()[0])
	require.True(t, sc.Capabilities().SupportsOCR)
}

func TestScanner_MissingOCRDegradesSilently(t *testing.T) {
	rec := &fakeRecognizer{probe: entity.Unavailable("GEMINI_API_KEY is empty")}
	dec := &fakeDecoder{byFrame: map[uint64][]entity.Detection{1: {{Value: "QR-1", Symbology: entity.SymbologyQR}}}}
	handle := newFakeHandle(dec, entity.Capabilities{SupportsOCR: true})
	primary := &fakeBackend{kind: entity.BackendCamera, probe: available(), handle: handle}
	sc := New(NewSelector(primary, nil, testSettle, logging.Discard()), rec, testConfig(), logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &eventSink{}
	go func() { _ = sc.Run(ctx, sink.add) }()

	handle.frames <- entity.Frame{Seq: 1, CapturedAt: time.Now()}
	require.Eventually(t, func() bool { return len(sink.codes()) == 1 }, time.Second, 5*time.Millisecond)

	require.Equal(t, entity.BackendDegraded, sc.State().Status)
	require.False(t, sc.Capabilities().SupportsOCR)
	require.Zero(t, sc.Stats().Text.Processed)
}

func TestScanner_RuntimeFaultSwitchesOnceThenFails(t *testing.T) {
	primaryHandle := newFakeHandle(&fakeDecoder{}, entity.Capabilities{})
	fallbackDec := &fakeDecoder{byFrame: map[uint64][]entity.Detection{1: {{Value: "FB-1", Symbology: entity.SymbologyQR}}}}
	fallbackHandle := newFakeHandle(fallbackDec, entity.Capabilities{})
	primary := &fakeBackend{kind: entity.BackendCamera, probe: available(), handle: primaryHandle}
	fallback := &fakeBackend{kind: entity.BackendImageFeed, probe: available(), handle: fallbackHandle}

	rec := &stateRecorder{}
	sel := NewSelector(primary, fallback, testSettle, logging.Discard())
	sel.OnStateChange = rec.record
	sc := New(sel, nil, testConfig(), logging.Discard())

	sink := &eventSink{}
	done := make(chan error, 1)
	go func() { done <- sc.Run(context.Background(), sink.add) }()

	primaryHandle.faults <- errors.New("camera disconnected")
	require.Eventually(t, func() bool { return fallback.Opens() == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, primaryHandle.closed.Load())

	fallbackHandle.frames <- entity.Frame{Seq: 1, CapturedAt: time.Now()}
	require.Eventually(t, func() bool { return len(sink.codes()) == 1 }, time.Second, 5*time.Millisecond)

	fallbackHandle.faults <- errors.New("decoder crashed")
	var err error
	select {
	case err = <-done:
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop")
	}
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, entity.BackendImageFeed, fatal.Backend)
	require.Equal(t, 1, fallback.Opens())
	require.Equal(t, entity.BackendFailed, sc.State().Status)
	require.Equal(t, []entity.BackendStatus{
		entity.BackendAvailable,
		entity.BackendUnavailable,
		entity.BackendAvailable,
		entity.BackendUnavailable,
		entity.BackendFailed,
	}, rec.statuses())
}
