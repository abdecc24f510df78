package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/logging"
)

func TestMailbox_LatestFrameWins(t *testing.T) {
	m := newMailbox()
	for i := uint64(1); i <= 5; i++ {
		m.offer(entity.Frame{Seq: i})
	}
	f := <-m.ch
	require.Equal(t, uint64(5), f.Seq)
	require.Equal(t, uint64(4), m.dropped.Load())
}

func TestSymbolAdapter_EmitsEachSymbol(t *testing.T) {
	now := time.Now()
	dec := &fakeDecoder{byFrame: map[uint64][]entity.Detection{
		1: {
			{Value: "A", Symbology: entity.SymbologyQR},
			{Value: "A", Symbology: entity.SymbologyQR},
			{Value: "B", Symbology: entity.SymbologyPDF417},
		},
	}}
	a := NewSymbolAdapter(dec, []entity.Symbology{entity.SymbologyQR}, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan entity.Detection, 8)
	go a.Run(ctx, out)

	a.Offer(entity.Frame{Seq: 1, CapturedAt: now})

	// повтор в одном кадре даёт две детекции, PDF417 отфильтрован
	for i := 0; i < 2; i++ {
		select {
		case d := <-out:
			require.Equal(t, "A", d.Value)
			require.Equal(t, entity.SourceSymbol, d.Source)
			require.True(t, d.RecognizedAt.Equal(now))
		case <-time.After(time.Second):
			t.Fatal("detection not delivered")
		}
	}
	require.Eventually(t, func() bool { return a.Stats().Processed == 1 }, time.Second, 5*time.Millisecond)
	select {
	case d := <-out:
		t.Fatalf("unexpected detection %v", d)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSymbolAdapter_FrameFaultIsLocal(t *testing.T) {
	dec := &fakeDecoder{panics: true}
	a := NewSymbolAdapter(dec, nil, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan entity.Detection, 1)
	go a.Run(ctx, out)

	a.Offer(entity.Frame{Seq: 1})
	require.Eventually(t, func() bool { return a.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)

	// адаптер жив и принимает следующие кадры
	a.Offer(entity.Frame{Seq: 2})
	require.Eventually(t, func() bool { return a.Stats().Failed == 2 }, time.Second, 5*time.Millisecond)
}

func TestTextAdapter_RawTextAndSwallowedErrors(t *testing.T) {
	rec := &fakeRecognizer{probe: available(), text: map[uint64]string{1: "Receipt %800005be-1578330321a"}}
	a := NewTextAdapter(rec, 0, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan entity.Detection, 1)
	go a.Run(ctx, out)

	a.Offer(entity.Frame{Seq: 1})
	select {
	case d := <-out:
		// сопоставление шаблонов делает эмиттер, адаптер отдаёт сырой текст
		require.Equal(t, "Receipt %800005be-1578330321a", d.Value)
		require.Equal(t, entity.SourceTextRegion, d.Source)
	case <-time.After(time.Second):
		t.Fatal("text detection not delivered")
	}

	rec.err = errors.New("malformed frame")
	a.Offer(entity.Frame{Seq: 2})
	require.Eventually(t, func() bool { return a.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
}

func TestTextAdapter_FrameRateLimit(t *testing.T) {
	rec := &fakeRecognizer{probe: available()}
	a := NewTextAdapter(rec, 5, logging.Discard())

	start := time.Now()
	// 30 fps в течение секунды
	for i := 0; i < 30; i++ {
		a.Offer(entity.Frame{Seq: uint64(i), CapturedAt: start.Add(time.Duration(i) * 33 * time.Millisecond)})
	}
	st := a.Stats()
	passed := 30 - st.Throttled
	require.GreaterOrEqual(t, passed, uint64(5))
	require.LessOrEqual(t, passed, uint64(6))
}
