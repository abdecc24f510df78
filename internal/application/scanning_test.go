package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
	"asset-scan/internal/infrastructure/storage"
	"asset-scan/internal/infrastructure/vision"
	"asset-scan/internal/logging"
	"asset-scan/internal/scanner"
)

// missingCamera камера, которой нет в сборке
type missingCamera struct{}

func (missingCamera) Kind() entity.BackendKind { return entity.BackendCamera }
func (missingCamera) Probe() entity.Capability { return entity.Unavailable("no camera") }
func (missingCamera) Open(ctx context.Context) (port.CaptureHandle, error) {
	return nil, errors.New("no camera")
}

func newScanningService(value string) *ScanningService {
	return NewScanningService(
		func() port.CaptureBackend { return missingCamera{} },
		func() port.FeedBackend { return vision.NewImageFeed(staticDecoder{value: value}, 4) },
		nil,
		scanner.DefaultConfig(),
		time.Millisecond,
		logging.Discard(),
	)
}

func TestScanningService_PushFrameReachesCallback(t *testing.T) {
	ctx := context.Background()
	svc := newScanningService("*CYL-9*")

	var (
		mu    sync.Mutex
		codes []string
	)
	require.NoError(t, svc.Activate(ctx, owner, func(ev entity.ScanEvent) {
		mu.Lock()
		codes = append(codes, ev.Code)
		mu.Unlock()
	}))
	require.True(t, svc.Active(owner))
	// повторная активация не создаёт второй конвейер
	require.NoError(t, svc.Activate(ctx, owner, nil))

	require.NoError(t, svc.PushFrame(ctx, owner, pngBytes(t)))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(codes) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	require.Equal(t, "CYL-9", codes[0])
	mu.Unlock()

	st, ok := svc.State(owner)
	require.True(t, ok)
	require.Equal(t, entity.BackendImageFeed, st.Kind)

	svc.Deactivate(owner)
	require.False(t, svc.Active(owner))
	require.ErrorIs(t, svc.PushFrame(ctx, owner, pngBytes(t)), ErrNotScanning)
}

func TestScanningService_NoBackendReportsFailure(t *testing.T) {
	svc := NewScanningService(nil, nil, nil, scanner.DefaultConfig(), time.Millisecond, logging.Discard())

	failed := make(chan error, 1)
	svc.OnFailure = func(ownerID int64, err error) { failed <- err }

	require.NoError(t, svc.Activate(context.Background(), owner, nil))
	select {
	case err := <-failed:
		require.ErrorIs(t, err, scanner.ErrNoBackend)
	case <-time.After(2 * time.Second):
		t.Fatal("failure is not reported")
	}
	require.Eventually(t, func() bool { return !svc.Active(owner) }, time.Second, 5*time.Millisecond)
}

func TestScanningService_Shutdown(t *testing.T) {
	svc := newScanningService("A")
	require.NoError(t, svc.Activate(context.Background(), 1, nil))
	require.NoError(t, svc.Activate(context.Background(), 2, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
	require.False(t, svc.Active(1))
	require.False(t, svc.Active(2))
}

func TestSessionAndScanning_EndToEnd(t *testing.T) {
	ctx := context.Background()
	scanning := newScanningService("CYL-100")
	sessions := NewSessionService(storage.NewMemorySessionRepository(), storage.NewMemoryAssetRepository(), nil, scanning, logging.Discard())

	_, err := sessions.SelectLocation(ctx, owner, "depot")
	require.NoError(t, err)
	_, err = sessions.SelectStatus(ctx, owner, entity.StatusEmpty)
	require.NoError(t, err)
	_, err = sessions.StartScan(ctx, owner)
	require.NoError(t, err)
	require.True(t, scanning.Active(owner))

	require.NoError(t, scanning.PushFrame(ctx, owner, pngBytes(t)))
	require.Eventually(t, func() bool {
		view, err := sessions.View(ctx, owner)
		return err == nil && len(view.Items) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err = sessions.Reset(ctx, owner)
	require.NoError(t, err)
	require.False(t, scanning.Active(owner))
}

func TestSessionAndScanning_RestartAfterBackendFailure(t *testing.T) {
	ctx := context.Background()

	// первая активация остаётся без бэкендов, следующие получают ленту изображений
	feeds := 0
	scanning := NewScanningService(
		nil,
		func() port.FeedBackend {
			feeds++
			if feeds == 1 {
				return nil
			}
			return vision.NewImageFeed(staticDecoder{value: "CYL-7"}, 4)
		},
		nil,
		scanner.DefaultConfig(),
		time.Millisecond,
		logging.Discard(),
	)
	failed := make(chan error, 1)
	scanning.OnFailure = func(ownerID int64, err error) { failed <- err }
	sessions := NewSessionService(storage.NewMemorySessionRepository(), storage.NewMemoryAssetRepository(), nil, scanning, logging.Discard())

	_, err := sessions.SelectLocation(ctx, owner, "depot")
	require.NoError(t, err)
	_, err = sessions.SelectStatus(ctx, owner, entity.StatusEmpty)
	require.NoError(t, err)
	_, err = sessions.StartScan(ctx, owner)
	require.NoError(t, err)

	select {
	case err := <-failed:
		require.ErrorIs(t, err, scanner.ErrNoBackend)
	case <-time.After(2 * time.Second):
		t.Fatal("failure is not reported")
	}
	require.Eventually(t, func() bool { return !scanning.Active(owner) }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, scanning.PushFrame(ctx, owner, pngBytes(t)), ErrNotScanning)

	session, err := sessions.StartScan(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, entity.StepScan, session.Step)
	require.True(t, scanning.Active(owner))

	require.NoError(t, scanning.PushFrame(ctx, owner, pngBytes(t)))
	require.Eventually(t, func() bool {
		view, err := sessions.View(ctx, owner)
		return err == nil && len(view.Items) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, scanning.Shutdown(ctx))
}
