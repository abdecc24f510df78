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

const testSettle = 50 * time.Millisecond

func TestSelector_PrimaryAvailable(t *testing.T) {
	primary := &fakeBackend{kind: entity.BackendCamera, probe: available(), handle: newFakeHandle(&fakeDecoder{}, entity.Capabilities{SupportsOCR: true, SupportsZoom: true})}
	fallback := &fakeBackend{kind: entity.BackendImageFeed, probe: available(), handle: newFakeHandle(&fakeDecoder{}, entity.Capabilities{})}
	s := NewSelector(primary, fallback, testSettle, logging.Discard())

	h, err := s.Select(context.Background())
	require.NoError(t, err)
	require.Same(t, primary.handle, h)
	require.Equal(t, entity.BackendAvailable, s.State().Status)
	require.Equal(t, entity.BackendCamera, s.State().Kind)
	require.True(t, s.Capabilities().SupportsZoom)
	require.Zero(t, fallback.Opens())
}

func TestSelector_PrimaryMissingUsesFallbackSilently(t *testing.T) {
	primary := &fakeBackend{kind: entity.BackendCamera, probe: entity.Unavailable("gocv build tag is not enabled")}
	fallback := &fakeBackend{kind: entity.BackendImageFeed, probe: available(), handle: newFakeHandle(&fakeDecoder{}, entity.Capabilities{})}
	rec := &stateRecorder{}
	s := NewSelector(primary, fallback, testSettle, logging.Discard())
	s.OnStateChange = rec.record

	h, err := s.Select(context.Background())
	require.NoError(t, err)
	require.Same(t, fallback.handle, h)
	require.Zero(t, primary.Opens())
	require.Equal(t, []entity.BackendStatus{entity.BackendUnavailable, entity.BackendAvailable}, rec.statuses())
}

func TestSelector_InitFaultFallsBackAfterSettle(t *testing.T) {
	primary := &fakeBackend{kind: entity.BackendCamera, probe: available(), openErr: errInitFault}
	fallback := &fakeBackend{kind: entity.BackendImageFeed, probe: available(), handle: newFakeHandle(&fakeDecoder{}, entity.Capabilities{})}
	rec := &stateRecorder{}
	s := NewSelector(primary, fallback, testSettle, logging.Discard())
	s.OnStateChange = rec.record

	h, err := s.Select(context.Background())
	require.NoError(t, err)
	require.Same(t, fallback.handle, h)

	require.Equal(t, []entity.BackendStatus{
		entity.BackendAvailable,
		entity.BackendUnavailable,
		entity.BackendAvailable,
	}, rec.statuses())
	require.Equal(t, entity.BackendCamera, rec.states[1].Kind)
	require.Contains(t, rec.states[1].Reason, "render fault")
	require.Equal(t, entity.BackendImageFeed, rec.states[2].Kind)

	// фоллбэк активирован не раньше паузы и в пределах одного окна после неё
	gap := rec.at[2].Sub(rec.at[1])
	require.GreaterOrEqual(t, gap, testSettle)
	require.Less(t, gap, 2*testSettle+100*time.Millisecond)

	// второй сбой уже на фоллбэке: терминальная ошибка, без новых попыток
	_, err = s.Recover(context.Background(), errors.New("fallback crashed"))
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	require.Equal(t, entity.BackendImageFeed, fatal.Backend)
	require.Equal(t, entity.BackendFailed, s.State().Status)
	require.True(t, s.State().Terminal())
	require.Equal(t, 1, fallback.Opens())
	require.Equal(t, 1, primary.Opens())
}

func TestSelector_PermissionDeniedIsTerminal(t *testing.T) {
	primary := &fakeBackend{kind: entity.BackendCamera, probe: available(), handle: newFakeHandle(&fakeDecoder{}, entity.Capabilities{})}
	s := NewSelector(primary, nil, testSettle, logging.Discard())
	s.Permissions = fakePermissions{granted: false}

	_, err := s.Select(context.Background())
	require.ErrorIs(t, err, ErrPermissionDenied)
	require.Equal(t, entity.BackendPermissionDenied, s.State().Status)
	require.True(t, s.State().Terminal())
	require.Zero(t, primary.Opens())
}

func TestSelector_NoBackends(t *testing.T) {
	primary := &fakeBackend{kind: entity.BackendCamera, probe: entity.Unavailable("missing")}
	s := NewSelector(primary, nil, testSettle, logging.Discard())

	_, err := s.Select(context.Background())
	require.ErrorIs(t, err, ErrNoBackend)
}

func TestSelector_SettleRespectsContext(t *testing.T) {
	primary := &fakeBackend{kind: entity.BackendCamera, probe: available(), openErr: errInitFault}
	fallback := &fakeBackend{kind: entity.BackendImageFeed, probe: available(), handle: newFakeHandle(&fakeDecoder{}, entity.Capabilities{})}
	s := NewSelector(primary, fallback, time.Hour, logging.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Select(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Zero(t, fallback.Opens())
}
