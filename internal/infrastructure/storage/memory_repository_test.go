package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
)

func TestMemorySessionRepository_GetCreates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository()

	s, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), s.OwnerID)
	require.Equal(t, entity.StepSelectLocation, s.Step)

	again, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	require.Same(t, s, again)

	require.NoError(t, repo.Delete(ctx, 7))
	fresh, err := repo.Get(ctx, 7)
	require.NoError(t, err)
	require.NotEqual(t, s.ID, fresh.ID)
}

func TestMemoryAssetRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAssetRepository(entity.Asset{Code: "A"})
	repo.FailCodes["B"] = errors.New("server unavailable")
	repo.Put(entity.Asset{Code: "B"})

	require.NoError(t, repo.UpdateStatus(ctx, "A", entity.StatusFull, "plant"))
	a, err := repo.Lookup(ctx, "A")
	require.NoError(t, err)
	require.Equal(t, "full", a.Status)

	require.Error(t, repo.UpdateStatus(ctx, "B", entity.StatusFull, "plant"))
	require.ErrorIs(t, repo.UpdateStatus(ctx, "C", entity.StatusFull, "plant"), port.ErrAssetNotFound)
	require.Len(t, repo.History(), 1)
}
