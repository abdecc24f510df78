package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"asset-scan/config"
	"asset-scan/internal/domain/entity"
	"asset-scan/internal/infrastructure/storage"
	"asset-scan/internal/logging"
	"asset-scan/internal/scanner"
)

func TestScannerConfig(t *testing.T) {
	cfg := ScannerConfig(config.Scanner{
		Cooldown:    1500 * time.Millisecond,
		Symbologies: []string{"qr", ""},
		ROI:         config.ROI{X: 10, Y: 20, Width: 300, Height: 150, Tolerance: 0.1},
	})
	require.Equal(t, 1500*time.Millisecond, cfg.Cooldown)
	require.Equal(t, []entity.Symbology{entity.SymbologyQR}, cfg.Symbologies)
	require.Equal(t, 300.0, cfg.ROI.Area.Width)
	require.Equal(t, float64(scanner.DefaultOCRFrameRate), cfg.OCRFrameRate)

	def := ScannerConfig(config.Scanner{})
	require.Equal(t, scanner.DefaultCooldown, def.Cooldown)
	require.Zero(t, def.ROI.Area.Width)
}

func TestNew_InMemory(t *testing.T) {
	c, err := New(context.Background(), &config.Config{}, nil, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, c.SessionService)
	require.NotNil(t, c.ScanningService)
	require.IsType(t, &storage.MemoryAssetRepository{}, c.Assets)
	require.NoError(t, c.Close())
}

func TestNew_SQLite(t *testing.T) {
	dsn := "file:" + t.TempDir() + "/assets.db"
	c, err := New(context.Background(), &config.Config{Database: config.Database{Driver: "sqlite", DSN: dsn}}, nil, logging.Discard())
	require.NoError(t, err)
	require.IsType(t, &storage.SQLAssetRepository{}, c.Assets)
	require.NoError(t, c.Close())
}
