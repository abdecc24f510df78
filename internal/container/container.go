package container

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"asset-scan/config"
	app "asset-scan/internal/application"
	"asset-scan/internal/domain/entity"
	"asset-scan/internal/domain/port"
	"asset-scan/internal/infrastructure/ocr"
	"asset-scan/internal/infrastructure/storage"
	"asset-scan/internal/infrastructure/vision"
	"asset-scan/internal/scanner"
)

type Container struct {
	SessionService  *app.SessionService
	ScanningService *app.ScanningService
	Assets          port.AssetRepository

	closers []func() error
}

// New собирает сервисы приложения. feedback получает сигналы для пользователя.
func New(ctx context.Context, cfg *config.Config, feedback port.Feedback, log logrus.FieldLogger) (*Container, error) {
	c := &Container{}

	assets, err := c.assetRepository(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	c.Assets = assets

	// у каждого владельца свой декодер, сканеры работают параллельно
	symbologies := parseSymbologies(cfg.Scanner.Symbologies)
	var camera func() port.CaptureBackend
	if cfg.Camera.Enabled {
		camera = func() port.CaptureBackend {
			return vision.NewCameraBackend(cfg.Camera.Device, vision.NewZXingDecoder(symbologies...))
		}
	}
	newFeed := func() port.FeedBackend {
		return vision.NewImageFeed(vision.NewZXingDecoder(symbologies...), cfg.Scanner.FeedBuffer)
	}

	recognizer := ocr.NewGeminiRecognizer(cfg.Gemini.APIKey, cfg.Gemini.Model)
	c.closers = append(c.closers, recognizer.Close)

	c.ScanningService = app.NewScanningService(camera, newFeed, recognizer, ScannerConfig(cfg.Scanner), cfg.Scanner.SettleDelay, log)
	c.SessionService = app.NewSessionService(storage.NewMemorySessionRepository(), assets, feedback, c.ScanningService, log)
	return c, nil
}

// assetRepository выбирает справочник активов: SQL при заданном драйвере, иначе в памяти
func (c *Container) assetRepository(ctx context.Context, db config.Database, log logrus.FieldLogger) (port.AssetRepository, error) {
	if db.Driver == "" {
		log.Warn("database driver is not configured, using in-memory asset registry")
		return storage.NewMemoryAssetRepository(), nil
	}
	conn, err := storage.OpenDB(ctx, db.Driver, db.DSN)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, conn.Close)

	repo := storage.NewSQLAssetRepository(conn, db.Driver, log)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// OpenSQL открывает репозиторий без остальных сервисов (для миграций)
func OpenSQL(ctx context.Context, db config.Database, log logrus.FieldLogger) (*storage.SQLAssetRepository, *sql.DB, error) {
	if db.Driver == "" {
		return nil, nil, fmt.Errorf("database driver is not configured")
	}
	conn, err := storage.OpenDB(ctx, db.Driver, db.DSN)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewSQLAssetRepository(conn, db.Driver, log), conn, nil
}

// ScannerConfig переводит настройки в параметры конвейера
func ScannerConfig(sc config.Scanner) scanner.Config {
	cfg := scanner.DefaultConfig()
	if sc.Cooldown > 0 {
		cfg.Cooldown = sc.Cooldown
	}
	if sc.OCRFrameRate > 0 {
		cfg.OCRFrameRate = sc.OCRFrameRate
	}
	if sc.DedupEntries > 0 {
		cfg.DedupEntries = sc.DedupEntries
	}
	if s := parseSymbologies(sc.Symbologies); len(s) > 0 {
		cfg.Symbologies = s
	}
	if sc.ROI.Width > 0 && sc.ROI.Height > 0 {
		cfg.ROI = entity.RegionOfInterest{
			Area:      entity.Rect{X: sc.ROI.X, Y: sc.ROI.Y, Width: sc.ROI.Width, Height: sc.ROI.Height},
			View:      entity.Size{Width: sc.ROI.ViewWidth, Height: sc.ROI.ViewHeight},
			Tolerance: sc.ROI.Tolerance,
		}
	}
	return cfg
}

func parseSymbologies(names []string) []entity.Symbology {
	out := make([]entity.Symbology, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, entity.Symbology(n))
		}
	}
	return out
}

// Close освобождает ресурсы в обратном порядке
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
