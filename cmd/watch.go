package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	app "asset-scan/internal/application"
	"asset-scan/internal/container"
	"asset-scan/internal/domain/entity"
	"asset-scan/internal/infrastructure/feedback"
	"asset-scan/internal/logging"
	"asset-scan/internal/scanner"
)

// localOwner владелец сессии в терминальном режиме
const localOwner int64 = 0

var (
	watchLocation string
	watchStatus   string
	watchDir      string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Сканировать с камеры (или из каталога изображений) и отправить партию по Ctrl+C",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		status, ok := entity.ParseStatusTarget(watchStatus)
		if !ok {
			return fmt.Errorf("--status must be empty or full, got %q", watchStatus)
		}

		var files []string
		if watchDir != "" {
			files, err = imageFiles(watchDir)
			if err != nil {
				return err
			}
			cfg.Camera.Enabled = false
			cfg.Scanner.FeedBuffer = len(files) + 1
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logging.Log
		c, err := container.New(ctx, cfg, feedback.NewLogFeedback(log), log)
		if err != nil {
			return err
		}
		defer c.Close()

		sessions, scanning := c.SessionService, c.ScanningService
		if _, err := sessions.SelectLocation(ctx, localOwner, watchLocation); err != nil {
			return err
		}
		if _, err := sessions.SelectStatus(ctx, localOwner, status); err != nil {
			return err
		}
		if _, err := sessions.StartScan(ctx, localOwner); err != nil {
			return err
		}

		if len(files) > 0 {
			gap := ocrGap(container.ScannerConfig(cfg.Scanner).OCRFrameRate)
			if err := pushFiles(ctx, scanning, files, gap); err != nil {
				return err
			}
			log.WithField("files", len(files)).Info("all images are processed, press Ctrl+C to submit")
		} else {
			log.Info("scanning, press Ctrl+C to submit")
		}
		<-ctx.Done()

		summary, err := sessions.Submit(context.Background(), localOwner)
		if err != nil {
			return err
		}
		fmt.Printf("added: %d, duplicates: %d, failed: %d\n", summary.Added, summary.Duplicates, len(summary.Failed))
		for _, f := range summary.Failed {
			fmt.Printf("  %s: %s\n", f.Code, f.Reason)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return scanning.Shutdown(shutdownCtx)
	},
}

// ocrGap минимальный интервал между кадрами, который пропустит ограничитель OCR
func ocrGap(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// pushFiles подаёт изображения по одному и ждёт, пока оба адаптера возьмут кадр,
// иначе более свежий кадр вытеснит ещё не обработанный. Между кадрами выдерживается
// gap, чтобы ограничитель частоты OCR не пропускал снимки.
func pushFiles(ctx context.Context, scanning *app.ScanningService, files []string, gap time.Duration) error {
	var (
		last   time.Time
		pushed uint64
	)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if wait := gap - time.Since(last); !last.IsZero() && wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := scanning.PushFrame(ctx, localOwner, data); err != nil {
			logging.Log.WithError(err).WithField("file", path).Warn("skip image")
			continue
		}
		// время захвата кадра проставляется внутри PushFrame
		last = time.Now()
		pushed++
		if err := waitHandled(ctx, scanning, pushed); err != nil {
			return err
		}
	}
	return nil
}

func waitHandled(ctx context.Context, scanning *app.ScanningService, n uint64) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(30 * time.Second)
	for {
		st, ok := scanning.Stats(localOwner)
		if !ok {
			return errors.New("scanning stopped")
		}
		caps, _ := scanning.Capabilities(localOwner)
		if frameHandled(st, caps.SupportsOCR, n) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return errors.New("timed out waiting for frame processing")
		case <-ticker.C:
		}
	}
}

// frameHandled сообщает, что оба адаптера учли n кадров
func frameHandled(st scanner.Stats, ocr bool, n uint64) bool {
	if handled(st.Symbol) < n {
		return false
	}
	return !ocr || handled(st.Text) >= n
}

func handled(st scanner.AdapterStats) uint64 {
	return st.Processed + st.Failed + st.Dropped + st.Throttled
}

func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	return files, nil
}

func init() {
	watchCmd.Flags().StringVar(&watchLocation, "location", "", "location id (required)")
	watchCmd.Flags().StringVar(&watchStatus, "status", "", "target status: empty or full (required)")
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "read frames from image files in this directory instead of the camera")
	_ = watchCmd.MarkFlagRequired("location")
	_ = watchCmd.MarkFlagRequired("status")
	rootCmd.AddCommand(watchCmd)
}
