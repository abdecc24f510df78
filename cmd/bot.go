package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"asset-scan/internal/api"
	"asset-scan/internal/container"
	"asset-scan/internal/infrastructure/feedback"
	"asset-scan/internal/logging"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Запустить Telegram-бота и HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.TelegramToken == "" {
			return errors.New("TELEGRAM_TOKEN is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logging.Log

		// Создаём бота
		bot, err := api.NewBot(cfg.TelegramToken, log)
		if err != nil {
			return err
		}

		// Собираем сервисы приложения
		appContainer, err := container.New(ctx, cfg, feedback.Fanout{bot, feedback.NewLogFeedback(log)}, log)
		if err != nil {
			return err
		}
		defer appContainer.Close()
		bot.Bind(appContainer.SessionService, appContainer.ScanningService)

		httpServer := api.NewHTTPServer(appContainer.SessionService, appContainer.ScanningService, log)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return bot.Run(gctx) })
		g.Go(func() error { return httpServer.Run(gctx, cfg.HTTPAddr) })

		log.Info("Bot is running...")
		err = g.Wait()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := appContainer.ScanningService.Shutdown(shutdownCtx); serr != nil {
			log.WithError(serr).Warn("scanners did not stop in time")
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}
