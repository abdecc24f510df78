package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"asset-scan/config"
	"asset-scan/internal/logging"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "assetscan",
	Short: "Сканирование баллонов партиями: штрихкоды, QR-коды и текст накладных",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
}

// Execute запускает корневую команду
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.assetscan.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "loglevel", "l", "", "Set log level. Available: debug, info, warn, error, fatal")
}

// loadConfig читает конфигурацию и настраивает логгер. Флаг --loglevel важнее файла.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := logging.SetLevel(level); err != nil {
		return nil, err
	}
	return cfg, nil
}
