package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// ROI область прицела в координатах кадра. Нулевая ширина отключает проверку.
type ROI struct {
	X          float64 `mapstructure:"x"`
	Y          float64 `mapstructure:"y"`
	Width      float64 `mapstructure:"width"`
	Height     float64 `mapstructure:"height"`
	ViewWidth  float64 `mapstructure:"view_width"`
	ViewHeight float64 `mapstructure:"view_height"`
	Tolerance  float64 `mapstructure:"tolerance"`
}

type Scanner struct {
	Cooldown     time.Duration `mapstructure:"cooldown"`
	OCRFrameRate float64       `mapstructure:"ocr_fps"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	Symbologies  []string      `mapstructure:"symbologies"`
	DedupEntries int           `mapstructure:"dedup_entries"`
	FeedBuffer   int           `mapstructure:"feed_buffer"`
	ROI          ROI           `mapstructure:"roi"`
}

type Camera struct {
	Enabled bool   `mapstructure:"enabled"`
	Device  string `mapstructure:"device"`
}

type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Gemini struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type Config struct {
	TelegramToken string   `mapstructure:"telegram_token"`
	LogLevel      string   `mapstructure:"log_level"`
	HTTPAddr      string   `mapstructure:"http_addr"`
	Camera        Camera   `mapstructure:"camera"`
	Scanner       Scanner  `mapstructure:"scanner"`
	Database      Database `mapstructure:"database"`
	Gemini        Gemini   `mapstructure:"gemini"`
}

// Load читает .env, файл конфигурации и переменные окружения.
// Пустой path означает $HOME/.assetscan.yaml; отсутствие этого файла не ошибка.
func Load(path string) (*Config, error) {
	// Загружаем .env файл (игнорируем ошибку если файла нет)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, fmt.Errorf("home dir: %w", err)
		}
		v.AddConfigPath(home)
		v.SetConfigName(".assetscan")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ASSETSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// привычные имена без префикса
	_ = v.BindEnv("telegram_token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("database.dsn", "DATABASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram_token", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("camera.enabled", true)
	v.SetDefault("camera.device", "0")

	v.SetDefault("scanner.cooldown", 2000*time.Millisecond)
	v.SetDefault("scanner.ocr_fps", 5)
	v.SetDefault("scanner.settle_delay", 100*time.Millisecond)
	v.SetDefault("scanner.symbologies", []string{})
	v.SetDefault("scanner.dedup_entries", 256)
	v.SetDefault("scanner.feed_buffer", 4)
	v.SetDefault("scanner.roi.x", 0)
	v.SetDefault("scanner.roi.y", 0)
	v.SetDefault("scanner.roi.width", 0)
	v.SetDefault("scanner.roi.height", 0)
	v.SetDefault("scanner.roi.view_width", 0)
	v.SetDefault("scanner.roi.view_height", 0)
	v.SetDefault("scanner.roi.tolerance", 0.1)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-1.5-flash")
}
