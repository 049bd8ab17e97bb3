package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/magabrotheeeer/campaign-dashboard/internal/client/localstore"
)

const (
	configDir  = "campaign-dashboard"
	configName = "config"
	configType = "toml"
	envPrefix  = "DASHBOARD"
)

// Config — настройки клиента. Файл ~/.config/campaign-dashboard/config.toml,
// переменные окружения DASHBOARD_* имеют приоритет.
type Config struct {
	APIURL          string `mapstructure:"api_url"`
	AppURL          string `mapstructure:"app_url"`
	SupabaseURL     string `mapstructure:"supabase_url"`
	SupabaseAnonKey string `mapstructure:"supabase_anon_key"`
	StoragePath     string `mapstructure:"storage_path"`
	LogLevel        string `mapstructure:"log_level"`
}

func loadConfig(v *viper.Viper) (Config, error) {
	const op = "cli.loadConfig"

	if v == nil {
		v = viper.New()
	}

	storagePath, err := localstore.DefaultPath()
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, configDir))
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("app_url", "http://localhost:3000")
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_anon_key", "")
	v.SetDefault("storage_path", storagePath)
	v.SetDefault("log_level", "warn")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("%s: read config file: %w", op, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.APIURL == "" {
		return Config{}, fmt.Errorf("%s: api_url is empty", op)
	}
	return cfg, nil
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
