package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port                  string `yaml:"port"`
	AllowedOrigin         string `yaml:"allowed_origin"`
	DatabaseURL           string `yaml:"database_url"`
	RedisAddr             string `yaml:"redis_addr"`
	RedisPassword         string `yaml:"redis_password"`
	RedisDB               int    `yaml:"redis_db"`
	TimezoneOffsetHours   int    `yaml:"timezone_offset_hours"`
	ReportCacheTTLSeconds int    `yaml:"report_cache_ttl_seconds"`
	CartTTLHours          int    `yaml:"cart_ttl_hours"`
	CartFileDir           string `yaml:"cart_file_dir"`
	RankingDefaultLimit   int    `yaml:"ranking_default_limit"`
	LogLevel              string `yaml:"log_level"`
	AppEnv                string `yaml:"app_env"`
}

func Defaults() Config {
	return Config{
		Port:                  "8080",
		AllowedOrigin:         "http://127.0.0.1:3000",
		TimezoneOffsetHours:   8,
		ReportCacheTTLSeconds: 30,
		CartTTLHours:          72,
		RankingDefaultLimit:   10,
		LogLevel:              "info",
		AppEnv:                "development",
	}
}

// Load reads defaults, then the YAML file named by CONFIG_FILE, then the
// environment. A .env file in the working directory seeds the environment
// without overriding variables that are already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Port, "PORT")
	setString(&cfg.AllowedOrigin, "ALLOWED_ORIGIN")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.CartFileDir, "CART_FILE_DIR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.AppEnv, "APP_ENV")

	ints := []struct {
		key  string
		dest *int
	}{
		{"REDIS_DB", &cfg.RedisDB},
		{"TIMEZONE_OFFSET_HOURS", &cfg.TimezoneOffsetHours},
		{"REPORT_CACHE_TTL_SECONDS", &cfg.ReportCacheTTLSeconds},
		{"CART_TTL_HOURS", &cfg.CartTTLHours},
		{"RANKING_DEFAULT_LIMIT", &cfg.RankingDefaultLimit},
	}
	for _, item := range ints {
		if err := setInt(item.dest, item.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dest *string, key string) {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		*dest = val
	}
}

func setInt(dest *int, key string) error {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s must be an integer, got %q", key, val)
	}
	*dest = n
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
