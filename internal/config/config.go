// Package config loads moodlens settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MOODLENS_"

// Config holds all runtime settings.
type Config struct {
	Addr            string
	Camera          string
	FaceModel       string
	EmotionModel    string
	WatchModels     bool
	DataDir         string
	DBPath          string
	TemplateDir     string
	StaticDir       string
	HistoryInterval time.Duration
	LogLevel        string
	LogFormat       string
	AMQPURL         string
	AMQPExchange    string
	MetricsEnabled  bool
}

// Default returns the built-in defaults. DBPath is left empty and resolved
// against DataDir by Resolve.
func Default() Config {
	return Config{
		Addr:            ":5000",
		Camera:          "0",
		FaceModel:       filepath.Join("models", "haarcascade_frontalface_default.xml"),
		EmotionModel:    filepath.Join("models", "emotion-ferplus-8.onnx"),
		WatchModels:     true,
		DataDir:         ".",
		TemplateDir:     "templates",
		StaticDir:       "static",
		HistoryInterval: time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
		AMQPExchange:    "moodlens.events",
		MetricsEnabled:  true,
	}
}

// Load reads the given .env files (".env" when none are given), then applies
// MOODLENS_* environment variables over the defaults. Missing .env files are
// ignored; variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	c := Default()
	c.Addr = getEnvOrDefault("ADDR", c.Addr)
	c.Camera = getEnvOrDefault("CAMERA", c.Camera)
	c.FaceModel = getEnvOrDefault("FACE_MODEL", c.FaceModel)
	c.EmotionModel = getEnvOrDefault("EMOTION_MODEL", c.EmotionModel)
	c.WatchModels = getEnvBoolOrDefault("WATCH_MODELS", c.WatchModels)
	c.DataDir = getEnvOrDefault("DATA_DIR", c.DataDir)
	c.DBPath = getEnvOrDefault("DB_PATH", c.DBPath)
	c.TemplateDir = getEnvOrDefault("TEMPLATE_DIR", c.TemplateDir)
	c.StaticDir = getEnvOrDefault("STATIC_DIR", c.StaticDir)
	c.HistoryInterval = getEnvDurationOrDefault("HISTORY_INTERVAL", c.HistoryInterval)
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)
	c.AMQPURL = getEnvOrDefault("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnvOrDefault("AMQP_EXCHANGE", c.AMQPExchange)
	c.MetricsEnabled = getEnvBoolOrDefault("METRICS", c.MetricsEnabled)

	return c, nil
}

// Resolve fills derived values. It must be called after flags are applied.
func (c *Config) Resolve() {
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.DataDir, "moodlens.db")
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.Camera == "" {
		return fmt.Errorf("camera source is required")
	}
	if c.FaceModel == "" || c.EmotionModel == "" {
		return fmt.Errorf("face and emotion model paths are required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.HistoryInterval <= 0 {
		return fmt.Errorf("history interval must be positive: %v", c.HistoryInterval)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json: %q", c.LogFormat)
	}
	if c.AMQPURL != "" && c.AMQPExchange == "" {
		return fmt.Errorf("AMQP exchange is required when AMQP URL is set")
	}
	return nil
}

// NewLogger builds a logger from the configured level and format.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
