package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source kinds for READING_SOURCE.
const (
	SourceWebSocket = "websocket"
	SourceKafka     = "kafka"
)

// Config holds process configuration for the estimator, the beacon simulator
// and the viewer.
type Config struct {
	// Estimator
	HTTPAddr       string
	ReadingSource  string
	BeaconURL      string
	ReadingBuffer  int
	ReconnectDelay time.Duration

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	// Runtime defaults
	SignalVelocity float64
	ObjectVelocity float64

	// Beacon simulator
	BeaconAddr     string
	BeaconInterval time.Duration
	BeaconNoise    float64

	// Viewer
	ViewerURL string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables, with an optional .env
// file in the working directory.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		ReadingSource:  strings.ToLower(getEnv("READING_SOURCE", SourceWebSocket)),
		BeaconURL:      getEnv("BEACON_URL", "ws://localhost:4001"),
		ReadingBuffer:  getEnvAsInt("READING_BUFFER", 256),
		ReconnectDelay: time.Duration(getEnvAsInt("RECONNECT_DELAY_MS", 2000)) * time.Millisecond,

		KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}, ","),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "beacon-readings"),
		KafkaGroup:   getEnv("KAFKA_GROUP", "trilateration"),

		SignalVelocity: float64(getEnvAsInt("SIGNAL_VELOCITY", DefaultSignalVelocity)),
		ObjectVelocity: float64(getEnvAsInt("OBJECT_VELOCITY", DefaultObjectVelocity)),

		BeaconAddr:     getEnv("BEACON_ADDR", ":4001"),
		BeaconInterval: time.Duration(getEnvAsInt("BEACON_INTERVAL_MS", 500)) * time.Millisecond,
		BeaconNoise:    getEnvAsFloat("BEACON_NOISE_STDDEV", 0),

		ViewerURL: getEnv("VIEWER_URL", "ws://localhost:8080/ws/estimates"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.ReadingSource != SourceWebSocket && cfg.ReadingSource != SourceKafka {
		return nil, errors.New("READING_SOURCE must be websocket or kafka")
	}
	if cfg.ReadingBuffer < 1 {
		cfg.ReadingBuffer = 1
	}
	if cfg.BeaconInterval <= 0 {
		return nil, errors.New("BEACON_INTERVAL_MS must be positive")
	}

	return cfg, nil
}

// Settings returns the runtime defaults from the environment.
func (c *Config) Settings() Settings {
	return Settings{
		SignalVelocity: c.SignalVelocity,
		ObjectVelocity: c.ObjectVelocity,
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsSlice(key string, defaultVal []string, sep string) []string {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultVal
	}
	return strings.Split(valStr, sep)
}
