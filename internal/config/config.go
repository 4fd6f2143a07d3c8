package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config stores runtime configuration for the assistant client.
type Config struct {
	Service ServiceConfig
	Audio   AudioConfig
	History HistoryConfig
	Log     LogConfig
}

type ServiceConfig struct {
	WebSocketURL   string
	HTTPBaseURL    string
	RetryLimit     int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	PlayerCommand   string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkInterval   time.Duration
}

type HistoryConfig struct {
	Limit int
}

type LogConfig struct {
	Level string
}

// Load resolves configuration from environment variables and defaults.
func Load() (Config, error) {
	cfg := Config{
		Service: ServiceConfig{
			WebSocketURL:   envOrDefault("ECHODESK_WS_URL", "ws://127.0.0.1:8000/ws"),
			HTTPBaseURL:    envOrDefault("ECHODESK_HTTP_URL", "http://127.0.0.1:8000"),
			RetryLimit:     envOrDefaultInt("ECHODESK_RETRY_LIMIT", 5),
			RetryDelay:     time.Duration(envOrDefaultInt("ECHODESK_RETRY_DELAY_MS", 5000)) * time.Millisecond,
			RequestTimeout: time.Duration(envOrDefaultInt("ECHODESK_REQUEST_TIMEOUT_MS", 30000)) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("ECHODESK_FFMPEG_COMMAND", "ffmpeg"),
			PlayerCommand:   envOrDefault("ECHODESK_FFPLAY_COMMAND", "ffplay"),
			InputFormat:     envOrDefault("ECHODESK_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("ECHODESK_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("ECHODESK_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("ECHODESK_CHANNELS", 1),
			ChunkInterval:   time.Duration(envOrDefaultInt("ECHODESK_CHUNK_INTERVAL_MS", 100)) * time.Millisecond,
		},
		History: HistoryConfig{
			Limit: envOrDefaultInt("ECHODESK_HISTORY_LIMIT", 100),
		},
		Log: LogConfig{
			Level: envOrDefault("ECHODESK_LOG_LEVEL", "info"),
		},
	}

	if cfg.Service.RetryLimit < 0 {
		cfg.Service.RetryLimit = 5
	}
	if cfg.Service.RetryDelay <= 0 {
		cfg.Service.RetryDelay = 5 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkInterval <= 0 {
		cfg.Audio.ChunkInterval = 100 * time.Millisecond
	}
	if cfg.History.Limit <= 0 {
		cfg.History.Limit = 100
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
