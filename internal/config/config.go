package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrInvalidConfig is returned when the config file cannot be read or parsed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config stores runtime configuration for the listening engine and its adapters.
type Config struct {
	Deepgram  DeepgramConfig  `yaml:"deepgram"`
	Audio     AudioConfig     `yaml:"audio"`
	Engine    EngineConfig    `yaml:"engine"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type DeepgramConfig struct {
	APIKey      string `yaml:"api_key"`
	APIBaseURL  string `yaml:"api_base"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	SmartFormat bool   `yaml:"smart_format"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"recorder_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	ChunkSize       int    `yaml:"chunk_size"`
}

// EngineConfig tunes the continuity monitor's recovery policy.
type EngineConfig struct {
	SuppressionTTL      time.Duration `yaml:"suppression_ttl"`
	RestartTimeout      time.Duration `yaml:"restart_timeout"`
	RestartBackoffBase  time.Duration `yaml:"restart_backoff_base"`
	RestartBackoffMax   time.Duration `yaml:"restart_backoff_max"`
	MaxConsecutiveDrops int           `yaml:"max_consecutive_drops"`
	StableWindow        time.Duration `yaml:"stable_window"`
	SilenceTimeout      time.Duration `yaml:"silence_timeout"`
}

type TelemetryConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	SentryDSN   string `yaml:"sentry_dsn"`
	Environment string `yaml:"environment"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load resolves configuration from environment variables and sensible defaults, then
// overlays the YAML file named by STEADYMIC_CONFIG when set.
func Load() (Config, error) {
	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    strings.TrimSpace(os.Getenv("DEEPGRAM_LANGUAGE")),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("STEADYMIC_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("STEADYMIC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("STEADYMIC_AUDIO_INPUT_DEVICE"),
				os.Getenv("DEEPGRAM_PULSE_SOURCE"),
				"default",
			),
			SampleRate: envOrDefaultInt("STEADYMIC_SAMPLE_RATE", 16000),
			Channels:   envOrDefaultInt("STEADYMIC_CHANNELS", 1),
			ChunkSize:  envOrDefaultInt("STEADYMIC_AUDIO_CHUNK_SIZE", 4096),
		},
		Engine: EngineConfig{
			SuppressionTTL:      envOrDefaultMillis("STEADYMIC_SUPPRESSION_TTL_MS", 3*time.Second),
			RestartTimeout:      envOrDefaultMillis("STEADYMIC_RESTART_TIMEOUT_MS", 5*time.Second),
			RestartBackoffBase:  envOrDefaultMillis("STEADYMIC_RESTART_BACKOFF_MS", 500*time.Millisecond),
			RestartBackoffMax:   envOrDefaultMillis("STEADYMIC_RESTART_BACKOFF_MAX_MS", 3*time.Second),
			MaxConsecutiveDrops: envOrDefaultInt("STEADYMIC_MAX_CONSECUTIVE_DROPS", 10),
			StableWindow:        envOrDefaultMillis("STEADYMIC_STABLE_WINDOW_MS", 30*time.Second),
			SilenceTimeout:      envOrDefaultMillis("STEADYMIC_SILENCE_TIMEOUT_MS", 8*time.Second),
		},
		Telemetry: TelemetryConfig{
			ListenAddr:  envOrDefault("STEADYMIC_TELEMETRY_ADDR", "127.0.0.1:9464"),
			SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
			Environment: envOrDefault("STEADYMIC_ENV", "development"),
		},
		Logging: LoggingConfig{
			Level: envOrDefault("STEADYMIC_LOG_LEVEL", "info"),
		},
		Notify: NotifyConfig{
			Enabled: envOrDefaultBool("STEADYMIC_NOTIFY", false),
		},
	}

	if path := strings.TrimSpace(os.Getenv("STEADYMIC_CONFIG")); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.normalize()
	return cfg, nil
}

// overlayFile applies the keys present in a YAML file on top of cfg.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) normalize() {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.ChunkSize < 256 {
		c.Audio.ChunkSize = 4096
	}
	if c.Engine.SuppressionTTL <= 0 {
		c.Engine.SuppressionTTL = 3 * time.Second
	}
	if c.Engine.RestartTimeout <= 0 {
		c.Engine.RestartTimeout = 5 * time.Second
	}
	if c.Engine.RestartBackoffBase < 0 {
		c.Engine.RestartBackoffBase = 0
	}
	if c.Engine.RestartBackoffMax < c.Engine.RestartBackoffBase {
		c.Engine.RestartBackoffMax = c.Engine.RestartBackoffBase
	}
	if c.Engine.MaxConsecutiveDrops < 0 {
		c.Engine.MaxConsecutiveDrops = 0
	}
	if c.Engine.StableWindow <= 0 {
		c.Engine.StableWindow = 30 * time.Second
	}
	if c.Engine.SilenceTimeout < 0 {
		c.Engine.SilenceTimeout = 0
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
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

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envOrDefaultMillis reads a non-negative millisecond count.
func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}
