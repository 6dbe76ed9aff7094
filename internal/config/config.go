package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the server and CLI.
// Priority: environment variables > config file > defaults.
type Config struct {
	Port         int      `yaml:"port"`
	DataPath     string   `yaml:"data_path"`
	AudioPath    string   `yaml:"audio_path"`    // media store root
	RegistryPath string   `yaml:"registry_path"` // downloads.json
	DBPath       string   `yaml:"db_path"`       // job state
	CORSOrigins  []string `yaml:"cors_origins"`

	AudioFormat  string `yaml:"audio_format"`
	AudioQuality string `yaml:"audio_quality"`
	YtDlpBin     string `yaml:"ytdlp_bin"`
	FFmpegBin    string `yaml:"ffmpeg_bin"`
	FFprobeBin   string `yaml:"ffprobe_bin"`

	TranscribeEngine string `yaml:"transcribe_engine"` // whisper-cli, whisper.cpp, openai
	WhisperBin       string `yaml:"whisper_bin"`
	WhisperServerURL string `yaml:"whisper_server_url"`
	OpenAIAPIKey     string `yaml:"openai_api_key"`
	DefaultModel     string `yaml:"default_model"`

	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"` // json or text
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	// Edits post the whole word-level transcript, roughly 0.6 MB per hour of speech.
	MaxEditBodyBytes int64 `yaml:"max_edit_body_bytes"`
	RateLimit        int   `yaml:"rate_limit"` // requests per minute per IP, 0 disables
}

// DefaultMaxEditBodyBytes covers transcripts of well over a day of audio.
const DefaultMaxEditBodyBytes = 32 << 20

// Default models per engine. The OpenAI API rejects local whisper model names.
const (
	LocalDefaultModel  = "base"
	OpenAIDefaultModel = "whisper-1"
)

func defaults() *Config {
	return &Config{
		Port:             8000,
		DataPath:         ".",
		CORSOrigins:      []string{"*"},
		AudioFormat:      "wav",
		AudioQuality:     "192K",
		YtDlpBin:         "yt-dlp",
		FFmpegBin:        "ffmpeg",
		FFprobeBin:       "ffprobe",
		TranscribeEngine: "whisper-cli",
		WhisperBin:       "whisper",
		LogLevel:         "info",
		LogFormat:        "text",
		MaxBodyBytes:     1 << 20,
		MaxEditBodyBytes: DefaultMaxEditBodyBytes,
		RateLimit:        0,
	}
}

// Load reads the file named by CONFIG_FILE, if any, then applies the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit config file path; empty skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.AudioPath == "" {
		cfg.AudioPath = filepath.Join(cfg.DataPath, "audio")
	}
	if cfg.RegistryPath == "" {
		cfg.RegistryPath = filepath.Join(cfg.DataPath, "downloads.json")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataPath, "scribe.db")
	}
	cfg.AudioFormat = strings.TrimPrefix(cfg.AudioFormat, ".")
	cfg.AudioQuality = normalizeQuality(cfg.AudioQuality)
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = LocalDefaultModel
		if cfg.TranscribeEngine == "openai" {
			cfg.DefaultModel = OpenAIDefaultModel
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var err error
	if c.Port, err = getEnvInt("PORT", c.Port); err != nil {
		return err
	}
	c.DataPath = getEnv("DATA_PATH", c.DataPath)
	c.AudioPath = getEnv("AUDIO_PATH", c.AudioPath)
	c.RegistryPath = getEnv("REGISTRY_PATH", c.RegistryPath)
	c.DBPath = getEnv("DB_PATH", c.DBPath)

	// CORS origins: comma-separated list or "*"
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	c.AudioFormat = getEnv("AUDIO_FORMAT", c.AudioFormat)
	c.AudioQuality = getEnv("AUDIO_QUALITY", c.AudioQuality)
	c.YtDlpBin = getEnv("YTDLP_BIN", c.YtDlpBin)
	c.FFmpegBin = getEnv("FFMPEG_BIN", c.FFmpegBin)
	c.FFprobeBin = getEnv("FFPROBE_BIN", c.FFprobeBin)

	c.TranscribeEngine = getEnv("TRANSCRIBE_ENGINE", c.TranscribeEngine)
	c.WhisperBin = getEnv("WHISPER_BIN", c.WhisperBin)
	c.WhisperServerURL = getEnv("WHISPER_SERVER_URL", c.WhisperServerURL)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.DefaultModel = getEnv("DEFAULT_MODEL", c.DefaultModel)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	maxBody, err := getEnvInt("MAX_BODY_BYTES", int(c.MaxBodyBytes))
	if err != nil {
		return err
	}
	c.MaxBodyBytes = int64(maxBody)

	maxEdit, err := getEnvInt("MAX_EDIT_BODY_BYTES", int(c.MaxEditBodyBytes))
	if err != nil {
		return err
	}
	c.MaxEditBodyBytes = int64(maxEdit)

	if c.RateLimit, err = getEnvInt("RATE_LIMIT", c.RateLimit); err != nil {
		return err
	}
	return nil
}

// Validate checks the values the server cannot run without.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.AudioFormat == "" {
		return fmt.Errorf("audio format is required")
	}
	switch c.TranscribeEngine {
	case "whisper-cli":
	case "whisper.cpp":
		if c.WhisperServerURL == "" {
			return fmt.Errorf("WHISPER_SERVER_URL is required for the whisper.cpp engine")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai engine")
		}
	default:
		return fmt.Errorf("unknown transcribe engine: %s", c.TranscribeEngine)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.MaxEditBodyBytes < c.MaxBodyBytes {
		return fmt.Errorf("max edit body bytes must be at least max body bytes")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

// normalizeQuality turns a bare bitrate such as "192" into yt-dlp's "192K".
// VBR levels 0-9 pass through unchanged.
func normalizeQuality(q string) string {
	q = strings.TrimSpace(q)
	n, err := strconv.Atoi(q)
	if err != nil || n <= 9 {
		return q
	}
	return q + "K"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
