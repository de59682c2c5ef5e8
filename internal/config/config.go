package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loqalabs/loqa-transcribe/internal/protocol"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	TraceEnabled bool   `yaml:"trace_enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type EngineConfig struct {
	Mode        string `yaml:"mode"` // vosk, whisper, exec, mock
	ModelPath   string `yaml:"model_path"`
	Language    string `yaml:"language"`
	Command     string `yaml:"command"`
	ChunkFrames int    `yaml:"chunk_frames"`
	Words       bool   `yaml:"words"`
}

type HistoryConfig struct {
	Path    string `yaml:"path"`
	MaxRuns int    `yaml:"max_runs"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Servers        []string `yaml:"servers"`
	Subject        string   `yaml:"subject"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type Config struct {
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Engine    EngineConfig    `yaml:"engine"`
	History   HistoryConfig   `yaml:"history"`
	Bus       BusConfig       `yaml:"bus"`
}

func Default() Config {
	return Config{
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPInsecure: true,
		},
		Engine: EngineConfig{
			Mode:        "vosk",
			ChunkFrames: 4000,
		},
		History: HistoryConfig{
			MaxRuns: 1000,
		},
		Bus: BusConfig{
			Servers:        []string{"nats://localhost:4222"},
			Subject:        protocol.SubjectTranscriptFinal,
			ConnectTimeout: 2000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.Telemetry.LogLevel, "LOQA_TRANSCRIBE_LOG_LEVEL")
	overrideBool(&cfg.Telemetry.TraceEnabled, "LOQA_TRANSCRIBE_TRACE_ENABLED")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQA_TRANSCRIBE_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQA_TRANSCRIBE_OTLP_INSECURE")
	overrideString(&cfg.Engine.Mode, "LOQA_TRANSCRIBE_ENGINE_MODE")
	overrideString(&cfg.Engine.ModelPath, "LOQA_TRANSCRIBE_MODEL_PATH")
	overrideString(&cfg.Engine.Language, "LOQA_TRANSCRIBE_LANGUAGE")
	overrideString(&cfg.Engine.Command, "LOQA_TRANSCRIBE_ENGINE_COMMAND")
	overrideInt(&cfg.Engine.ChunkFrames, "LOQA_TRANSCRIBE_CHUNK_FRAMES")
	overrideBool(&cfg.Engine.Words, "LOQA_TRANSCRIBE_WORDS")
	overrideString(&cfg.History.Path, "LOQA_TRANSCRIBE_HISTORY_PATH")
	overrideInt(&cfg.History.MaxRuns, "LOQA_TRANSCRIBE_HISTORY_MAX_RUNS")
	overrideBool(&cfg.Bus.Enabled, "LOQA_TRANSCRIBE_BUS_ENABLED")
	overrideStringSlice(&cfg.Bus.Servers, "LOQA_TRANSCRIBE_BUS_SERVERS")
	overrideString(&cfg.Bus.Subject, "LOQA_TRANSCRIBE_BUS_SUBJECT")
	overrideString(&cfg.Bus.Username, "LOQA_TRANSCRIBE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQA_TRANSCRIBE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQA_TRANSCRIBE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LOQA_TRANSCRIBE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQA_TRANSCRIBE_BUS_CONNECT_TIMEOUT_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Engine.Mode {
	case "vosk", "whisper", "exec", "mock":
		// ok
	default:
		return errors.New("engine.mode must be one of vosk|whisper|exec|mock")
	}
	if cfg.Engine.Mode == "exec" && cfg.Engine.Command == "" {
		return errors.New("engine.command must be set when mode=exec")
	}
	if cfg.Engine.ChunkFrames <= 0 {
		return errors.New("engine.chunk_frames must be positive")
	}
	if cfg.History.MaxRuns < 0 {
		return errors.New("history.max_runs must be >= 0")
	}
	if cfg.Bus.Enabled {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when bus publishing is enabled")
		}
		if cfg.Bus.Subject == "" {
			return errors.New("bus.subject must not be empty when bus publishing is enabled")
		}
	}
	return nil
}
