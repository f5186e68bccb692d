package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName   string              `yaml:"runtime_name"`
	Environment   string              `yaml:"environment"`
	HTTP          HTTPConfig          `yaml:"http"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Bus           BusConfig           `yaml:"bus"`
	ProgressStore ProgressStoreConfig `yaml:"progress_store"`
	Speech        SpeechConfig        `yaml:"speech"`
	Letters       GameConfig          `yaml:"letters"`
	Animals       GameConfig          `yaml:"animals"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type ProgressStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type SpeechConfig struct {
	Mode           string `yaml:"mode"` // mock, exec
	Command        string `yaml:"command"`
	Language       string `yaml:"language"`
	MaxUtteranceMS int    `yaml:"max_utterance_ms"`
	PostSilenceMS  int    `yaml:"post_silence_ms"`
}

// GameConfig tunes one game mode. Exactly one of win_count and
// win_percent decides the winning threshold: win_count when positive,
// otherwise win_percent of the round length, rounded up.
type GameConfig struct {
	Enabled             bool    `yaml:"enabled"`
	RoundLength         int     `yaml:"round_length"`
	MaxAttempts         int     `yaml:"max_attempts"`
	WinCount            int     `yaml:"win_count"`
	WinPercent          float64 `yaml:"win_percent"`
	UnlockPolicy        string  `yaml:"unlock_policy"` // none, immediate, streak
	MinCorrectForUnlock int     `yaml:"min_correct_for_unlock"`
	WatchdogMS          int     `yaml:"watchdog_ms"`
	EngineResetBudget   int     `yaml:"engine_reset_budget"`
	FreeRetryBudget     int     `yaml:"free_retry_budget"`
	AutoAdvanceDelayMS  int     `yaml:"auto_advance_delay_ms"`
}

// WinThreshold resolves the configured threshold against the round
// length.
func (g GameConfig) WinThreshold() int {
	if g.WinCount > 0 {
		return g.WinCount
	}
	threshold := int(g.WinPercent * float64(g.RoundLength))
	if g.WinPercent*float64(g.RoundLength) > float64(threshold) {
		threshold++
	}
	return threshold
}

func Default() Config {
	return Config{
		RuntimeName: "littletalk-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		ProgressStore: ProgressStoreConfig{
			Path:          "./data/littletalk-progress.db",
			RetentionMode: "persistent",
		},
		Speech: SpeechConfig{
			Mode:           "mock",
			Language:       "en-US",
			MaxUtteranceMS: 6000,
			PostSilenceMS:  1200,
		},
		Letters: GameConfig{
			Enabled:            true,
			RoundLength:        10,
			MaxAttempts:        2,
			WinCount:           8,
			UnlockPolicy:       "none",
			WatchdogMS:         8000,
			EngineResetBudget:  1,
			FreeRetryBudget:    2,
			AutoAdvanceDelayMS: 300,
		},
		Animals: GameConfig{
			Enabled:             true,
			RoundLength:         6,
			MaxAttempts:         2,
			WinPercent:          0.8,
			UnlockPolicy:        "streak",
			MinCorrectForUnlock: 5,
			WatchdogMS:          10000,
			EngineResetBudget:   1,
			FreeRetryBudget:     2,
			AutoAdvanceDelayMS:  300,
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
	overrideString(&cfg.RuntimeName, "LITTLETALK_RUNTIME_NAME")
	overrideString(&cfg.Environment, "LITTLETALK_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LITTLETALK_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LITTLETALK_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LITTLETALK_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LITTLETALK_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LITTLETALK_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "LITTLETALK_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "LITTLETALK_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LITTLETALK_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LITTLETALK_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LITTLETALK_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LITTLETALK_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LITTLETALK_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "LITTLETALK_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "LITTLETALK_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.ProgressStore.Path, "LITTLETALK_PROGRESS_STORE_PATH")
	overrideString(&cfg.ProgressStore.RetentionMode, "LITTLETALK_PROGRESS_STORE_RETENTION_MODE")
	overrideBool(&cfg.ProgressStore.VacuumOnStart, "LITTLETALK_PROGRESS_STORE_VACUUM_ON_START")
	overrideString(&cfg.Speech.Mode, "LITTLETALK_SPEECH_MODE")
	overrideString(&cfg.Speech.Command, "LITTLETALK_SPEECH_COMMAND")
	overrideString(&cfg.Speech.Language, "LITTLETALK_SPEECH_LANGUAGE")
	overrideInt(&cfg.Speech.MaxUtteranceMS, "LITTLETALK_SPEECH_MAX_UTTERANCE_MS")
	overrideInt(&cfg.Speech.PostSilenceMS, "LITTLETALK_SPEECH_POST_SILENCE_MS")
	overrideGame(&cfg.Letters, "LITTLETALK_LETTERS")
	overrideGame(&cfg.Animals, "LITTLETALK_ANIMALS")
}

func overrideGame(g *GameConfig, prefix string) {
	overrideBool(&g.Enabled, prefix+"_ENABLED")
	overrideInt(&g.RoundLength, prefix+"_ROUND_LENGTH")
	overrideInt(&g.MaxAttempts, prefix+"_MAX_ATTEMPTS")
	overrideInt(&g.WinCount, prefix+"_WIN_COUNT")
	overrideFloat(&g.WinPercent, prefix+"_WIN_PERCENT")
	overrideString(&g.UnlockPolicy, prefix+"_UNLOCK_POLICY")
	overrideInt(&g.MinCorrectForUnlock, prefix+"_MIN_CORRECT_FOR_UNLOCK")
	overrideInt(&g.WatchdogMS, prefix+"_WATCHDOG_MS")
	overrideInt(&g.EngineResetBudget, prefix+"_ENGINE_RESET_BUDGET")
	overrideInt(&g.FreeRetryBudget, prefix+"_FREE_RETRY_BUDGET")
	overrideInt(&g.AutoAdvanceDelayMS, prefix+"_AUTO_ADVANCE_DELAY_MS")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.ProgressStore.Path == "" {
		return errors.New("progress_store.path must not be empty")
	}
	switch cfg.ProgressStore.RetentionMode {
	case "ephemeral", "persistent":
		// ok
	default:
		return errors.New("progress_store.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Speech.Mode {
	case "mock", "exec":
	default:
		return errors.New("speech.mode must be one of mock|exec")
	}
	if cfg.Speech.Mode == "exec" && cfg.Speech.Command == "" {
		return errors.New("speech.command must be set when mode=exec")
	}
	if cfg.Speech.MaxUtteranceMS <= 0 {
		return errors.New("speech.max_utterance_ms must be positive")
	}
	if err := validateGame("letters", cfg.Letters); err != nil {
		return err
	}
	return validateGame("animals", cfg.Animals)
}

func validateGame(name string, g GameConfig) error {
	if !g.Enabled {
		return nil
	}
	if g.RoundLength <= 0 {
		return fmt.Errorf("%s.round_length must be positive", name)
	}
	if g.MaxAttempts <= 0 {
		return fmt.Errorf("%s.max_attempts must be positive", name)
	}
	if g.WinCount < 0 {
		return fmt.Errorf("%s.win_count must be >= 0", name)
	}
	if g.WinCount == 0 && (g.WinPercent <= 0 || g.WinPercent > 1) {
		return fmt.Errorf("%s.win_percent must be in (0, 1] when win_count is unset", name)
	}
	if g.WinCount > g.RoundLength {
		return fmt.Errorf("%s.win_count must not exceed round_length", name)
	}
	switch g.UnlockPolicy {
	case "none", "immediate", "streak":
	default:
		return fmt.Errorf("%s.unlock_policy must be one of none|immediate|streak", name)
	}
	if g.UnlockPolicy == "streak" && g.MinCorrectForUnlock <= 0 {
		return fmt.Errorf("%s.min_correct_for_unlock must be positive for the streak policy", name)
	}
	if g.WatchdogMS <= 0 {
		return fmt.Errorf("%s.watchdog_ms must be positive", name)
	}
	if g.EngineResetBudget < 0 {
		return fmt.Errorf("%s.engine_reset_budget must be >= 0", name)
	}
	if g.FreeRetryBudget < 0 {
		return fmt.Errorf("%s.free_retry_budget must be >= 0", name)
	}
	return nil
}
