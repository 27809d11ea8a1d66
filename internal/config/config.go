package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MARKETSCOPE"

// Common holds settings shared by every command.
type Common struct {
	RPCURL    string
	Contracts map[string]string
	LogLevel  string
}

// ListenConfig holds configuration for the listen command.
type ListenConfig struct {
	Common
	Labels       []string
	PollInterval time.Duration
	PollRate     float64
	PollBurst    int
	Out          string
	PGDSN        string
	StatusAddr   string
}

// BackfillConfig holds configuration for the backfill command.
type BackfillConfig struct {
	Common
	Labels            []string
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	Out               string
	Errors            string
	Checkpoint        string
	CheckpointEnabled bool
	PGDSN             string
	MaxRetries        int
	RetryBackoff      time.Duration
	Timestamps        bool
}

// DecodeConfig holds configuration for the decode command.
type DecodeConfig struct {
	Common
	In     string
	Out    string
	Errors string
}

// PricesConfig holds configuration for the prices command.
type PricesConfig struct {
	Common
	In     string
	Market string
}

// LoadListen merges config file, environment variables, and flags into ListenConfig.
func LoadListen(cfgFile string, flags *pflag.FlagSet) (ListenConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"poll-interval": 500 * time.Millisecond,
		"poll-rate":     20.0,
		"poll-burst":    5,
		"out":           "./data/events.jsonl",
	})
	if err != nil {
		return ListenConfig{}, err
	}

	cfg := ListenConfig{
		Common:       common(v),
		Labels:       getStringSlice(v, "labels"),
		PollInterval: v.GetDuration("poll-interval"),
		PollRate:     v.GetFloat64("poll-rate"),
		PollBurst:    v.GetInt("poll-burst"),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		StatusAddr:   v.GetString("status-addr"),
	}
	if cfg.RPCURL == "" {
		return ListenConfig{}, fmt.Errorf("rpc is required")
	}
	if cfg.PollInterval <= 0 {
		return ListenConfig{}, fmt.Errorf("poll-interval must be positive")
	}
	return cfg, nil
}

// LoadBackfill merges config file, environment variables, and flags into BackfillConfig.
func LoadBackfill(cfgFile string, flags *pflag.FlagSet) (BackfillConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"out":                "./data/events.jsonl",
		"errors":             "./data/decode_errors.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
	})
	if err != nil {
		return BackfillConfig{}, err
	}

	cfg := BackfillConfig{
		Common:            common(v),
		Labels:            getStringSlice(v, "labels"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		PGDSN:             v.GetString("pg-dsn"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Timestamps:        v.GetBool("timestamps"),
	}
	if cfg.RPCURL == "" {
		return BackfillConfig{}, fmt.Errorf("rpc is required")
	}
	if cfg.ToBlock != 0 && cfg.ToBlock < cfg.FromBlock {
		return BackfillConfig{}, fmt.Errorf("to block %d is before from block %d", cfg.ToBlock, cfg.FromBlock)
	}
	return cfg, nil
}

// LoadDecode merges config file, environment variables, and flags into DecodeConfig.
func LoadDecode(cfgFile string, flags *pflag.FlagSet) (DecodeConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":    "./data/events.jsonl",
		"errors": "./data/decode_errors.jsonl",
	})
	if err != nil {
		return DecodeConfig{}, err
	}

	cfg := DecodeConfig{
		Common: common(v),
		In:     v.GetString("in"),
		Out:    v.GetString("out"),
		Errors: v.GetString("errors"),
	}
	if cfg.In == "" {
		return DecodeConfig{}, fmt.Errorf("in is required")
	}
	return cfg, nil
}

// LoadPrices merges config file, environment variables, and flags into PricesConfig.
func LoadPrices(cfgFile string, flags *pflag.FlagSet) (PricesConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"in": "./data/events.jsonl",
	})
	if err != nil {
		return PricesConfig{}, err
	}
	return PricesConfig{
		Common: common(v),
		In:     v.GetString("in"),
		Market: strings.ToLower(strings.TrimSpace(v.GetString("market"))),
	}, nil
}

func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("marketscope")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func common(v *viper.Viper) Common {
	return Common{
		RPCURL:    v.GetString("rpc"),
		Contracts: getStringMap(v, "contracts"),
		LogLevel:  v.GetString("log-level"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	switch typed := v.Get(key).(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, val := range typed {
			out[k] = fmt.Sprintf("%v", val)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// parseStringMap reads "Name=value,Other=value" pairs, skipping malformed ones.
func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(input, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
