package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/limaJavier/timetable-engine/pkg/generator"
	"github.com/spf13/viper"
)

const EnvPrefix = "TIMETABLE"

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       LogConfig        `mapstructure:"log"`
	Generator generator.Config `mapstructure:"generator"`
	Engine    EngineConfig     `mapstructure:"engine"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`           // gin mode: debug, release or test
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"` // Request bodies above this size are rejected
	Timeout      time.Duration `mapstructure:"timeout"`        // Wall-clock limit of a generation request
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// EngineConfig holds the knobs of the search that are not part of a generation request
type EngineConfig struct {
	Solver        string `mapstructure:"solver"`
	Workers       int    `mapstructure:"workers"`
	Seed          uint64 `mapstructure:"seed"` // Zero seeds from the clock
	SuggestionCap int    `mapstructure:"suggestion_cap"`
	HistoryLimit  int    `mapstructure:"history_limit"`
}

// Load reads the configuration from defaults, then the file and finally TIMETABLE_ environment variables;
// an empty path looks for config.yaml in ./config and the working directory
func Load(path string) (*Config, error) {
	v := viper.New()

	//** Defaults
	defaults := generator.DefaultConfig()
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_body_bytes", 4<<20)
	v.SetDefault("server.timeout", "2m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("generator.algorithm", string(defaults.Algorithm))
	v.SetDefault("generator.maxIterations", defaults.MaxIterations)
	v.SetDefault("generator.constraintWeightProfile", string(defaults.Profile))
	v.SetDefault("generator.qualityLevel", string(defaults.Quality))

	v.SetDefault("engine.solver", "gophersat")
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.seed", 0)
	v.SetDefault("engine.suggestion_cap", 5)
	v.SetDefault("engine.history_limit", 50)

	//** Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	//** Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must lie in 1-65535, got %d", c.Server.Port)
	}
	if !slices.Contains([]string{"debug", "release", "test"}, c.Server.Mode) {
		return fmt.Errorf("invalid config: server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("invalid config: server.max_body_bytes must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("invalid config: log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Engine.Workers <= 0 {
		return fmt.Errorf("invalid config: engine.workers must be positive, got %d", c.Engine.Workers)
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("invalid config: generator: %w", err)
	}
	return nil
}
