package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Crawl    CrawlConfig    `yaml:"crawl" mapstructure:"crawl"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CrawlConfig configures crawl pacing and batching.
type CrawlConfig struct {
	SubjectsFile   string `yaml:"subjects_file" mapstructure:"subjects_file"`
	SubjectDelayMS int    `yaml:"subject_delay_ms" mapstructure:"subject_delay_ms"`
	PageDelayMS    int    `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	BatchLimit     int    `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// FetchConfig configures the HTTP fetcher.
type FetchConfig struct {
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts  int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelayMS int    `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	MaxRedirects int    `yaml:"max_redirects" mapstructure:"max_redirects"`
}

// ScheduleConfig configures the re-crawl skip windows, in hours.
type ScheduleConfig struct {
	SuccessHours    int `yaml:"success_hours" mapstructure:"success_hours"`
	DNSFailureHours int `yaml:"dns_failure_hours" mapstructure:"dns_failure_hours"`
	ForbiddenHours  int `yaml:"forbidden_hours" mapstructure:"forbidden_hours"`
	OtherErrorHours int `yaml:"other_error_hours" mapstructure:"other_error_hours"`
}

// ServerConfig configures the diagnostics API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SubjectDelay returns the pacing gap between subjects.
func (c CrawlConfig) SubjectDelay() time.Duration {
	return time.Duration(c.SubjectDelayMS) * time.Millisecond
}

// PageDelay returns the pacing gap between a subject's sub-pages.
func (c CrawlConfig) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMS) * time.Millisecond
}

// Validate checks the configuration for a given run mode ("crawl" or
// "serve"). Shared settings are checked in every mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}

	switch mode {
	case "crawl":
		if c.Crawl.SubjectsFile == "" {
			problems = append(problems, "crawl.subjects_file is required")
		}
		if c.Crawl.SubjectDelayMS < 0 || c.Crawl.PageDelayMS < 0 {
			problems = append(problems, "crawl delays must be >= 0")
		}
		if c.Fetch.MaxAttempts < 1 || c.Fetch.MaxAttempts > 10 {
			problems = append(problems, "fetch.max_attempts must be between 1 and 10")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be a valid port")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STANCEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "stancewatch.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.subjects_file", "subjects.yaml")
	v.SetDefault("crawl.subject_delay_ms", 2000)
	v.SetDefault("crawl.page_delay_ms", 1000)
	v.SetDefault("crawl.batch_limit", 0)
	v.SetDefault("fetch.timeout_secs", 20)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_delay_ms", 1000)
	v.SetDefault("fetch.max_redirects", 5)
	v.SetDefault("schedule.success_hours", 168)
	v.SetDefault("schedule.dns_failure_hours", 720)
	v.SetDefault("schedule.forbidden_hours", 168)
	v.SetDefault("schedule.other_error_hours", 24)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
