package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Browse   BrowseConfig   `mapstructure:"browse" yaml:"browse"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher" yaml:"fetcher"`
	Crawler  CrawlerConfig  `mapstructure:"crawler" yaml:"crawler"`
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer"`
	Search   SearchConfig   `mapstructure:"search" yaml:"search"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig tunes the webhook HTTP surface and the turn deadline.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// TurnDeadline is the wall-clock budget T for answering a turn before the
	// webhook escalates with a request for more time. The dialog platform
	// itself cuts fulfillment off at 5s, so this must stay below that.
	TurnDeadline    time.Duration `mapstructure:"turn_deadline" yaml:"turn_deadline"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowseConfig holds the navigation constants of the voice browsing session.
type BrowseConfig struct {
	// MenuPageSize is how many menu entries are offered per GetMenu turn.
	MenuPageSize int `mapstructure:"menu_page_size" yaml:"menu_page_size"`
	// ReadStep is how many sentences each ReadPage turn advances by.
	ReadStep int `mapstructure:"read_step" yaml:"read_step"`
	// HistoryFreshness bounds how old a history entry may be for GoBack to
	// trust it.
	HistoryFreshness time.Duration `mapstructure:"history_freshness" yaml:"history_freshness"`
}

// FetcherConfig tunes the page fetcher.
type FetcherConfig struct {
	RequestTimeout    time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors   bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// CrawlerConfig tunes the background link crawler.
type CrawlerConfig struct {
	MaxDepth       int           `mapstructure:"max_depth" yaml:"max_depth"`
	MaxPages       int           `mapstructure:"max_pages" yaml:"max_pages"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
	RequestsPerSec float64       `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AnalyzerConfig configures the text classification backend.
type AnalyzerConfig struct {
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	Endpoint   string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// SearchConfig configures the search-result resolver.
type SearchConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "voxsurf")
	v.SetDefault("logger.log_file", "voxsurf.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.turn_deadline", "4s")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// -- Browse --
	v.SetDefault("browse.menu_page_size", 10)
	v.SetDefault("browse.read_step", 2)
	v.SetDefault("browse.history_freshness", "5m")

	// -- Fetcher --
	v.SetDefault("fetcher.request_timeout", "30s")
	v.SetDefault("fetcher.navigation_timeout", "90s")
	v.SetDefault("fetcher.post_load_wait", "2s")
	v.SetDefault("fetcher.user_agent", "voxsurf/1.0")
	v.SetDefault("fetcher.headless", true)
	v.SetDefault("fetcher.ignore_tls_errors", false)

	// -- Crawler --
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.max_pages", 200)
	v.SetDefault("crawler.concurrency", 8)
	v.SetDefault("crawler.requests_per_sec", 4.0)
	v.SetDefault("crawler.timeout", "10m")

	// -- Analyzer --
	v.SetDefault("analyzer.model", "gemini-2.5-flash")
	v.SetDefault("analyzer.api_timeout", "20s")

	// -- Search --
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.timeout", "10s")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("analyzer.api_key", "VOXSURF_ANALYZER_API_KEY")
	v.BindEnv("database.url", "VOXSURF_DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Server.TurnDeadline <= 0 {
		return fmt.Errorf("server.turn_deadline must be a positive duration")
	}
	if c.Server.TurnDeadline >= 5*time.Second {
		return fmt.Errorf("server.turn_deadline must stay below the platform's 5s fulfillment cutoff")
	}
	if c.Browse.MenuPageSize <= 0 {
		return fmt.Errorf("browse.menu_page_size must be a positive integer")
	}
	if c.Browse.ReadStep <= 0 {
		return fmt.Errorf("browse.read_step must be a positive integer")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be a positive integer")
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must not be negative")
	}
	return nil
}
