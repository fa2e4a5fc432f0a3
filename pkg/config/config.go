package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBookID is the book scraped when none is given on the command line
const DefaultBookID = "1035420986"

// Config holds all configuration options for the review scraper
type Config struct {
	// Upstream site settings
	Qidian QidianConfig `yaml:"qidian" json:"qidian"`

	// Credential acquisition browser
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// HTTP request settings
	Request RequestConfig `yaml:"request" json:"request"`

	// Pauses between requests
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Original paragraph text capture
	Content ContentConfig `yaml:"content" json:"content"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Run metrics
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// QidianConfig holds site-specific configuration
type QidianConfig struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// ExpiredCodes are envelope codes that mean the credentials were rejected
	ExpiredCodes []int    `yaml:"expired_codes" json:"expired_codes"`
	Referers     []string `yaml:"referers" json:"referers"`
	PageSize     int      `yaml:"page_size" json:"page_size"`
}

// BrowserConfig holds settings for the credential acquisition browser
type BrowserConfig struct {
	ExecPath       string        `yaml:"exec_path" json:"exec_path"`
	HeadlessSettle time.Duration `yaml:"headless_settle" json:"headless_settle"`
	RetryPause     time.Duration `yaml:"retry_pause" json:"retry_pause"`
	RetrySettle    time.Duration `yaml:"retry_settle" json:"retry_settle"`
	PollInterval   time.Duration `yaml:"poll_interval" json:"poll_interval"`
	VisibleTimeout time.Duration `yaml:"visible_timeout" json:"visible_timeout"`
	// NavigateTimeout bounds a single page load
	NavigateTimeout time.Duration `yaml:"navigate_timeout" json:"navigate_timeout"`
}

// RequestConfig holds HTTP request configuration
type RequestConfig struct {
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PacingConfig holds the fixed pauses of a run
type PacingConfig struct {
	SegmentPause    time.Duration `yaml:"segment_pause" json:"segment_pause"`
	ChapterPause    time.Duration `yaml:"chapter_pause" json:"chapter_pause"`
	NetworkCooldown time.Duration `yaml:"network_cooldown" json:"network_cooldown"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// ContentConfig controls original paragraph text enrichment
type ContentConfig struct {
	CaptureOriginalText bool `yaml:"capture_original_text" json:"capture_original_text"`
	BrowserFallback     bool `yaml:"browser_fallback" json:"browser_fallback"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// MetricsConfig holds run metrics configuration. An empty TextfilePath
// disables the metrics file.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" json:"textfile_path"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Qidian: QidianConfig{
			BaseURL:      "https://www.qidian.com",
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ExpiredCodes: []int{-1, 1001, 1002},
			Referers: []string{
				"https://www.google.com",
				"https://www.qidian.com",
				"https://www.bing.com",
			},
			PageSize: 20,
		},
		Browser: BrowserConfig{
			HeadlessSettle:  3 * time.Second,
			RetryPause:      2 * time.Second,
			RetrySettle:     5 * time.Second,
			PollInterval:    2 * time.Second,
			VisibleTimeout:  120 * time.Second,
			NavigateTimeout: 60 * time.Second,
		},
		Request: RequestConfig{
			Timeout: 15 * time.Second,
		},
		Pacing: PacingConfig{
			SegmentPause:    300 * time.Millisecond,
			ChapterPause:    500 * time.Millisecond,
			NetworkCooldown: 30 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: filepath.Join("data", "qidianBookReviews"),
		},
		Content: ContentConfig{
			CaptureOriginalText: true,
			BrowserFallback:     true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   false,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if baseURL := os.Getenv("QDREVIEWS_BASE_URL"); baseURL != "" {
		c.Qidian.BaseURL = baseURL
	}
	if userAgent := os.Getenv("QDREVIEWS_USER_AGENT"); userAgent != "" {
		c.Qidian.UserAgent = userAgent
	}
	if execPath := os.Getenv("QDREVIEWS_CHROME_PATH"); execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if outputDir := os.Getenv("QDREVIEWS_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}

	if timeout := os.Getenv("QDREVIEWS_REQUEST_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			errs = append(errs, fmt.Errorf("QDREVIEWS_REQUEST_TIMEOUT: %w", err))
		} else {
			c.Request.Timeout = d
		}
	}
	if wait := os.Getenv("QDREVIEWS_VISIBLE_TIMEOUT"); wait != "" {
		d, err := time.ParseDuration(wait)
		if err != nil {
			errs = append(errs, fmt.Errorf("QDREVIEWS_VISIBLE_TIMEOUT: %w", err))
		} else {
			c.Browser.VisibleTimeout = d
		}
	}

	if capture := os.Getenv("QDREVIEWS_CAPTURE_TEXT"); capture != "" {
		v, err := strconv.ParseBool(capture)
		if err != nil {
			errs = append(errs, fmt.Errorf("QDREVIEWS_CAPTURE_TEXT: %w", err))
		} else {
			c.Content.CaptureOriginalText = v
		}
	}

	if logLevel := os.Getenv("QDREVIEWS_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("QDREVIEWS_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}
	if metricsPath := os.Getenv("QDREVIEWS_METRICS_FILE"); metricsPath != "" {
		c.Metrics.TextfilePath = metricsPath
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// SearchLocations lists the config files tried, in order, when no path is given
func SearchLocations() []string {
	return []string{
		".qdreviews.yaml",
		".qdreviews.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "qdreviews", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "qdreviews", "config.yml"),
	}
}

// findConfigFile returns the first existing search location
func (c *Config) findConfigFile() string {
	for _, loc := range SearchLocations() {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Qidian.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if c.Qidian.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if len(c.Qidian.Referers) == 0 {
		errs = append(errs, errors.New("at least one referer is required"))
	}
	if c.Qidian.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}

	if c.Browser.PollInterval <= 0 {
		errs = append(errs, errors.New("browser poll interval must be positive"))
	}
	if c.Browser.VisibleTimeout < c.Browser.PollInterval {
		errs = append(errs, errors.New("visible browser timeout must be at least one poll interval"))
	}
	if c.Browser.HeadlessSettle < 0 || c.Browser.RetrySettle < 0 || c.Browser.RetryPause < 0 {
		errs = append(errs, errors.New("browser settle times cannot be negative"))
	}

	if c.Request.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Pacing.SegmentPause < 0 || c.Pacing.ChapterPause < 0 || c.Pacing.NetworkCooldown < 0 {
		errs = append(errs, errors.New("pauses cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if debug, ok := flags["debug"].(bool); ok && debug {
		c.Logging.Level = "debug"
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".qdreviews.env"))

	config := DefaultConfig()

	if configPath == "" {
		configPath = os.Getenv("QDREVIEWS_CONFIG")
	}
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
