// Package config handles configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/diogo/perplexity-web-api-go/pkg/client"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configDirName  = ".perplexity-cli"
	configFileName = "config"
	configFileType = "json"
	envPrefix      = "PERPLEXITY"
)

// Keys lists every settable configuration key.
var Keys = []string{
	"default_mode",
	"default_model",
	"default_language",
	"default_sources",
	"streaming",
	"incognito",
	"cookie_file",
	"history_file",
	"threads_file",
	"log_level",
	"log_format",
	"timeouts.session",
	"timeouts.query",
	"timeouts.upload",
	"timeouts.storage",
}

// ErrUnknownKey is returned by Set for keys not in Keys.
var ErrUnknownKey = errors.New("unknown configuration key")

// TimeoutConfig holds per-leg timeouts in seconds.
type TimeoutConfig struct {
	Session int `mapstructure:"session"`
	Query   int `mapstructure:"query"`
	Upload  int `mapstructure:"upload"`
	Storage int `mapstructure:"storage"`
}

// Client converts the timeouts for the API client. Zero values fall back
// to client.DefaultTimeout there.
func (t TimeoutConfig) Client() client.Timeouts {
	sec := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return client.Timeouts{
		Session:           sec(t.Session),
		Query:             sec(t.Query),
		UploadNegotiation: sec(t.Upload),
		StorageTransfer:   sec(t.Storage),
	}
}

// Config holds all configuration options.
type Config struct {
	DefaultMode     models.Mode     `mapstructure:"default_mode"`
	DefaultModel    models.Model    `mapstructure:"default_model"`
	DefaultLanguage string          `mapstructure:"default_language"`
	DefaultSources  []models.Source `mapstructure:"default_sources"`
	Streaming       bool            `mapstructure:"streaming"`
	Incognito       bool            `mapstructure:"incognito"`
	CookieFile      string          `mapstructure:"cookie_file"`
	HistoryFile     string          `mapstructure:"history_file"`
	ThreadsFile     string          `mapstructure:"threads_file"`
	LogLevel        string          `mapstructure:"log_level"`
	LogFormat       string          `mapstructure:"log_format"`
	Timeouts        TimeoutConfig   `mapstructure:"timeouts"`
}

// Manager handles configuration loading and saving.
type Manager struct {
	v       *viper.Viper
	cfgDir  string
	cfgFile string
}

// NewManager creates a manager rooted at ~/.perplexity-cli.
func NewManager() (*Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewManagerAt(filepath.Join(home, configDirName)), nil
}

// NewManagerAt creates a manager that keeps its files in dir.
func NewManagerAt(dir string) *Manager {
	m := &Manager{
		v:       viper.New(),
		cfgDir:  dir,
		cfgFile: filepath.Join(dir, configFileName+"."+configFileType),
	}

	m.setDefaults()

	m.v.SetConfigName(configFileName)
	m.v.SetConfigType(configFileType)
	m.v.AddConfigPath(dir)

	// PERPLEXITY_DEFAULT_MODE, PERPLEXITY_TIMEOUTS_QUERY, ...
	m.v.SetEnvPrefix(envPrefix)
	m.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.v.AutomaticEnv()

	return m
}

func (m *Manager) setDefaults() {
	m.v.SetDefault("default_mode", string(models.ModeAuto))
	m.v.SetDefault("default_model", string(models.ModelDefault))
	m.v.SetDefault("default_language", "en-US")
	m.v.SetDefault("default_sources", []string{string(models.SourceWeb)})
	m.v.SetDefault("streaming", true)
	m.v.SetDefault("incognito", false)
	m.v.SetDefault("cookie_file", filepath.Join(m.cfgDir, "cookies.json"))
	m.v.SetDefault("history_file", filepath.Join(m.cfgDir, "history.jsonl"))
	m.v.SetDefault("threads_file", filepath.Join(m.cfgDir, "threads.db"))
	m.v.SetDefault("log_level", "warn")
	m.v.SetDefault("log_format", "console")

	defaultSeconds := int(client.DefaultTimeout / time.Second)
	for _, key := range []string{"timeouts.session", "timeouts.query", "timeouts.upload", "timeouts.storage"} {
		m.v.SetDefault(key, defaultSeconds)
	}
}

// Load reads .env files, the config file and the environment, in
// increasing order of precedence.
func (m *Manager) Load() (*Config, error) {
	// missing .env files are fine
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(m.cfgDir, ".env"))

	if err := os.MkdirAll(m.cfgDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := m.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := m.current()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration, ignoring config files and
// the environment.
func (m *Manager) Defaults() *Config {
	d := &Manager{v: viper.New(), cfgDir: m.cfgDir, cfgFile: m.cfgFile}
	d.setDefaults()
	return d.current()
}

func (m *Manager) current() *Config {
	return &Config{
		DefaultMode:     models.Mode(m.v.GetString("default_mode")),
		DefaultModel:    models.Model(m.v.GetString("default_model")),
		DefaultLanguage: m.v.GetString("default_language"),
		DefaultSources:  parseSources(m.stringList("default_sources")),
		Streaming:       m.v.GetBool("streaming"),
		Incognito:       m.v.GetBool("incognito"),
		CookieFile:      m.v.GetString("cookie_file"),
		HistoryFile:     m.v.GetString("history_file"),
		ThreadsFile:     m.v.GetString("threads_file"),
		LogLevel:        m.v.GetString("log_level"),
		LogFormat:       m.v.GetString("log_format"),
		Timeouts: TimeoutConfig{
			Session: m.v.GetInt("timeouts.session"),
			Query:   m.v.GetInt("timeouts.query"),
			Upload:  m.v.GetInt("timeouts.upload"),
			Storage: m.v.GetInt("timeouts.storage"),
		},
	}
}

// stringList reads a list value that may also arrive as a comma separated
// string from the environment.
func (m *Manager) stringList(key string) []string {
	raw := m.v.GetStringSlice(key)
	if len(raw) == 1 && strings.Contains(raw[0], ",") {
		return strings.Split(raw[0], ",")
	}
	return raw
}

// Save writes configuration to file.
func (m *Manager) Save(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(m.cfgDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	sources := make([]string, len(cfg.DefaultSources))
	for i, s := range cfg.DefaultSources {
		sources[i] = string(s)
	}

	m.v.Set("default_mode", string(cfg.DefaultMode))
	m.v.Set("default_model", string(cfg.DefaultModel))
	m.v.Set("default_language", cfg.DefaultLanguage)
	m.v.Set("default_sources", sources)
	m.v.Set("streaming", cfg.Streaming)
	m.v.Set("incognito", cfg.Incognito)
	m.v.Set("cookie_file", cfg.CookieFile)
	m.v.Set("history_file", cfg.HistoryFile)
	m.v.Set("threads_file", cfg.ThreadsFile)
	m.v.Set("log_level", cfg.LogLevel)
	m.v.Set("log_format", cfg.LogFormat)
	m.v.Set("timeouts.session", cfg.Timeouts.Session)
	m.v.Set("timeouts.query", cfg.Timeouts.Query)
	m.v.Set("timeouts.upload", cfg.Timeouts.Upload)
	m.v.Set("timeouts.storage", cfg.Timeouts.Storage)

	return m.v.WriteConfigAs(m.cfgFile)
}

// Set updates one key on cfg from its string form.
func Set(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "default_mode":
		cfg.DefaultMode = models.Mode(value)
	case "default_model":
		cfg.DefaultModel = models.Model(value)
	case "default_language":
		cfg.DefaultLanguage = value
	case "default_sources":
		cfg.DefaultSources = parseSources(strings.Split(value, ","))
	case "streaming":
		cfg.Streaming = ParseBoolean(value, cfg.Streaming)
	case "incognito":
		cfg.Incognito = ParseBoolean(value, cfg.Incognito)
	case "cookie_file":
		cfg.CookieFile = value
	case "history_file":
		cfg.HistoryFile = value
	case "threads_file":
		cfg.ThreadsFile = value
	case "log_level":
		cfg.LogLevel = value
	case "log_format":
		cfg.LogFormat = value
	case "timeouts.session":
		cfg.Timeouts.Session, err = parseSeconds(value)
	case "timeouts.query":
		cfg.Timeouts.Query, err = parseSeconds(value)
	case "timeouts.upload":
		cfg.Timeouts.Upload, err = parseSeconds(value)
	case "timeouts.storage":
		cfg.Timeouts.Storage, err = parseSeconds(value)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return Validate(cfg)
}

// Get returns the string form of one key, as accepted by Set.
func Get(cfg *Config, key string) (string, error) {
	switch key {
	case "default_mode":
		return string(cfg.DefaultMode), nil
	case "default_model":
		return string(cfg.DefaultModel), nil
	case "default_language":
		return cfg.DefaultLanguage, nil
	case "default_sources":
		sources := make([]string, len(cfg.DefaultSources))
		for i, s := range cfg.DefaultSources {
			sources[i] = string(s)
		}
		return strings.Join(sources, ","), nil
	case "streaming":
		return strconv.FormatBool(cfg.Streaming), nil
	case "incognito":
		return strconv.FormatBool(cfg.Incognito), nil
	case "cookie_file":
		return cfg.CookieFile, nil
	case "history_file":
		return cfg.HistoryFile, nil
	case "threads_file":
		return cfg.ThreadsFile, nil
	case "log_level":
		return cfg.LogLevel, nil
	case "log_format":
		return cfg.LogFormat, nil
	case "timeouts.session":
		return strconv.Itoa(cfg.Timeouts.Session), nil
	case "timeouts.query":
		return strconv.Itoa(cfg.Timeouts.Query), nil
	case "timeouts.upload":
		return strconv.Itoa(cfg.Timeouts.Upload), nil
	case "timeouts.storage":
		return strconv.Itoa(cfg.Timeouts.Storage), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

func parseSeconds(value string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d", &n); err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative timeout %d", n)
	}
	return n, nil
}

// Validate checks configuration values. The default model must be legal
// for the default mode.
func Validate(cfg *Config) error {
	if cfg.DefaultMode != "" && !models.IsValidMode(cfg.DefaultMode) {
		return fmt.Errorf("invalid mode: %s", cfg.DefaultMode)
	}

	mode := cfg.DefaultMode
	if mode == "" {
		mode = models.ModeAuto
	}
	if _, err := models.ResolveModel(mode, cfg.DefaultModel); err != nil {
		return fmt.Errorf("invalid default model: %w", err)
	}

	if cfg.DefaultLanguage != "" && !isValidLanguage(cfg.DefaultLanguage) {
		return fmt.Errorf("invalid language format: %s (expected xx-XX)", cfg.DefaultLanguage)
	}

	for _, s := range cfg.DefaultSources {
		if !models.IsValidSource(s) {
			return fmt.Errorf("invalid source: %s", s)
		}
	}

	switch cfg.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s (expected console or json)", cfg.LogFormat)
	}

	return nil
}

// GetConfigDir returns the configuration directory path.
func (m *Manager) GetConfigDir() string {
	return m.cfgDir
}

// GetConfigFile returns the configuration file path.
func (m *Manager) GetConfigFile() string {
	return m.cfgFile
}

// parseSources keeps valid sources in order, without duplicates, and
// falls back to web.
func parseSources(raw []string) []models.Source {
	sources := make([]models.Source, 0, len(raw))
	seen := make(map[models.Source]bool)

	for _, s := range raw {
		source := models.Source(strings.TrimSpace(s))
		if models.IsValidSource(source) && !seen[source] {
			sources = append(sources, source)
			seen[source] = true
		}
	}

	if len(sources) == 0 {
		return []models.Source{models.SourceWeb}
	}
	return sources
}

var languageRegex = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

func isValidLanguage(lang string) bool {
	return languageRegex.MatchString(lang)
}

// ParseBoolean parses boolean strings (true, false, 1, 0, yes, no, on, off).
func ParseBoolean(value string, defaultValue bool) bool {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}
