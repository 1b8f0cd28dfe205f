package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/diogo/perplexity-web-api-go/pkg/client"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
)

func TestParseBoolean(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true lowercase", "true", false, true},
		{"TRUE uppercase", "TRUE", false, true},
		{"1", "1", false, true},
		{"yes", "yes", false, true},
		{"on", "on", false, true},
		{"false lowercase", "false", true, false},
		{"0", "0", true, false},
		{"no", "no", true, false},
		{"off", "off", true, false},
		{"invalid with default true", "invalid", true, true},
		{"invalid with default false", "invalid", false, false},
		{"empty with default true", "", true, true},
		{"whitespace", "  true  ", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBoolean(tt.value, tt.defaultValue)
			if got != tt.want {
				t.Errorf("ParseBoolean(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestIsValidLanguage(t *testing.T) {
	tests := []struct {
		lang string
		want bool
	}{
		{"en-US", true},
		{"pt-BR", true},
		{"en_US", false},
		{"en-us", false},
		{"EN-US", false},
		{"en", false},
		{"eng-USA", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			if got := isValidLanguage(tt.lang); got != tt.want {
				t.Errorf("isValidLanguage(%q) = %v, want %v", tt.lang, got, tt.want)
			}
		})
	}
}

func TestParseSources(t *testing.T) {
	tests := []struct {
		name string
		raw  []string
		want []models.Source
	}{
		{"single web", []string{"web"}, []models.Source{models.SourceWeb}},
		{"multiple sources", []string{"web", "scholar", "social"}, []models.Source{models.SourceWeb, models.SourceScholar, models.SourceSocial}},
		{"with whitespace", []string{"  web  ", " scholar "}, []models.Source{models.SourceWeb, models.SourceScholar}},
		{"with duplicates", []string{"social", "social", "web"}, []models.Source{models.SourceSocial, models.SourceWeb}},
		{"empty returns default", []string{}, []models.Source{models.SourceWeb}},
		{"invalid sources filtered", []string{"web", "invalid", "scholar"}, []models.Source{models.SourceWeb, models.SourceScholar}},
		{"all invalid returns default", []string{"invalid1", "invalid2"}, []models.Source{models.SourceWeb}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseSources(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("parseSources() returned %d sources, want %d", len(got), len(tt.want))
			}
			for i, s := range got {
				if s != tt.want[i] {
					t.Errorf("parseSources()[%d] = %q, want %q", i, s, tt.want[i])
				}
			}
		})
	}
}

func TestNewManager(t *testing.T) {
	mgr, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if filepath.Base(mgr.GetConfigDir()) != configDirName {
		t.Errorf("GetConfigDir() = %q", mgr.GetConfigDir())
	}
	if filepath.Base(mgr.GetConfigFile()) != "config.json" {
		t.Errorf("GetConfigFile() = %q", mgr.GetConfigFile())
	}
}

func TestManagerLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := NewManagerAt(dir).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DefaultMode != models.ModeAuto {
		t.Errorf("DefaultMode = %q, want auto", cfg.DefaultMode)
	}
	if cfg.DefaultModel != models.ModelDefault {
		t.Errorf("DefaultModel = %q, want empty", cfg.DefaultModel)
	}
	if cfg.DefaultLanguage != "en-US" {
		t.Errorf("DefaultLanguage = %q", cfg.DefaultLanguage)
	}
	if len(cfg.DefaultSources) != 1 || cfg.DefaultSources[0] != models.SourceWeb {
		t.Errorf("DefaultSources = %v", cfg.DefaultSources)
	}
	if cfg.ThreadsFile != filepath.Join(dir, "threads.db") {
		t.Errorf("ThreadsFile = %q", cfg.ThreadsFile)
	}
	if cfg.LogLevel != "warn" || cfg.LogFormat != "console" {
		t.Errorf("logging = %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Timeouts.Client() != client.DefaultTimeouts() {
		t.Errorf("Timeouts = %+v", cfg.Timeouts)
	}
}

func TestManagerSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManagerAt(dir)

	cfg, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.DefaultMode = models.ModeReasoning
	cfg.DefaultModel = models.ModelGemini30Pro
	cfg.DefaultSources = []models.Source{models.SourceScholar}
	cfg.Timeouts.Query = 90

	if err := mgr.Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	loaded, err := NewManagerAt(dir).Load()
	if err != nil {
		t.Fatalf("Load() after Save error = %v", err)
	}
	if loaded.DefaultMode != models.ModeReasoning || loaded.DefaultModel != models.ModelGemini30Pro {
		t.Errorf("loaded mode/model = %s/%s", loaded.DefaultMode, loaded.DefaultModel)
	}
	if len(loaded.DefaultSources) != 1 || loaded.DefaultSources[0] != models.SourceScholar {
		t.Errorf("loaded sources = %v", loaded.DefaultSources)
	}
	if got := loaded.Timeouts.Client().Query; got != 90*time.Second {
		t.Errorf("query timeout = %v, want 90s", got)
	}
}

func TestManagerLoadEnvironment(t *testing.T) {
	t.Setenv("PERPLEXITY_DEFAULT_MODE", "pro")
	t.Setenv("PERPLEXITY_DEFAULT_MODEL", "grok-4.1")
	t.Setenv("PERPLEXITY_DEFAULT_SOURCES", "web,social")
	t.Setenv("PERPLEXITY_TIMEOUTS_QUERY", "5")

	cfg, err := NewManagerAt(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultMode != models.ModePro || cfg.DefaultModel != models.ModelGrok41 {
		t.Errorf("mode/model = %s/%s", cfg.DefaultMode, cfg.DefaultModel)
	}
	if len(cfg.DefaultSources) != 2 || cfg.DefaultSources[1] != models.SourceSocial {
		t.Errorf("sources = %v", cfg.DefaultSources)
	}
	if cfg.Timeouts.Query != 5 {
		t.Errorf("Timeouts.Query = %d, want 5", cfg.Timeouts.Query)
	}
}

func TestManagerLoadRejectsIllegalPair(t *testing.T) {
	t.Setenv("PERPLEXITY_DEFAULT_MODE", "pro")
	t.Setenv("PERPLEXITY_DEFAULT_MODEL", "gpt-5.2-thinking")

	_, err := NewManagerAt(t.TempDir()).Load()
	if !errors.Is(err, models.ErrInvalidModelForMode) {
		t.Errorf("Load() error = %v, want ErrInvalidModelForMode", err)
	}
}

func TestManagerLoadBrokenFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewManagerAt(dir).Load(); err == nil {
		t.Error("Load() should fail on a broken config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{"valid config", &Config{DefaultMode: models.ModePro, DefaultModel: models.ModelClaude45Sonnet, DefaultLanguage: "en-US", DefaultSources: []models.Source{models.SourceWeb}}, false},
		{"empty config", &Config{}, false},
		{"deep research default", &Config{DefaultMode: models.ModeDeepResearch}, false},
		{"unknown model", &Config{DefaultMode: models.ModePro, DefaultModel: "invalid_model"}, true},
		{"model needs a mode that allows it", &Config{DefaultModel: models.ModelSonar}, true},
		{"reasoning model in pro", &Config{DefaultMode: models.ModePro, DefaultModel: models.ModelKimiK2Thinking}, true},
		{"invalid mode", &Config{DefaultMode: "invalid_mode"}, true},
		{"invalid language format", &Config{DefaultLanguage: "en_US"}, true},
		{"invalid source", &Config{DefaultSources: []models.Source{"invalid_source"}}, true},
		{"invalid log format", &Config{LogFormat: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		check   func(*Config) bool
		wantErr bool
	}{
		{"default_mode", "reasoning", func(c *Config) bool { return c.DefaultMode == models.ModeReasoning }, false},
		{"default_sources", "scholar, web", func(c *Config) bool { return len(c.DefaultSources) == 2 }, false},
		{"streaming", "off", func(c *Config) bool { return !c.Streaming }, false},
		{"timeouts.upload", "45", func(c *Config) bool { return c.Timeouts.Upload == 45 }, false},
		{"timeouts.query", "-3", nil, true},
		{"timeouts.query", "soon", nil, true},
		{"default_model", "gpt-5.2", nil, true},
		{"log_format", "yaml", nil, true},
		{"no_such_key", "x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := &Config{DefaultMode: models.ModeAuto, Streaming: true}
			err := Set(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Set(%s, %s) left cfg = %+v", tt.key, tt.value, cfg)
			}
		})
	}

	if err := Set(&Config{}, "bogus", ""); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set() error = %v, want ErrUnknownKey", err)
	}
}

func TestGetRoundTripsSet(t *testing.T) {
	cfg := &Config{DefaultMode: models.ModeAuto, Streaming: true}
	values := map[string]string{
		"default_mode":     "pro",
		"default_sources":  "scholar,web",
		"streaming":        "false",
		"timeouts.storage": "90",
		"log_format":       "json",
	}

	for key, value := range values {
		if err := Set(cfg, key, value); err != nil {
			t.Fatalf("Set(%s) error = %v", key, err)
		}
	}

	for key, want := range values {
		got, err := Get(cfg, key)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", key, err)
		}
		if got != want {
			t.Errorf("Get(%s) = %q, want %q", key, got, want)
		}
	}

	for _, key := range Keys {
		if _, err := Get(cfg, key); err != nil {
			t.Errorf("Get(%s) error = %v", key, err)
		}
	}

	if _, err := Get(cfg, "bogus"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Get() error = %v, want ErrUnknownKey", err)
	}
}

func TestManagerDefaultsIgnoreEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PERPLEXITY_DEFAULT_MODE", "reasoning")

	cfg := NewManagerAt(dir).Defaults()
	if cfg.DefaultMode != models.ModeAuto {
		t.Errorf("DefaultMode = %s, want auto", cfg.DefaultMode)
	}
	if cfg.ThreadsFile != filepath.Join(dir, "threads.db") {
		t.Errorf("ThreadsFile = %s", cfg.ThreadsFile)
	}
	if cfg.Timeouts.Query != 30 {
		t.Errorf("Timeouts.Query = %d, want 30", cfg.Timeouts.Query)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(Defaults()) error = %v", err)
	}
}
