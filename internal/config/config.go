package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"poolcal/internal/schedule"
)

// PoolConfig describes a single facility whose schedule page is scraped.
type PoolConfig struct {
	// ID is an internal identifier used for file names and logging.
	ID string `yaml:"id" json:"id"`
	// Name is the display name used in event titles.
	Name string `yaml:"name" json:"name"`
	// URL is the schedule page.
	URL string `yaml:"url" json:"url"`
}

// OracleConfig configures the LLM-backed category labeler.
type OracleConfig struct {
	// Model is the Gemini model name.
	Model string `yaml:"model" json:"model"`
	// Candidates is the closed label set the model chooses from.
	Candidates []string `yaml:"candidates" json:"candidates"`
	// CacheSize bounds the number of cached classifications.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
	// TimeoutSeconds bounds a single classification call.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// FetchConfig controls how schedule pages are downloaded.
type FetchConfig struct {
	// Mode is "browser" (headless Chromium, renders JS) or "http".
	Mode           string `yaml:"mode" json:"mode"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	// CacheDir holds ETag/Last-Modified metadata for http mode.
	CacheDir  string `yaml:"cache_dir" json:"cache_dir"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// DiscoverConfig finds pool pages from a listing page. Empty Homepage
// disables discovery.
type DiscoverConfig struct {
	Homepage string `yaml:"homepage" json:"homepage"`
	// HrefContains must appear in a link target for it to count.
	HrefContains string `yaml:"href_contains" json:"href_contains"`
	// Match maps a pool name to a lower-case fragment of its link text.
	Match map[string]string `yaml:"match,omitempty" json:"match,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone of the facilities (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// OutputDir receives one .ics file per pool.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Listen is the HTTP address serving the generated calendars. Empty
	// disables the server.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron-style schedule string (e.g. "0 5 * * *") for
	// regenerating calendars in daemon mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Concurrency bounds how many pools are scraped at once.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// Categories is the priority-ordered keyword table.
	Categories []schedule.Keyword `yaml:"categories" json:"categories"`

	// DefaultCategory is used when neither heading nor keyword matches.
	DefaultCategory string `yaml:"default_category" json:"default_category"`

	// Resolver selects "keywords" or "oracle".
	Resolver string `yaml:"resolver" json:"resolver"`

	Oracle   OracleConfig   `yaml:"oracle" json:"oracle"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch"`
	Discover DiscoverConfig `yaml:"discover" json:"discover"`

	Pools []PoolConfig `yaml:"pools" json:"pools"`

	// BasicAuth, if non-nil, protects everything except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns the configuration written on first run: the two
// Dresden indoor pools the tool was built for. Their ids come from Slug.
func DefaultConfig() *Config {
	cfg := &Config{
		Pools: []PoolConfig{
			{
				Name: "Schwimmsportkomplex Freiberger Platz",
				URL:  "https://dresdner-baeder.de/hallenbaeder/schwimmsportkomplex-freiberger-platz/",
			},
			{
				Name: "Georg-Arnhold-Bad Halle",
				URL:  "https://dresdner-baeder.de/hallenbaeder/georg-arnhold-bad-halle/",
			},
		},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = schedule.DefaultTimeZone
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./calendars"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 5 * * *"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.Categories == nil {
		c.Categories = schedule.DefaultKeywords()
	}
	if c.DefaultCategory == "" {
		c.DefaultCategory = schedule.DefaultCategory
	}
	if c.Resolver == "" {
		c.Resolver = string(schedule.ModeKeywords)
	}

	if c.Oracle.Model == "" {
		c.Oracle.Model = "gemini-2.5-flash"
	}
	if len(c.Oracle.Candidates) == 0 {
		c.Oracle.Candidates = schedule.DefaultCandidates()
	}
	if c.Oracle.CacheSize <= 0 {
		c.Oracle.CacheSize = 256
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = 30
	}

	switch c.Fetch.Mode {
	case "browser", "http":
	default:
		c.Fetch.Mode = "browser"
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		c.Fetch.TimeoutSeconds = 60
	}
	if c.Fetch.CacheDir == "" {
		c.Fetch.CacheDir = "./var/page-cache"
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "poolcal/1.0"
	}

	if c.Pools == nil {
		c.Pools = []PoolConfig{}
	}
	for i := range c.Pools {
		if c.Pools[i].ID == "" {
			c.Pools[i].ID = Slug(c.Pools[i].Name)
		}
	}
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	switch schedule.Mode(c.Resolver) {
	case schedule.ModeKeywords, schedule.ModeOracle:
	default:
		errs = append(errs, fmt.Errorf("resolver %q: want %q or %q", c.Resolver, schedule.ModeKeywords, schedule.ModeOracle))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	seen := map[string]bool{}
	for i, p := range c.Pools {
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("pools[%d]: url is empty", i))
		}
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("pools[%d]: needs an id or a name", i))
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("pools[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID] = true
	}
	if len(c.Pools) == 0 && c.Discover.Homepage == "" {
		errs = append(errs, errors.New("no pools configured and discovery disabled"))
	}
	return errors.Join(errs...)
}

// Options converts the config into the extraction core's options.
func (c *Config) Options() schedule.Options {
	return schedule.Options{
		TimeZone:        c.Timezone,
		Keywords:        c.Categories,
		DefaultCategory: c.DefaultCategory,
		Mode:            schedule.Mode(c.Resolver),
		Candidates:      c.Oracle.Candidates,
	}
}

// Slug derives a file-system friendly id from a pool name:
// "Georg-Arnhold-Bad (Halle)" -> "georgarnholdbad_halle". Only letters,
// digits, '_' and '.' survive.
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer(" ", "_", "/", "_").Replace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
			return r
		}
		return -1
	}, s)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read, normalized and validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".poolcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
