package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/clearline-labs/bankwatch/internal/core/domain"
)

// Config is the on-disk configuration shape.
type Config struct {
	// DataDir overrides the SQLite data directory.
	DataDir string `toml:"data_dir,omitempty"`

	Collection CollectionConfig `toml:"collection"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	FDIC       FDICConfig       `toml:"fdic"`
	NewsAPI    NewsAPIConfig    `toml:"newsapi"`
}

// CollectionConfig holds orchestrator settings.
type CollectionConfig struct {
	Parallelism      int `toml:"parallelism"`
	MaxAttempts      int `toml:"max_attempts"`
	InitialBackoffMS int `toml:"initial_backoff_ms"`
	MaxBackoffMS     int `toml:"max_backoff_ms"`
	QueueSize        int `toml:"queue_size"`
}

// SchedulerConfig holds background collection settings.
type SchedulerConfig struct {
	Enabled       bool `toml:"enabled"`
	IntervalHours int  `toml:"interval_hours"`
}

// FDICConfig holds FDIC connector settings.
type FDICConfig struct {
	Enabled  bool   `toml:"enabled"`
	BaseURL  string `toml:"base_url,omitempty"`
	PageSize int    `toml:"page_size,omitempty"`
}

// NewsAPIConfig holds NewsAPI connector settings.
type NewsAPIConfig struct {
	Enabled   bool     `toml:"enabled"`
	APIKey    string   `toml:"api_key,omitempty"`
	Watchlist []string `toml:"watchlist,omitempty"`
	PageSize  int      `toml:"page_size,omitempty"`
	MaxPages  int      `toml:"max_pages,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
// The NewsAPI connector stays disabled until a key is configured.
func DefaultConfig() Config {
	collection := domain.DefaultCollectionConfig()
	return Config{
		Collection: CollectionConfig{
			Parallelism:      collection.Parallelism,
			MaxAttempts:      collection.MaxAttempts,
			InitialBackoffMS: int(collection.InitialBackoff / time.Millisecond),
			MaxBackoffMS:     int(collection.MaxBackoff / time.Millisecond),
			QueueSize:        collection.QueueSize,
		},
		Scheduler: SchedulerConfig{
			Enabled:       true,
			IntervalHours: 24,
		},
		FDIC: FDICConfig{Enabled: true},
	}
}

// CollectionConfig converts to the domain configuration.
func (c Config) CollectionConfig() domain.CollectionConfig {
	cfg := domain.DefaultCollectionConfig()
	if c.Collection.Parallelism > 0 {
		cfg.Parallelism = c.Collection.Parallelism
	}
	if c.Collection.MaxAttempts > 0 {
		cfg.MaxAttempts = c.Collection.MaxAttempts
	}
	if c.Collection.InitialBackoffMS > 0 {
		cfg.InitialBackoff = time.Duration(c.Collection.InitialBackoffMS) * time.Millisecond
	}
	if c.Collection.MaxBackoffMS > 0 {
		cfg.MaxBackoff = time.Duration(c.Collection.MaxBackoffMS) * time.Millisecond
	}
	if c.Collection.QueueSize > 0 {
		cfg.QueueSize = c.Collection.QueueSize
	}
	return cfg
}

// SchedulerConfig converts to the domain configuration.
func (c Config) SchedulerConfig() domain.SchedulerConfig {
	interval := 24 * time.Hour
	if c.Scheduler.IntervalHours > 0 {
		interval = time.Duration(c.Scheduler.IntervalHours) * time.Hour
	}
	return domain.SchedulerConfig{
		Enabled: c.Scheduler.Enabled,
		TaskConfigs: map[string]domain.TaskConfig{
			domain.TaskIDEventCollection: {
				Enabled:  c.Scheduler.Enabled,
				Interval: interval,
			},
		},
	}
}

// Store is the TOML-backed configuration store.
type Store struct {
	mu       sync.RWMutex
	filePath string
	cfg      Config
}

// NewStore creates a config store rooted at configDir.
// If configDir is empty, defaults to ~/.bankwatch.
func NewStore(configDir string) (*Store, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".bankwatch")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &Store{
		filePath: filepath.Join(configDir, "config.toml"),
		cfg:      DefaultConfig(),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to the configuration and persists the result.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.cfg)
	return s.save()
}

// Save persists the current configuration to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes configuration to the TOML file (caller must hold lock).
// The file may carry API keys, so permissions stay restricted.
func (s *Store) save() error {
	data, err := toml.Marshal(s.cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Load reads configuration from the TOML file. A missing file leaves
// the defaults in place; set fields override them.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	s.cfg = cfg
	return nil
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.filePath
}
