// Package clientcfg loads per-customer validation configuration from YAML
// files and caches it. The cache is owned here, never queried as global state
// by the engine, and entries are invalidated synchronously on write rather
// than waiting for expiry.
package clientcfg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/podflow/delivery-validation-service/internal/models"
	"github.com/podflow/delivery-validation-service/internal/validation"
)

// DefaultTTL is how long a cached client configuration stays fresh.
const DefaultTTL = 5 * time.Minute

type cacheEntry struct {
	cfg      models.ClientValidationConfig
	loadedAt time.Time
}

// Loader reads <dir>/<client_id>.yaml files with a TTL cache keyed by
// normalized client id.
type Loader struct {
	dir      string
	ttl      time.Duration
	validate *validator.Validate
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// NewLoader creates a loader over the given config directory. ttl <= 0 means
// DefaultTTL.
func NewLoader(dir string, ttl time.Duration, logger *slog.Logger) *Loader {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		dir:      dir,
		ttl:      ttl,
		validate: validator.New(),
		logger:   logger,
		cache:    make(map[string]cacheEntry),
		now:      time.Now,
	}
}

// Get returns the client's validation configuration, served from cache while
// fresh. A client without a config file gets the engine defaults; that is
// logged, not an error.
func (l *Loader) Get(ctx context.Context, clientID string) (models.ClientValidationConfig, error) {
	id := normalize(clientID)

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.cache[id]; ok && l.now().Sub(entry.loadedAt) < l.ttl {
		return entry.cfg, nil
	}

	cfg, err := l.load(id)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Info("no config file for client, using defaults", "client_id", id)
			cfg = validation.DefaultClientConfig(id)
		} else {
			return models.ClientValidationConfig{}, err
		}
	}

	l.cache[id] = cacheEntry{cfg: cfg, loadedAt: l.now()}
	return cfg, nil
}

// Save writes the configuration to disk and synchronously invalidates the
// cached entry so the next Get observes the update immediately.
func (l *Loader) Save(ctx context.Context, cfg models.ClientValidationConfig) error {
	id := normalize(cfg.ClientID)
	cfg.ClientID = id
	if err := l.validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal client config: %w", err)
	}
	if err := os.WriteFile(l.path(id), data, 0644); err != nil {
		return fmt.Errorf("failed to write client config: %w", err)
	}

	l.Invalidate(id)
	return nil
}

// Invalidate drops the cached entry for a client.
func (l *Loader) Invalidate(clientID string) {
	id := normalize(clientID)
	l.mu.Lock()
	delete(l.cache, id)
	l.mu.Unlock()
}

func (l *Loader) load(id string) (models.ClientValidationConfig, error) {
	data, err := os.ReadFile(l.path(id))
	if err != nil {
		return models.ClientValidationConfig{}, err
	}

	var cfg models.ClientValidationConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.ClientValidationConfig{}, fmt.Errorf("failed to parse client config %s: %w", id, err)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = id
	}
	if err := l.validate.Struct(cfg); err != nil {
		return models.ClientValidationConfig{}, fmt.Errorf("invalid client config %s: %w", id, err)
	}
	return cfg, nil
}

func (l *Loader) path(id string) string {
	return filepath.Join(l.dir, id+".yaml")
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
