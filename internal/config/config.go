// Package config loads and hot-reloads YAML configuration for the platform
// and gateway binaries.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// PlatformConfig configures the admin plane binary (cmd/platform).
type PlatformConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig configures a single tenant's agent process (cmd/gateway).
type GatewayConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Identity IdentityConfig `yaml:"identity"`
	LLM      LLMConfig      `yaml:"llm"`
	Channels ChannelsConfig `yaml:"channels"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ObservabilityConfig configures OpenTelemetry span export. Tracing is a
// no-op when Endpoint is empty.
type ObservabilityConfig struct {
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// ServerConfig is the HTTP bind configuration shared by both binaries.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig points at the SQLite database file for a server.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig configures platform JWT + password policy.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// OrchestratorConfig configures tenant process supervision.
type OrchestratorConfig struct {
	BasePort     int    `yaml:"base_port"`
	DataDir      string `yaml:"data_dir"`
	GatewayBin   string `yaml:"gateway_bin"`
	RoutingFile  string `yaml:"routing_file"`
	ReloadURL    string `yaml:"reload_url"`
}

// IdentityConfig names the running agent tenant.
type IdentityConfig struct {
	Name string `yaml:"name"`
}

// LLMConfig carries the default provider/model and per-tenant API keys.
type LLMConfig struct {
	Provider string            `yaml:"provider"`
	Model    string            `yaml:"model"`
	APIKeys  map[string]string `yaml:"api_keys"`
}

// ChannelsConfig holds per-channel-type configuration blobs.
type ChannelsConfig struct {
	Telegram map[string]string `yaml:"telegram"`
	Discord  map[string]string `yaml:"discord"`
	Slack    map[string]string `yaml:"slack"`
	Email    map[string]string `yaml:"email"`
	Webhook  map[string]string `yaml:"webhook"`
}

// SchedulerConfig configures the tick loop interval.
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// LoggingConfig configures the shared slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Loader reads a YAML file into T and optionally watches it for changes.
type Loader[T any] struct {
	path string
	mu   sync.RWMutex
	cur  *T
}

// NewLoader reads path into a fresh T.
func NewLoader[T any](path string) (*Loader[T], error) {
	l := &Loader[T]{path: path}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader[T]) reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", l.path, err)
	}
	var v T
	if err := yaml.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parse config %s: %w", l.path, err)
	}
	l.mu.Lock()
	l.cur = &v
	l.mu.Unlock()
	return nil
}

// Current returns the most recently loaded configuration.
func (l *Loader[T]) Current() T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.cur
}

// Watch reloads the file whenever it changes on disk, logging (via onErr)
// but never blocking on reload failures so a bad edit can be fixed in place.
func (l *Loader[T]) Watch(onReload func(T), onErr func(error)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(l.path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", l.path, err)
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := l.reload(); err != nil {
					if onErr != nil {
						onErr(err)
					}
					continue
				}
				if onReload != nil {
					onReload(l.Current())
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(werr)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		watcher.Close()
	}, nil
}
