package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/gaborage/sdkcore/logger"
)

// DefaultEnvPrefix selects the environment variables merged over file configuration.
// SDKCORE_CLIENTS_DELIVERY_APIKEY maps to clients.delivery.apikey.
const DefaultEnvPrefix = "SDKCORE_"

const clientsKey = "clients"

// Loader reads client options from layered sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML file, then in-memory YAML
// 3. Default values (lowest priority)
type Loader struct {
	path      string
	yamlBytes []byte
	envPrefix string
	dotEnv    []string

	mu      sync.RWMutex
	k       *koanf.Koanf
	watcher *file.File
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFile reads YAML from path. The file must exist.
func WithFile(path string) LoaderOption {
	return func(l *Loader) { l.path = path }
}

// WithYAML reads YAML from b, layered below the file.
func WithYAML(b []byte) LoaderOption {
	return func(l *Loader) { l.yamlBytes = b }
}

// WithEnvPrefix changes the environment variable prefix. An empty prefix disables
// environment overrides.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithDotEnv loads the given .env files into the process environment before reading
// it. Missing files are ignored; variables already set are not overwritten.
func WithDotEnv(paths ...string) LoaderOption {
	return func(l *Loader) { l.dotEnv = paths }
}

// NewLoader reads every configured source once.
func NewLoader(opts ...LoaderOption) (*Loader, error) {
	l := &Loader{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		opt(l)
	}

	for _, p := range l.dotEnv {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	k, err := l.read()
	if err != nil {
		return nil, err
	}
	l.k = k
	return l, nil
}

func (l *Loader) read() (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if len(l.yamlBytes) > 0 {
		if err := k.Load(rawbytes.Provider(l.yamlBytes), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	if l.path != "" {
		if err := k.Load(file.Provider(l.path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", l.path, err)
		}
	}

	if l.envPrefix != "" {
		prefix := l.envPrefix
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix: prefix,
			TransformFunc: func(key, value string) (string, any) {
				// Convert PREFIX_UPPER_CASE to upper.case for koanf
				key = strings.TrimPrefix(key, prefix)
				return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
			},
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	return k, nil
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":  "info",
		"log.pretty": false,
	}
}

func (l *Loader) current() *koanf.Koanf {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.k
}

// Log returns the logging section.
func (l *Loader) Log() LogSettings {
	var s LogSettings
	k := l.current()
	s.Level = k.String("log.level")
	s.Pretty = k.Bool("log.pretty")
	return s
}

// Names returns the configured client names in sorted order.
func (l *Loader) Names() []string {
	names := l.current().MapKeys(clientsKey)
	slices.Sort(names)
	return names
}

// Client returns the validated options of the named client.
func (l *Loader) Client(name string) (*ClientOptions, error) {
	return l.clientFrom(l.current(), name)
}

func (l *Loader) clientFrom(k *koanf.Koanf, name string) (*ClientOptions, error) {
	path := clientsKey + "." + name
	if !k.Exists(path) {
		return nil, NewNotConfiguredError(name, path)
	}

	var opts ClientOptions
	if err := k.Unmarshal(path, &opts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	if opts.HTTPClientName == "" {
		opts.HTTPClientName = name
	}
	if err := Validate(&opts); err != nil {
		return nil, fmt.Errorf("invalid configuration for client %s: %w", name, err)
	}
	return &opts, nil
}

// Section unmarshals the section at path into out. A missing section leaves out
// untouched.
func (l *Loader) Section(path string, out any) error {
	k := l.current()
	if !k.Exists(path) {
		return nil
	}
	if err := k.Unmarshal(path, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

// Watch reloads the file whenever it changes and pushes every valid client section
// into m. Invalid sections are logged and leave the previous value in place.
func (l *Loader) Watch(m *Monitor, log logger.Logger) error {
	if l.path == "" {
		return errors.New("watch requires a config file")
	}

	fp := file.Provider(l.path)
	err := fp.Watch(func(_ any, werr error) {
		if werr != nil {
			log.Error().Err(werr).Str("path", l.path).Msg("Config watch failed")
			return
		}
		l.reload(m, log)
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", l.path, err)
	}

	l.mu.Lock()
	l.watcher = fp
	l.mu.Unlock()
	return nil
}

func (l *Loader) reload(m *Monitor, log logger.Logger) {
	k, err := l.read()
	if err != nil {
		log.Error().Err(err).Str("path", l.path).Msg("Config reload rejected")
		return
	}

	l.mu.Lock()
	l.k = k
	l.mu.Unlock()

	names := k.MapKeys(clientsKey)
	slices.Sort(names)
	for _, name := range names {
		opts, err := l.clientFrom(k, name)
		if err == nil {
			err = m.Set(name, opts)
		}
		if err != nil {
			log.Error().Err(err).Str("client", name).Msg("Client options reload rejected")
			continue
		}
		log.Info().Str("client", name).Msg("Client options reloaded")
	}
}

// Close stops watching the config file.
func (l *Loader) Close() error {
	l.mu.Lock()
	w := l.watcher
	l.watcher = nil
	l.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Unwatch()
}
