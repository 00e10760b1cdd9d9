package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/sdkcore/logger"
)

const clientsYAML = `
log:
  level: debug
clients:
  delivery:
    environmentid: env-1
    baseurl: https://deliver.example.com/env-1
    apikey: file-key
    resilience:
      maxretryattempts: 5
      retrybasedelay: 250ms
      backoff: constant
      circuitbreaker:
        failureratio: 0.5
        breakduration: 10s
  management:
    environmentid: env-1
    baseurl: https://manage.example.com/v2/projects/env-1
    resilience:
      enabled: false
`

func TestLoaderReadsYAML(t *testing.T) {
	l, err := NewLoader(WithYAML([]byte(clientsYAML)), WithEnvPrefix(""))
	require.NoError(t, err)

	assert.Equal(t, []string{"delivery", "management"}, l.Names())
	assert.Equal(t, LogSettings{Level: "debug"}, l.Log())

	delivery, err := l.Client("delivery")
	require.NoError(t, err)
	assert.Equal(t, "env-1", delivery.EnvironmentID)
	assert.Equal(t, "file-key", delivery.APIKey)
	assert.Equal(t, "delivery", delivery.HTTPClientName)
	require.NotNil(t, delivery.Resilience.MaxRetryAttempts)
	assert.Equal(t, 5, *delivery.Resilience.MaxRetryAttempts)
	assert.Equal(t, 250*time.Millisecond, delivery.Resilience.RetryBaseDelay)
	assert.Equal(t, BackoffConstant, delivery.Resilience.Backoff)
	assert.InDelta(t, 0.5, delivery.Resilience.CircuitBreaker.FailureRatio, 0.0001)
	assert.Equal(t, 10*time.Second, delivery.Resilience.CircuitBreaker.BreakDuration)
	assert.True(t, delivery.Resilience.IsEnabled())

	management, err := l.Client("management")
	require.NoError(t, err)
	assert.False(t, management.Resilience.IsEnabled())
	assert.Empty(t, management.APIKey)
}

func TestLoaderDefaultsWithoutSources(t *testing.T) {
	l, err := NewLoader(WithEnvPrefix(""))
	require.NoError(t, err)

	assert.Equal(t, "info", l.Log().Level)
	assert.Empty(t, l.Names())

	_, err = l.Client("delivery")
	require.Error(t, err)
	assert.True(t, IsNotConfigured(err))
}

func TestLoaderEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("SDKCORE_CLIENTS_DELIVERY_APIKEY", "env-key")
	t.Setenv("SDKCORE_CLIENTS_DELIVERY_RESILIENCE_MAXRETRYATTEMPTS", "0")

	l, err := NewLoader(WithYAML([]byte(clientsYAML)))
	require.NoError(t, err)

	delivery, err := l.Client("delivery")
	require.NoError(t, err)
	assert.Equal(t, "env-key", delivery.APIKey)
	require.NotNil(t, delivery.Resilience.MaxRetryAttempts)
	assert.Equal(t, 0, *delivery.Resilience.MaxRetryAttempts)
}

func TestLoaderFileAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(clientsYAML), 0o600))
	dotEnvPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(dotEnvPath, []byte("SDKCORE_TEST_CLIENTS_DELIVERY_APIKEY=dotenv-key\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("SDKCORE_TEST_CLIENTS_DELIVERY_APIKEY") })

	l, err := NewLoader(
		WithFile(cfgPath),
		WithEnvPrefix("SDKCORE_TEST_"),
		WithDotEnv(dotEnvPath, filepath.Join(dir, "missing.env")),
	)
	require.NoError(t, err)

	delivery, err := l.Client("delivery")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", delivery.APIKey)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(WithFile(filepath.Join(t.TempDir(), "nope.yaml")), WithEnvPrefix(""))
	require.Error(t, err)
}

func TestLoaderRejectsInvalidClient(t *testing.T) {
	l, err := NewLoader(WithYAML([]byte(`
clients:
  broken:
    environmentid: "  "
    baseurl: not-a-url
`)), WithEnvPrefix(""))
	require.NoError(t, err)

	_, err = l.Client("broken")
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "environmentId")
	assert.Contains(t, err.Error(), "baseUrl")
}

func TestLoaderWatchPushesReloadIntoMonitor(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	write := func(key string) {
		body := "clients:\n  delivery:\n    environmentid: env-1\n    baseurl: https://deliver.example.com\n    apikey: " + key + "\n"
		require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	}
	write("first")

	l, err := NewLoader(WithFile(cfgPath), WithEnvPrefix(""))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	m := NewMonitor()
	initial, err := l.Client("delivery")
	require.NoError(t, err)
	require.NoError(t, m.Set("delivery", initial))

	require.NoError(t, l.Watch(m, logger.Nop()))
	write("second")

	assert.Eventually(t, func() bool {
		opts, ok := m.Current("delivery")
		return ok && opts.GetAPIKey() == "second"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatchWithoutFile(t *testing.T) {
	l, err := NewLoader(WithEnvPrefix(""))
	require.NoError(t, err)
	require.Error(t, l.Watch(NewMonitor(), logger.Nop()))
	require.NoError(t, l.Close())
}

func TestMonitor(t *testing.T) {
	m := NewMonitor()

	var mu sync.Mutex
	var changed []string
	m.OnChange(func(name string, _ Options) {
		mu.Lock()
		defer mu.Unlock()
		changed = append(changed, name)
	})

	valid := &ClientOptions{EnvironmentID: "env", BaseURL: "https://api.example.com"}
	require.NoError(t, m.Set("b", valid))
	require.NoError(t, m.Set("a", valid))

	err := m.Set("a", &ClientOptions{EnvironmentID: "env", BaseURL: "relative/path"})
	require.Error(t, err)

	current, ok := m.Current("a")
	require.True(t, ok)
	assert.Same(t, valid, current, "rejected update keeps the previous value")

	_, ok = m.Current("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, m.Names())
	assert.Equal(t, []string{"b", "a"}, changed)
}

func TestStaticSource(t *testing.T) {
	opts := &ClientOptions{APIKey: "k"}
	got, ok := Static{Options: opts}.Current("anything")
	assert.True(t, ok)
	assert.Same(t, opts, got)

	_, ok = Static{}.Current("anything")
	assert.False(t, ok)
}

func TestConfigErrorFormatting(t *testing.T) {
	err := NewInvalidFieldError("resilience.backoff", "is not supported", "linear", []string{"constant", "exponential"})
	assert.Equal(t, `config_invalid: resilience.backoff is not supported (received "linear") must be one of: constant, exponential`, err.Error())

	nc := NewNotConfiguredError("delivery", "clients.delivery")
	assert.True(t, IsNotConfigured(nc))
	assert.True(t, IsNotConfigured(errors.Join(errors.New("other"), nc)))
	assert.False(t, IsNotConfigured(err))
}

func TestLoaderSection(t *testing.T) {
	l, err := NewLoader(WithYAML([]byte("extra:\n  name: billing\n  weight: 3\n")), WithEnvPrefix(""))
	require.NoError(t, err)

	var out struct {
		Name   string `koanf:"name"`
		Weight int    `koanf:"weight"`
	}
	require.NoError(t, l.Section("extra", &out))
	assert.Equal(t, "billing", out.Name)
	assert.Equal(t, 3, out.Weight)

	out.Name = "kept"
	require.NoError(t, l.Section("missing", &out))
	assert.Equal(t, "kept", out.Name)
}
