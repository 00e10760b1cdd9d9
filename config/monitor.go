package config

import (
	"slices"
	"sync"
)

// OptionsSource yields the current options for a named client. Middleware reads it
// per request so credential changes apply without rebuilding the transport.
type OptionsSource interface {
	Current(name string) (Options, bool)
}

// ChangeFunc is called after a named entry has been replaced.
type ChangeFunc func(name string, opts Options)

// Monitor is a read-mostly registry of live options keyed by client name.
type Monitor struct {
	mu        sync.RWMutex
	entries   map[string]Options
	listeners []ChangeFunc
}

var _ OptionsSource = (*Monitor)(nil)

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{entries: make(map[string]Options)}
}

// Set validates opts and stores it under name. Invalid options are rejected and the
// previous value is kept.
func (m *Monitor) Set(name string, opts Options) error {
	if err := Validate(opts); err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[name] = opts
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(name, opts)
	}
	return nil
}

// Current returns the options stored under name.
func (m *Monitor) Current(name string) (Options, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	opts, ok := m.entries[name]
	return opts, ok
}

// Names returns the registered names in sorted order.
func (m *Monitor) Names() []string {
	m.mu.RLock()
	names := make([]string, 0, len(m.entries))
	for n := range m.entries {
		names = append(names, n)
	}
	m.mu.RUnlock()
	slices.Sort(names)
	return names
}

// OnChange registers fn to be called after every successful Set.
func (m *Monitor) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Static is an OptionsSource that always returns the same options.
type Static struct {
	Options Options
}

// Current returns s.Options regardless of name.
func (s Static) Current(string) (Options, bool) {
	return s.Options, s.Options != nil
}
