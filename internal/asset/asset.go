// Package asset implements a small host-independent component that reaches
// its environment only through a bridge.Bridge.
package asset

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"bridgekit/internal/bridge"
	"bridgekit/internal/storage"
)

const DefaultVersion = "1.0.0"

// Registry hands out per-class instance ids ("{Class}_{n}").
type Registry struct {
	mu       sync.Mutex
	counters map[string]int
	ids      map[*Asset]string
}

func NewRegistry() *Registry {
	return &Registry{counters: map[string]int{}, ids: map[*Asset]string{}}
}

// Register returns the id of a, assigning a new one on first registration.
func (r *Registry) Register(a *Asset, class string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[a]; ok {
		return id
	}
	r.counters[class]++
	id := fmt.Sprintf("%s_%d", class, r.counters[class])
	r.ids[a] = id
	return id
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

type Option func(*Asset)

func WithVersion(v string) Option { return func(a *Asset) { a.version = v } }

func WithDependency(name, version string) Option {
	return func(a *Asset) { a.deps[name] = version }
}

// WithSettings attaches default settings. Assets without settings skip
// settings persistence entirely.
func WithSettings(s *Settings) Option { return func(a *Asset) { a.settings = s } }

type Asset struct {
	class   string
	id      string
	version string
	deps    map[string]string

	mu       sync.Mutex
	bridge   *bridge.Bridge
	settings *Settings
}

// New creates and registers an asset. A nil registry gives the asset a
// private one; a nil bridge selects the bridge defaults.
func New(reg *Registry, class string, b *bridge.Bridge, opts ...Option) *Asset {
	a := &Asset{class: class, version: DefaultVersion, deps: map[string]string{}, bridge: b}
	for _, o := range opts {
		if o != nil {
			o(a)
		}
	}
	if reg == nil {
		reg = NewRegistry()
	}
	a.id = reg.Register(a, class)
	return a
}

func (a *Asset) Class() string   { return a.class }
func (a *Asset) ID() string      { return a.id }
func (a *Asset) Version() string { return a.version }

func (a *Asset) Dependencies() map[string]string {
	out := make(map[string]string, len(a.deps))
	for k, v := range a.deps {
		out[k] = v
	}
	return out
}

func (a *Asset) Bridge() *bridge.Bridge {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bridge
}

// SetBridge swaps this asset's bridge; nil restores the defaults.
func (a *Asset) SetBridge(b *bridge.Bridge) {
	a.mu.Lock()
	a.bridge = b
	a.mu.Unlock()
}

func (a *Asset) Settings() *Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

func (a *Asset) HasSettings() bool { return a.Settings() != nil }

// Log writes through the bridge log capability.
func (a *Asset) Log(severity bridge.Severity, msg string) {
	a.Bridge().Log(severity, msg)
}

// SettingsXML renders the current settings; empty when the asset has none.
func (a *Asset) SettingsXML() (string, error) {
	s := a.Settings()
	if s == nil {
		return "", nil
	}
	return s.XML()
}

// SaveDefaultSettings stores the class-wide default settings. Existing
// defaults are kept unless force is set.
func (a *Asset) SaveDefaultSettings(force bool) error {
	s := a.Settings()
	if s == nil {
		return nil
	}
	st, err := a.Bridge().Storage()
	if err != nil {
		return err
	}
	if !force && st.HasDefaultSettings(a.class, a.id) {
		return nil
	}
	raw, err := s.XML()
	if err != nil {
		return err
	}
	return st.SaveDefaultSettings(a.class, a.id, raw)
}

// LoadDefaultSettings replaces the settings with the stored defaults.
// It reports false when no defaults are stored.
func (a *Asset) LoadDefaultSettings() (bool, error) {
	if !a.HasSettings() {
		return false, nil
	}
	st, err := a.Bridge().Storage()
	if err != nil {
		return false, err
	}
	if !st.HasDefaultSettings(a.class, a.id) {
		return false, nil
	}
	raw, err := st.LoadDefaultSettings(a.class, a.id)
	if err != nil {
		return false, err
	}
	return true, a.applySettings(raw)
}

// SaveSettings stores the runtime settings under fileID.
func (a *Asset) SaveSettings(fileID string) error {
	s := a.Settings()
	if s == nil {
		return nil
	}
	st, err := a.Bridge().Storage()
	if err != nil {
		return err
	}
	raw, err := s.XML()
	if err != nil {
		return err
	}
	return st.Save(fileID, raw)
}

// LoadSettings replaces the settings with those stored under fileID.
func (a *Asset) LoadSettings(fileID string) (bool, error) {
	st, err := a.Bridge().Storage()
	if err != nil {
		return false, err
	}
	raw, err := st.Load(fileID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, a.applySettings(raw)
}

func (a *Asset) applySettings(raw string) error {
	s, err := parseSettings(raw)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	return nil
}

// VersionReport lists the asset version followed by its dependencies, sorted.
func (a *Asset) VersionReport() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Asset %s v%s", a.class, a.version)
	names := make([]string, 0, len(a.deps))
	for n := range a.deps {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(&b, "\nDepends on %s v%s", n, a.deps[n])
	}
	return b.String()
}
