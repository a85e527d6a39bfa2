package sms

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/cardforge/cardforge/internal/config"
)

// Manager keeps the registered providers and the name of the default one.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	def       string
}

// NewManager returns a manager with the given providers. def names the default provider.
func NewManager(def string, providers ...Provider) *Manager {
	m := &Manager{
		providers: make(map[string]Provider, len(providers)),
		def:       def,
	}

	for _, p := range providers {
		m.providers[p.Name()] = p
	}

	return m
}

// NewFromConfig registers every enabled provider of cfg.
func NewFromConfig(cfg config.SMS) (*Manager, error) {
	m := NewManager(cfg.DefaultProvider)

	if cfg.Twilio.Enabled {
		m.Register(NewTwilio(cfg.Twilio, cfg.Timeout))
	}

	if cfg.Msegat.Enabled {
		m.Register(NewMsegat(cfg.Msegat, cfg.Timeout))
	}

	if cfg.Log.Enabled {
		m.Register(NewLog())
	}

	if _, err := m.Via(""); err != nil {
		return nil, fmt.Errorf("default sms provider: %w", err)
	}

	return m, nil
}

// Register adds or replaces a provider.
func (m *Manager) Register(p Provider) {
	m.mu.Lock()
	m.providers[p.Name()] = p
	m.mu.Unlock()
}

// SetDefault switches the default provider for all following sends.
func (m *Manager) SetDefault(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	if m.def != name {
		log.Info().Str("from", m.def).Str("to", name).Msg("default sms provider changed")
	}

	m.def = name

	return nil
}

// Default returns the name of the default provider.
func (m *Manager) Default() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.def
}

// Via resolves a provider by name, the default one when name is empty.
func (m *Manager) Via(name string) (Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		name = m.def
	}

	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	return p, nil
}

// Names lists the registered providers.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Send delivers message through provider, or the default provider when it is empty.
func (m *Manager) Send(ctx context.Context, to, message, provider string) (*Result, error) {
	p, err := m.Via(provider)
	if err != nil {
		return nil, err
	}

	return p.Send(ctx, to, message)
}
