// Package settings provides typed setting groups backed by the settings table.
//
// Every field of a group is stored as its own row named "<group>.<field>" holding the
// JSON encoding of the value. Rows that do not exist yet fall back to the group defaults,
// so adding a field to a group never needs a migration.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/controller/setting"
)

var (
	// ErrUnknownGroup is returned for a group name no type is registered for.
	ErrUnknownGroup = errors.New("unknown settings group")
	// ErrNilGroup is returned when Load or Save get a nil group.
	ErrNilGroup = errors.New("settings group is nil")
)

// Hook is called after a group was saved successfully.
type Hook func(ctx context.Context, g Group)

// Store loads and saves setting groups and caches the merged result per group.
type Store struct {
	db       *gorm.DB
	validate *validator.Validate

	mu    sync.RWMutex
	cache map[string][]byte

	hooksMu sync.RWMutex
	hooks   map[string][]Hook
}

// NewStore returns a store on top of db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cache:    make(map[string][]byte),
		hooks:    make(map[string][]Hook),
	}
}

// Defaults returns a pointer to a fresh group with its default values.
func Defaults(name string) (Group, error) {
	switch name {
	case GroupGeneral:
		g := DefaultGeneral()
		return &g, nil
	case GroupAuth:
		g := DefaultAuth()
		return &g, nil
	case GroupAI:
		g := DefaultAI()
		return &g, nil
	case GroupPayment:
		g := DefaultPayment()
		return &g, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
}

// Names lists all group names.
func Names() []string {
	return []string{GroupGeneral, GroupAuth, GroupAI, GroupPayment}
}

// Load fills g, which must be a pointer to a group holding its defaults, with the
// stored values.
func (s *Store) Load(ctx context.Context, g Group) error {
	if g == nil {
		return ErrNilGroup
	}

	name := g.GroupName()

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()

	if ok {
		return json.Unmarshal(cached, g)
	}

	fields, err := fieldsOf(g)
	if err != nil {
		return err
	}

	rows, err := setting.ListByGroup(s.db.WithContext(ctx), name)
	if err != nil {
		return fmt.Errorf("load settings group %s: %w", name, err)
	}

	for _, row := range rows {
		field := strings.TrimPrefix(row.Name, name+".")
		if _, known := fields[field]; !known {
			continue
		}

		if !json.Valid(row.Value) {
			log.Warn().Str("setting", row.Name).Msg("ignoring setting with invalid JSON value")
			continue
		}

		fields[field] = row.Value
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(merged, g); err != nil {
		return fmt.Errorf("decode settings group %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = merged
	s.mu.Unlock()

	return nil
}

// LoadByName loads the group registered under name.
func (s *Store) LoadByName(ctx context.Context, name string) (Group, error) {
	g, err := Defaults(name)
	if err != nil {
		return nil, err
	}

	if err := s.Load(ctx, g); err != nil {
		return nil, err
	}

	return g, nil
}

// Save validates g and writes every field in a single transaction.
func (s *Store) Save(ctx context.Context, g Group) error {
	if g == nil {
		return ErrNilGroup
	}

	if err := s.validate.StructCtx(ctx, g); err != nil {
		return err
	}

	name := g.GroupName()

	fields, err := fieldsOf(g)
	if err != nil {
		return err
	}

	values := make(map[string][]byte, len(fields))
	for field, raw := range fields {
		values[setting.Name(name, field)] = raw
	}

	if err := setting.SetMany(s.db.WithContext(ctx), values); err != nil {
		return fmt.Errorf("save settings group %s: %w", name, err)
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[name] = merged
	s.mu.Unlock()

	log.Info().Str("group", name).Msg("settings saved")

	s.hooksMu.RLock()
	hooks := append([]Hook(nil), s.hooks[name]...)
	s.hooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, Value(g))
	}

	return nil
}

// Refresh drops the cached groups so the next Load reads the database again.
func (s *Store) Refresh() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()
}

// OnSave registers hook to run after every successful save of group name.
func (s *Store) OnSave(name string, hook Hook) {
	s.hooksMu.Lock()
	s.hooks[name] = append(s.hooks[name], hook)
	s.hooksMu.Unlock()
}

// Warm loads every group once, so broken rows show up at boot.
func (s *Store) Warm(ctx context.Context) error {
	for _, name := range Names() {
		if _, err := s.LoadByName(ctx, name); err != nil {
			return err
		}
	}

	return nil
}

// General returns the general group.
func (s *Store) General(ctx context.Context) (General, error) {
	g := DefaultGeneral()
	err := s.Load(ctx, &g)

	return g, err
}

// Auth returns the auth group.
func (s *Store) Auth(ctx context.Context) (Auth, error) {
	g := DefaultAuth()
	err := s.Load(ctx, &g)

	return g, err
}

// AI returns the ai group.
func (s *Store) AI(ctx context.Context) (AI, error) {
	g := DefaultAI()
	err := s.Load(ctx, &g)

	return g, err
}

// Payment returns the payment group.
func (s *Store) Payment(ctx context.Context) (Payment, error) {
	g := DefaultPayment()
	err := s.Load(ctx, &g)

	return g, err
}

func fieldsOf(g Group) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	return fields, nil
}

// Value dereferences pointers to the known groups.
func Value(g Group) Group {
	switch v := g.(type) {
	case *General:
		return *v
	case *Auth:
		return *v
	case *AI:
		return *v
	case *Payment:
		return *v
	}

	return g
}
