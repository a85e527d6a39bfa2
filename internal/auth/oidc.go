package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/cardforge/cardforge/internal/db/models"
	"github.com/cardforge/cardforge/internal/settings"
	"github.com/cardforge/cardforge/internal/uniuri"
)

const (
	// GoogleIssuer is the issuer of Google ID tokens.
	GoogleIssuer = "https://accounts.google.com"

	// CallbackPath is where the identity provider sends the user back to.
	CallbackPath = "/auth/oidc/callback"

	stateTTL = 5 * time.Minute
)

// ErrOIDCDisabled is returned when social login is switched off in the auth settings.
var ErrOIDCDisabled = errors.New("oidc authentication is disabled")

// OIDCConfig holds OpenID Connect (OIDC) configuration for authentication.
type OIDCConfig struct {
	// Issuer is the OIDC provider's discovery URL.
	Issuer string
	// ClientID is the OAuth2 client identifier.
	ClientID string
	// ClientSecret is the OAuth2 client secret.
	ClientSecret string
	// RedirectURL is the OAuth2 callback URL.
	RedirectURL string
	// Scopes are the OAuth2 scopes to request (default: ["openid", "profile", "email"]).
	Scopes []string
}

// OIDCProvider handles OIDC authentication against one identity provider.
type OIDCProvider struct {
	verifier *oidc.IDTokenVerifier
	oauth2   oauth2.Config
	db       *gorm.DB
}

// NewOIDCProvider discovers the provider and creates an OIDC provider.
func NewOIDCProvider(ctx context.Context, config OIDCConfig, db *gorm.DB) (*OIDCProvider, error) {
	provider, err := oidc.NewProvider(ctx, config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCProvider{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
		oauth2: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		db: db,
	}, nil
}

// GetAuthURL returns the OIDC authorization URL with state token.
func (p *OIDCProvider) GetAuthURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

type idClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Locale        string `json:"locale"`
}

// HandleCallback exchanges the code and returns the signed in user.
func (p *OIDCProvider) HandleCallback(ctx context.Context, code string) (*models.User, error) {
	oauth2Token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims idClaims
	if err = idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return p.resolveUser(claims)
}

// resolveUser finds the account of an identity. Known subjects sign in directly, a verified email of an
// existing account links it, everybody else gets a new account with the user role.
func (p *OIDCProvider) resolveUser(claims idClaims) (*models.User, error) {
	if !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	email := strings.ToLower(claims.Email)

	var user models.User

	err := p.db.Preload("Role").
		Where("external_id = ? AND auth_source = ?", claims.Sub, models.AuthSourceOIDC).
		First(&user).Error
	if err == nil {
		return activeUser(&user)
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	err = p.db.Preload("Role").Where("email = ?", email).First(&user).Error

	switch {
	case err == nil:
		if user.ExternalID == "" {
			if err := p.db.Model(&user).Update("external_id", claims.Sub).Error; err != nil {
				return nil, fmt.Errorf("failed to link user: %w", err)
			}
		}

		return activeUser(&user)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	roleID, err := NewService(p.db).RoleID(models.RoleUser)
	if err != nil {
		return nil, err
	}

	user = models.User{
		Active:     true,
		Username:   email,
		Email:      email,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
		Locale:     claims.Locale,
		RoleID:     roleID,
		AuthSource: models.AuthSourceOIDC,
		ExternalID: claims.Sub,
	}

	if err = p.db.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err = p.db.Preload("Role").First(&user, user.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	log.Info().Str("email", email).Msg("created account from google sign-in")

	return &user, nil
}

func activeUser(u *models.User) (*models.User, error) {
	if !u.Active {
		return nil, ErrUserAccountDisabled
	}

	return u, nil
}

// OIDCManager holds the Google provider built from the auth settings group.
// It is rebuilt whenever that group is saved.
type OIDCManager struct {
	db      *gorm.DB
	issuer  string
	baseURL string

	mu       sync.RWMutex
	provider *OIDCProvider
}

// NewOIDCManager creates a manager. An empty issuer means Google.
func NewOIDCManager(db *gorm.DB, issuer, baseURL string) *OIDCManager {
	if issuer == "" {
		issuer = GoogleIssuer
	}

	return &OIDCManager{db: db, issuer: issuer, baseURL: strings.TrimRight(baseURL, "/")}
}

// Configure builds the provider from the auth settings, or clears it when Google sign-in is off.
func (m *OIDCManager) Configure(ctx context.Context, a settings.Auth) error {
	if !a.GoogleLoginEnabled {
		m.set(nil)
		return nil
	}

	redirect := m.baseURL + CallbackPath
	if a.GoogleRedirectURL != nil && *a.GoogleRedirectURL != "" {
		redirect = *a.GoogleRedirectURL
	}

	provider, err := NewOIDCProvider(ctx, OIDCConfig{
		Issuer:       m.issuer,
		ClientID:     a.GoogleClientID,
		ClientSecret: a.GoogleClientSecret,
		RedirectURL:  redirect,
	}, m.db)
	if err != nil {
		m.set(nil)
		return err
	}

	m.set(provider)
	log.Info().Str("issuer", m.issuer).Msg("google sign-in configured")

	return nil
}

// OnSettingsSaved is the settings hook of the auth group.
func (m *OIDCManager) OnSettingsSaved(ctx context.Context, g settings.Group) {
	a, ok := g.(settings.Auth)
	if !ok {
		return
	}

	if err := m.Configure(ctx, a); err != nil {
		log.Warn().Err(err).Msg("google sign-in disabled, provider could not be configured")
	}
}

// Provider returns the current provider or ErrOIDCDisabled.
func (m *OIDCManager) Provider() (*OIDCProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.provider == nil {
		return nil, ErrOIDCDisabled
	}

	return m.provider, nil
}

func (m *OIDCManager) set(p *OIDCProvider) {
	m.mu.Lock()
	m.provider = p
	m.mu.Unlock()
}

// StateStore keeps the CSRF state tokens of running sign-ins.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]time.Time), now: time.Now}
}

// Issue returns a new state token valid for five minutes.
func (s *StateStore) Issue() string {
	state := uniuri.NewLen(32)

	s.mu.Lock()
	s.states[state] = s.now().Add(stateTTL)
	s.mu.Unlock()

	return state
}

// Consume reports whether state was issued and is still valid. A state can be consumed once.
func (s *StateStore) Consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiration, ok := s.states[state]
	if !ok {
		return false
	}

	delete(s.states, state)

	return s.now().Before(expiration)
}

// Cleanup drops expired states.
func (s *StateStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for state, expiration := range s.states {
		if now.After(expiration) {
			delete(s.states, state)
		}
	}
}

// Janitor runs Cleanup every minute until ctx is done.
func (s *StateStore) Janitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}
