package settings

// Group names, also the prefix of every row of the group.
const (
	GroupGeneral = "general"
	GroupAuth    = "auth"
	GroupAI      = "ai"
	GroupPayment = "payment"
)

// Redacted replaces secrets in group payloads returned to the admin UI.
const Redacted = "********"

// Group is a typed bundle of settings persisted as one row per field.
type Group interface {
	GroupName() string
}

// SecretHolder is implemented by groups carrying credentials.
type SecretHolder interface {
	Group
	// Redact returns a copy safe to show, secrets replaced with Redacted.
	Redact() Group
	// KeepSecrets copies secrets from prev into fields still holding Redacted.
	KeepSecrets(prev Group)
}

// General holds site wide settings.
type General struct {
	SiteName        string  `json:"site_name"          validate:"required,max=100"`
	SiteDescription string  `json:"site_description"   validate:"max=255"`
	DefaultLocale   string  `json:"default_locale"     validate:"required,bcp47_language_tag"`
	SupportEmail    string  `json:"support_email"      validate:"omitempty,email"`
	LogoURL         *string `json:"logo_url"           validate:"omitempty,url"`
	MaintenanceMode bool    `json:"maintenance_mode"`
	MaxCardsPerPage int     `json:"max_cards_per_page" validate:"min=1,max=100"`
}

// GroupName implements Group.
func (General) GroupName() string { return GroupGeneral }

// DefaultGeneral returns the values used for rows not stored yet.
func DefaultGeneral() General {
	return General{
		SiteName:        "CardForge",
		DefaultLocale:   "en",
		MaxCardsPerPage: 20,
	}
}

// Auth holds registration and sign-in settings.
type Auth struct {
	RegistrationEnabled       bool    `json:"registration_enabled"`
	PhoneVerificationRequired bool    `json:"phone_verification_required"`
	DefaultSMSProvider        string  `json:"default_sms_provider" validate:"required,max=50"`
	GoogleLoginEnabled        bool    `json:"google_login_enabled"`
	GoogleClientID            string  `json:"google_client_id"     validate:"required_if=GoogleLoginEnabled true"`
	GoogleClientSecret        string  `json:"google_client_secret" validate:"required_if=GoogleLoginEnabled true"`
	GoogleRedirectURL         *string `json:"google_redirect_url"  validate:"omitempty,url"`
}

// GroupName implements Group.
func (Auth) GroupName() string { return GroupAuth }

// DefaultAuth returns the values used for rows not stored yet.
func DefaultAuth() Auth {
	return Auth{
		RegistrationEnabled: true,
		DefaultSMSProvider:  "log",
	}
}

// Redact implements SecretHolder.
func (a Auth) Redact() Group {
	a.GoogleClientSecret = redact(a.GoogleClientSecret)

	return a
}

// KeepSecrets implements SecretHolder.
func (a *Auth) KeepSecrets(prev Group) {
	if p, ok := Value(prev).(Auth); ok {
		a.GoogleClientSecret = keep(a.GoogleClientSecret, p.GoogleClientSecret)
	}
}

// AI holds the settings of the translation assistant.
type AI struct {
	Enabled            bool   `json:"enabled"`
	Provider           string `json:"provider"            validate:"required_if=Enabled true,omitempty,oneof=openai anthropic gemini"`
	APIKey             string `json:"api_key"             validate:"required_if=Enabled true"`
	Model              string `json:"model"               validate:"max=100"`
	MaxTokens          int    `json:"max_tokens"          validate:"min=1,max=32768"`
	TranslationEnabled bool   `json:"translation_enabled"`
}

// GroupName implements Group.
func (AI) GroupName() string { return GroupAI }

// DefaultAI returns the values used for rows not stored yet.
func DefaultAI() AI {
	return AI{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		MaxTokens: 1024,
	}
}

// Redact implements SecretHolder.
func (a AI) Redact() Group {
	a.APIKey = redact(a.APIKey)

	return a
}

// KeepSecrets implements SecretHolder.
func (a *AI) KeepSecrets(prev Group) {
	if p, ok := Value(prev).(AI); ok {
		a.APIKey = keep(a.APIKey, p.APIKey)
	}
}

// Payment holds gateway selection and credentials.
type Payment struct {
	Gateway         string  `json:"gateway"           validate:"required,oneof=moyasar stripe"`
	Currency        string  `json:"currency"          validate:"required,len=3,uppercase"`
	TestMode        bool    `json:"test_mode"`
	PublicKey       string  `json:"public_key"`
	SecretKey       string  `json:"secret_key"`
	WebhookSecret   *string `json:"webhook_secret"`
	StripePublicKey string  `json:"stripe_public_key"`
	StripeSecretKey string  `json:"stripe_secret_key"`
}

// GroupName implements Group.
func (Payment) GroupName() string { return GroupPayment }

// DefaultPayment returns the values used for rows not stored yet.
func DefaultPayment() Payment {
	return Payment{
		Gateway:  "moyasar",
		Currency: "SAR",
		TestMode: true,
	}
}

// Redact implements SecretHolder.
func (p Payment) Redact() Group {
	p.SecretKey = redact(p.SecretKey)
	p.StripeSecretKey = redact(p.StripeSecretKey)

	if p.WebhookSecret != nil {
		r := redact(*p.WebhookSecret)
		p.WebhookSecret = &r
	}

	return p
}

// KeepSecrets implements SecretHolder.
func (p *Payment) KeepSecrets(prev Group) {
	old, ok := Value(prev).(Payment)
	if !ok {
		return
	}

	p.SecretKey = keep(p.SecretKey, old.SecretKey)
	p.StripeSecretKey = keep(p.StripeSecretKey, old.StripeSecretKey)

	if p.WebhookSecret != nil && *p.WebhookSecret == Redacted {
		p.WebhookSecret = old.WebhookSecret
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}

	return Redacted
}

func keep(current, prev string) string {
	if current == Redacted {
		return prev
	}

	return current
}
