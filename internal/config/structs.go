package config

import (
	"time"

	"github.com/cardforge/cardforge/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// JWT holds the settings of the API token issuer.
type JWT struct {
	Secret     string        // HMAC secret, required when API tokens are used
	ExpiryTime time.Duration // lifetime of an issued token
	Issuer     string
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	OTP       OTP
	SMS       SMS
	Payment   Payment
	Audit     Audit
	Admin     Admin
}

// Admin is the account created on the first start.
type Admin struct {
	Username string
	Email    string
	Password string
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover      bool    // disable recover middleware
	Domain              string  // domain name for the webserver
	Port                int     // listening port for the webserver
	ShutDownTime        int     // wait time for shutdown
	URL                 string  // base url for the webserver
	AllowOrigins        string  // CORS origins, comma separated
	CookieEncryptionKey string  // encryption key for cookies
	Session             Session // session settings
	JWT                 JWT     // api token settings
}

// OTP holds the one-time password thresholds.
type OTP struct {
	Length        int           // number of digits
	TTL           time.Duration // how long a code stays valid
	Cooldown      time.Duration // minimum distance between two sends per phone and purpose
	MaxAttempts   int           // verification attempts per issued code
	DefaultLocale string        // message language when the request carries none
}

// SMS configures the delivery providers.
type SMS struct {
	DefaultProvider string
	Timeout         time.Duration
	Twilio          Twilio
	Msegat          Msegat
	Log             LogSMS
}

// Twilio provider settings.
type Twilio struct {
	Enabled    bool
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
}

// Msegat provider settings.
type Msegat struct {
	Enabled  bool
	UserName string
	APIKey   string
	Sender   string
	BaseURL  string
}

// LogSMS enables the provider writing messages to the log only.
type LogSMS struct {
	Enabled bool
}

// Payment holds transport settings of the gateways. Credentials live in the payment settings group.
type Payment struct {
	Timeout time.Duration
	Moyasar Gateway
	Stripe  Gateway
}

// Gateway holds per gateway transport overrides.
type Gateway struct {
	BaseURL string
}

// Audit configures where payment audit events are shipped.
type Audit struct {
	OpenSearch OpenSearch
}

// OpenSearch connection settings.
type OpenSearch struct {
	Enabled            bool
	URL                string
	Username           string
	Password           string
	Index              string
	InsecureSkipVerify bool
}
