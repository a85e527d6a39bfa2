// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// EnvConfigJSON names the environment variable holding a JSON document merged over main.toml.
const EnvConfigJSON = "CARDFORGE_CONFIG_JSON"

const (
	defaultShutDownTime   = 5
	defaultOTPLength      = 6
	defaultOTPTTL         = 5 * time.Minute
	defaultOTPCooldown    = 60 * time.Second
	defaultOTPMaxAttempts = 5
	defaultOTPLocale      = "en"
	defaultSMSProvider    = "log"
	defaultSMSTimeout     = 10 * time.Second
	defaultPaymentTimeout = 30 * time.Second
	defaultJWTExpiry      = 12 * time.Hour
	defaultSessionExpiry  = 24 * time.Hour
	defaultAuditIndex     = "cardforge-payments"
	defaultAdminUsername  = "admin"
	defaultAdminEmail     = "admin@localhost"
	defaultAdminPassword  = "changeme"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	if _, err = toml.DecodeFile(path+"main.toml", &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv(EnvConfigJSON)

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to merge json config from env")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// DumpConfigJSON config as JSON String.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer
	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate checks the settings the daemon can not start without and fills defaults for the rest.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	switch c.DB.GormEngine {
	case "":
		c.DB.GormEngine = EngineMySQL
	case EngineMySQL, EnginePostgres, EngineSQLite:
	default:
		return errors.Wrapf(ErrUnknownGormEngine, "%s: %q", invalidErrMessage, c.DB.GormEngine)
	}

	if c.OTP.MaxAttempts < 0 {
		return errors.Wrap(ErrOTPAttemptsNegative, invalidErrMessage)
	}

	applyDefaults(c)

	return nil
}

func applyDefaults(c *Config) {
	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = defaultShutDownTime
	}

	if c.Webserver.Session.ExpiryTime == 0 {
		c.Webserver.Session.ExpiryTime = defaultSessionExpiry
	}

	if c.Webserver.JWT.ExpiryTime == 0 {
		c.Webserver.JWT.ExpiryTime = defaultJWTExpiry
	}

	if c.OTP.Length == 0 {
		c.OTP.Length = defaultOTPLength
	}

	if c.OTP.TTL == 0 {
		c.OTP.TTL = defaultOTPTTL
	}

	if c.OTP.Cooldown == 0 {
		c.OTP.Cooldown = defaultOTPCooldown
	}

	if c.OTP.MaxAttempts == 0 {
		c.OTP.MaxAttempts = defaultOTPMaxAttempts
	}

	if c.OTP.DefaultLocale == "" {
		c.OTP.DefaultLocale = defaultOTPLocale
	}

	if c.SMS.DefaultProvider == "" {
		c.SMS.DefaultProvider = defaultSMSProvider
	}

	if c.SMS.Timeout == 0 {
		c.SMS.Timeout = defaultSMSTimeout
	}

	if c.Payment.Timeout == 0 {
		c.Payment.Timeout = defaultPaymentTimeout
	}

	if c.Audit.OpenSearch.Index == "" {
		c.Audit.OpenSearch.Index = defaultAuditIndex
	}

	if c.Admin.Username == "" {
		c.Admin.Username = defaultAdminUsername
	}

	if c.Admin.Email == "" {
		c.Admin.Email = defaultAdminEmail
	}

	if c.Admin.Password == "" {
		c.Admin.Password = defaultAdminPassword
	}
}
