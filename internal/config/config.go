package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-drm/internal/crypto"
	"github.com/technosupport/ts-drm/internal/ratelimit"
	"github.com/technosupport/ts-drm/internal/tokens"
)

const DefaultConfigPath = "config/default.yaml"

var (
	ErrMissing   = errors.New("required setting missing")
	ErrMalformed = errors.New("setting malformed")
)

// Secrets are issued by the DRM and streaming vendors. They only ever come
// from the environment.
type Secrets struct {
	AccessKey  string `yaml:"-"` // INKA_ACCESS_KEY
	SiteKey    string `yaml:"-"` // INKA_SITE_KEY, 32 bytes
	SiteID     string `yaml:"-"` // INKA_SITE_ID
	IV         string `yaml:"-"` // INKA_IV, 16 bytes
	SigningKey string `yaml:"-"` // KOLLUS_SECURITY_KEY
	CustomKey  string `yaml:"-"` // KOLLUS_CUSTOM_KEY
}

type Playback struct {
	StreamingHost string        `yaml:"streaming_host"`
	PlayerVersion string        `yaml:"player_version"`
	DebugMode     bool          `yaml:"debug_mode"`
	TokenTTL      time.Duration `yaml:"token_ttl"`

	// Used when a request does not name its own identity.
	DefaultClientUserID    string `yaml:"default_client_user_id"`
	DefaultContentID       string `yaml:"default_content_id"`
	DefaultMediaContentKey string `yaml:"default_media_content_key"`
}

type License struct {
	LicenseURL      string `yaml:"license_url"`
	CertificateURL  string `yaml:"certificate_url"`
	CustomHeaderKey string `yaml:"custom_header_key"`
}

type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	LogLevel   string        `yaml:"log_level"`
	RedisAddr  string        `yaml:"redis_addr"`
	IVMode     crypto.IVMode `yaml:"iv_mode"`

	Playback  Playback              `yaml:"playback"`
	License   License               `yaml:"license"`
	RateLimit ratelimit.LimitConfig `yaml:"rate_limit"`

	Secrets Secrets `yaml:"-"`
}

func Default() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		IVMode:     crypto.IVFixed,
		Playback: Playback{
			StreamingHost:          "v.jp.kollus.com",
			PlayerVersion:          "4.1.34-alpha.11",
			DebugMode:              true,
			TokenTTL:               tokens.DefaultTTL,
			DefaultClientUserID:    "CLIENT_USER_ID",
			DefaultContentID:       "CONTENTS_ID",
			DefaultMediaContentKey: "MEDIA_CONTENT_KEY",
		},
		License: License{
			LicenseURL:      tokens.DefaultLicenseURL,
			CertificateURL:  tokens.DefaultCertificateURL,
			CustomHeaderKey: tokens.DefaultCustomHeaderKey,
		},
		RateLimit: ratelimit.LimitConfig{Rate: 60, Window: time.Minute},
	}
}

// Load reads .env (if present), the YAML file named by CONFIG_FILE (or
// DefaultConfigPath if it exists), then the environment. The result is
// validated; any error is fatal for the caller.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	path, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit {
		path = DefaultConfigPath
	}
	if err := cfg.mergeFile(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.mergeEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.Playback.StreamingHost, "STREAMING_HOST")
	setString(&c.Playback.PlayerVersion, "PLAYER_VERSION")
	setString(&c.Playback.DefaultClientUserID, "PLAYBACK_CLIENT_USER_ID")
	setString(&c.Playback.DefaultContentID, "PLAYBACK_CONTENT_ID")
	setString(&c.Playback.DefaultMediaContentKey, "PLAYBACK_MEDIA_CONTENT_KEY")
	setString(&c.License.LicenseURL, "LICENSE_URL")
	setString(&c.License.CertificateURL, "CERTIFICATE_URL")

	if v := os.Getenv("INKA_IV_MODE"); v != "" {
		mode, err := crypto.ParseIVMode(v)
		if err != nil {
			return fmt.Errorf("%w: INKA_IV_MODE: %v", ErrMalformed, err)
		}
		c.IVMode = mode
	}
	if v := os.Getenv("PLAYBACK_DEBUG_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: PLAYBACK_DEBUG_MODE: %v", ErrMalformed, err)
		}
		c.Playback.DebugMode = b
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: TOKEN_TTL: %v", ErrMalformed, err)
		}
		c.Playback.TokenTTL = d
	}

	c.Secrets = Secrets{
		AccessKey:  os.Getenv("INKA_ACCESS_KEY"),
		SiteKey:    os.Getenv("INKA_SITE_KEY"),
		SiteID:     os.Getenv("INKA_SITE_ID"),
		IV:         os.Getenv("INKA_IV"),
		SigningKey: os.Getenv("KOLLUS_SECURITY_KEY"),
		CustomKey:  os.Getenv("KOLLUS_CUSTOM_KEY"),
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		name, value string
	}{
		{"INKA_ACCESS_KEY", c.Secrets.AccessKey},
		{"INKA_SITE_KEY", c.Secrets.SiteKey},
		{"INKA_SITE_ID", c.Secrets.SiteID},
		{"INKA_IV", c.Secrets.IV},
		{"KOLLUS_SECURITY_KEY", c.Secrets.SigningKey},
		{"KOLLUS_CUSTOM_KEY", c.Secrets.CustomKey},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissing, r.name))
		}
	}

	if k := c.Secrets.SiteKey; k != "" && len(k) != crypto.KeySize {
		errs = append(errs, fmt.Errorf("%w: INKA_SITE_KEY must be %d bytes, got %d", ErrMalformed, crypto.KeySize, len(k)))
	}
	if iv := c.Secrets.IV; iv != "" && len(iv) != crypto.IVSize {
		errs = append(errs, fmt.Errorf("%w: INKA_IV must be %d bytes, got %d", ErrMalformed, crypto.IVSize, len(iv)))
	}
	if _, err := crypto.ParseIVMode(string(c.IVMode)); err != nil {
		errs = append(errs, fmt.Errorf("%w: iv_mode: %v", ErrMalformed, err))
	}
	if c.Playback.StreamingHost == "" {
		errs = append(errs, fmt.Errorf("%w: streaming_host", ErrMissing))
	}
	if c.Playback.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("%w: token_ttl must be positive", ErrMalformed))
	}

	return errors.Join(errs...)
}

// SiteKey builds the payload cipher key from the validated secrets.
func (c *Config) SiteKey() (*crypto.SiteKey, error) {
	return crypto.NewSiteKey(c.Secrets.SiteKey, c.Secrets.IV, c.IVMode)
}

// Endpoints converts the license section for the token manager.
func (c *Config) Endpoints() tokens.Endpoints {
	return tokens.Endpoints{
		LicenseURL:      c.License.LicenseURL,
		CertificateURL:  c.License.CertificateURL,
		CustomHeaderKey: c.License.CustomHeaderKey,
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
