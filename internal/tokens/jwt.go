package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/technosupport/ts-drm/internal/capability"
)

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrMissingSigningKey = errors.New("signing key not configured")
	ErrMissingSiteID     = errors.New("site id not configured")
)

const (
	DefaultTTL = 24 * time.Hour

	// PolicyKind tags the DRM vendor for the streaming platform.
	PolicyKind = "inka"

	DefaultLicenseURL      = "https://license.pallycon.com/ri/licenseManager.do"
	DefaultCertificateURL  = "https://license.pallycon.com/ri/fpsKeyManager.do"
	DefaultCustomHeaderKey = "pallycon-customdata-v2"
)

// Claims is the playback authorization the streaming platform consumes.
// Expiry travels as "expt", not the registered "exp".
type Claims struct {
	Expiry       int64          `json:"expt"`
	ClientUserID string         `json:"cuid"`
	MediaContent []MediaContent `json:"mc"`
}

type MediaContent struct {
	MediaContentKey string    `json:"mckey"`
	DRMPolicy       DRMPolicy `json:"drm_policy"`
}

type DRMPolicy struct {
	Kind          string              `json:"kind"`
	StreamingType capability.Protocol `json:"streaming_type"`
	Data          DRMPolicyData       `json:"data"`
}

type DRMPolicyData struct {
	LicenseURL     string       `json:"license_url"`
	CertificateURL string       `json:"certificate_url"`
	CustomHeader   CustomHeader `json:"custom_header"`
}

type CustomHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Claims implements jwt.Claims; only expiry is carried.
func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.Expiry == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.Expiry, 0)), nil
}
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return "", nil }
func (c Claims) GetSubject() (string, error)             { return c.ClientUserID, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// Endpoints are the license server URLs embedded in every token.
type Endpoints struct {
	LicenseURL      string
	CertificateURL  string
	CustomHeaderKey string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		LicenseURL:      DefaultLicenseURL,
		CertificateURL:  DefaultCertificateURL,
		CustomHeaderKey: DefaultCustomHeaderKey,
	}
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithEndpoints(e Endpoints) Option {
	return func(m *Manager) { m.endpoints = e }
}

type Manager struct {
	signingKey []byte
	siteID     string
	endpoints  Endpoints
	ttl        time.Duration
	now        func() time.Time
}

func NewManager(signingKey, siteID string, opts ...Option) (*Manager, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	if siteID == "" {
		return nil, ErrMissingSiteID
	}

	m := &Manager{
		signingKey: []byte(signingKey),
		siteID:     siteID,
		endpoints:  DefaultEndpoints(),
		ttl:        DefaultTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Grant is everything one token authorizes.
type Grant struct {
	ClientUserID    string
	MediaContentKey string
	Capability      capability.Capability
	// Payload is the encoded customdata record from the payload package.
	Payload string
}

// BuildClaims lays out the claim tree for g without signing it.
func (m *Manager) BuildClaims(g Grant) Claims {
	return Claims{
		Expiry:       m.now().Add(m.ttl).Unix(),
		ClientUserID: g.ClientUserID,
		MediaContent: []MediaContent{{
			MediaContentKey: g.MediaContentKey,
			DRMPolicy: DRMPolicy{
				Kind:          PolicyKind,
				StreamingType: g.Capability.Protocol,
				Data: DRMPolicyData{
					LicenseURL:     m.endpoints.LicenseURL,
					CertificateURL: m.certificateURL(),
					CustomHeader: CustomHeader{
						Key:   m.endpoints.CustomHeaderKey,
						Value: g.Payload,
					},
				},
			},
		}},
	}
}

// Assemble signs the claims for g with HS256.
func (m *Manager) Assemble(g Grant) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, m.BuildClaims(g))
	s, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// ValidateToken checks signature and expiry the way the streaming platform does.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) certificateURL() string {
	return m.endpoints.CertificateURL + "?siteId=" + m.siteID
}
