package payload

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/technosupport/ts-drm/internal/capability"
	"github.com/technosupport/ts-drm/internal/crypto"
	"github.com/technosupport/ts-drm/internal/policy"
)

// TimestampLayout is UTC with a literal Z, second precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

var (
	ErrMissingAccessKey = errors.New("payload: access key not configured")
	ErrMissingSiteID    = errors.New("payload: site id not configured")
	ErrIntegrity        = errors.New("payload: integrity hash mismatch")
	ErrMalformed        = errors.New("payload: malformed record")
	ErrInvalidIdentity  = errors.New("payload: user id and content id must be valid UTF-8")
)

// Record is the outer customdata record sent to the license server. Field
// order is part of the wire format.
type Record struct {
	DRMType   capability.DRM `json:"drm_type"`
	SiteID    string         `json:"site_id"`
	UserID    string         `json:"user_id"`
	CID       string         `json:"cid"`
	Token     string         `json:"token"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
}

// Sealed is one encrypted policy. Encoded is what goes into the custom header.
type Sealed struct {
	Record    Record
	Plaintext []byte
	Encoded   string
}

type Option func(*Encryptor)

// WithClock replaces time.Now. Tests use it to pin the timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Encryptor) { e.now = now }
}

type Encryptor struct {
	accessKey string
	siteID    string
	key       *crypto.SiteKey
	now       func() time.Time
}

func NewEncryptor(accessKey, siteID string, key *crypto.SiteKey, opts ...Option) (*Encryptor, error) {
	if accessKey == "" {
		return nil, ErrMissingAccessKey
	}
	if siteID == "" {
		return nil, ErrMissingSiteID
	}
	if key == nil {
		return nil, crypto.ErrSiteKeyUnset
	}

	e := &Encryptor{accessKey: accessKey, siteID: siteID, key: key, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Encryptor) SiteID() string {
	return e.siteID
}

// Encrypt serializes p, seals it under the site key and wraps it in a hashed
// record. Nothing is returned on failure.
func (e *Encryptor) Encrypt(drm capability.DRM, userID, contentID string, p policy.SecurityPolicy) (*Sealed, error) {
	// encoding/json would rewrite invalid bytes, leaving a hash over different input.
	if !utf8.ValidString(userID) || !utf8.ValidString(contentID) {
		return nil, ErrInvalidIdentity
	}

	plain, err := Canonical(p)
	if err != nil {
		return nil, fmt.Errorf("serialize policy: %w", err)
	}

	ct, err := e.key.Seal(plain)
	if err != nil {
		return nil, fmt.Errorf("encrypt policy: %w", err)
	}

	rec := Record{
		DRMType:   drm,
		SiteID:    e.siteID,
		UserID:    userID,
		CID:       contentID,
		Token:     base64.StdEncoding.EncodeToString(ct),
		Timestamp: e.now().UTC().Format(TimestampLayout),
	}
	rec.Hash = IntegrityHash(e.accessKey, rec)

	outer, err := marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("serialize record: %w", err)
	}

	return &Sealed{
		Record:    rec,
		Plaintext: plain,
		Encoded:   base64.StdEncoding.EncodeToString(outer),
	}, nil
}

// Verify recomputes the integrity hash of r.
func (e *Encryptor) Verify(r Record) error {
	want := IntegrityHash(e.accessKey, r)
	if subtle.ConstantTimeCompare([]byte(want), []byte(r.Hash)) != 1 {
		return ErrIntegrity
	}
	return nil
}

// Open decrypts the policy carried by r after checking its hash.
func (e *Encryptor) Open(r Record) ([]byte, error) {
	if err := e.Verify(r); err != nil {
		return nil, err
	}
	ct, err := base64.StdEncoding.DecodeString(r.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: token: %v", ErrMalformed, err)
	}
	return e.key.Open(ct)
}

// Canonical is the byte form that is both encrypted and, through the
// ciphertext, hashed. Slashes and HTML characters are left unescaped.
func Canonical(p policy.SecurityPolicy) ([]byte, error) {
	return marshal(p)
}

// IntegrityHash is base64(SHA-256(accessKey|drm|site|user|cid|token|timestamp))
// with the fields concatenated without separators.
func IntegrityHash(accessKey string, r Record) string {
	sum := crypto.Digest(accessKey, string(r.DRMType), r.SiteID, r.UserID, r.CID, r.Token, r.Timestamp)
	return base64.StdEncoding.EncodeToString(sum)
}

// Decode parses the base64 custom header value back into a Record.
func Decode(encoded string) (Record, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return r, nil
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
