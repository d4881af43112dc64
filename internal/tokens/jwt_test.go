package tokens_test

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/technosupport/ts-drm/internal/capability"
	"github.com/technosupport/ts-drm/internal/tokens"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newManager(t *testing.T, key string, opts ...tokens.Option) *tokens.Manager {
	t.Helper()
	mgr, err := tokens.NewManager(key, "SITE01", append([]tokens.Option{tokens.WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mgr
}

func grant() tokens.Grant {
	return tokens.Grant{
		ClientUserID:    "user-123",
		MediaContentKey: "mc-abc",
		Capability:      capability.Capability{DRM: capability.Widevine, Protocol: capability.DASH},
		Payload:         "eyJkcm1fdHlwZSI6IldpZGV2aW5lIn0=",
	}
}

func TestTokenGeneration(t *testing.T) {
	mgr := newManager(t, "test-secret-key")

	token, err := mgr.Assemble(grant())
	if err != nil {
		t.Fatalf("Failed to assemble token: %v", err)
	}
	if parts := strings.Split(token, "."); len(parts) != 3 {
		t.Fatalf("Expected 3 parts, got %d", len(parts))
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}

	if claims.ClientUserID != "user-123" {
		t.Errorf("Expected cuid user-123, got %s", claims.ClientUserID)
	}
	if claims.Expiry != fixedNow.Add(24*time.Hour).Unix() {
		t.Errorf("Expected expt now+24h, got %d", claims.Expiry)
	}
	if len(claims.MediaContent) != 1 {
		t.Fatalf("Expected 1 media content entry, got %d", len(claims.MediaContent))
	}

	mc := claims.MediaContent[0]
	if mc.MediaContentKey != "mc-abc" {
		t.Errorf("Expected mckey mc-abc, got %s", mc.MediaContentKey)
	}
	if mc.DRMPolicy.Kind != "inka" {
		t.Errorf("Expected kind inka, got %s", mc.DRMPolicy.Kind)
	}
	if mc.DRMPolicy.StreamingType != capability.DASH {
		t.Errorf("Expected dash, got %s", mc.DRMPolicy.StreamingType)
	}
	data := mc.DRMPolicy.Data
	if data.LicenseURL != tokens.DefaultLicenseURL {
		t.Errorf("Unexpected license url %s", data.LicenseURL)
	}
	if data.CertificateURL != tokens.DefaultCertificateURL+"?siteId=SITE01" {
		t.Errorf("Unexpected certificate url %s", data.CertificateURL)
	}
	if data.CustomHeader.Key != "pallycon-customdata-v2" || data.CustomHeader.Value != grant().Payload {
		t.Errorf("Unexpected custom header %+v", data.CustomHeader)
	}
}

func TestWireFormat(t *testing.T) {
	mgr := newManager(t, "test-secret-key")
	token, _ := mgr.Assemble(grant())

	raw, err := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[1])
	if err != nil {
		t.Fatalf("payload segment not base64url: %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"expt", "cuid", "mc"} {
		if _, ok := generic[k]; !ok {
			t.Errorf("Missing claim %q", k)
		}
	}
	if _, ok := generic["exp"]; ok {
		t.Error("Registered exp claim should not be emitted")
	}

	header, _ := base64.RawURLEncoding.DecodeString(strings.Split(token, ".")[0])
	if !strings.Contains(string(header), `"alg":"HS256"`) {
		t.Errorf("Expected HS256 header, got %s", header)
	}
}

func TestInvalidSignature(t *testing.T) {
	mgr1 := newManager(t, "secret-1")
	mgr2 := newManager(t, "secret-2")

	token, _ := mgr1.Assemble(grant())
	_, err := mgr2.ValidateToken(token)
	if !errors.Is(err, tokens.ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong signature, got %v", err)
	}
}

func TestTamperedToken(t *testing.T) {
	mgr := newManager(t, "test-secret-key")
	token, _ := mgr.Assemble(grant())

	parts := strings.Split(token, ".")
	signed := parts[0] + "." + parts[1]

	// Flip one character at several positions across header and claims.
	for _, pos := range []int{1, len(parts[0]) / 2, len(parts[0]) + 5, len(signed) / 2, len(signed) - 2} {
		b := []byte(token)
		if b[pos] == 'A' {
			b[pos] = 'B'
		} else {
			b[pos] = 'A'
		}
		if _, err := mgr.ValidateToken(string(b)); err == nil {
			t.Errorf("Expected tamper at %d to fail validation", pos)
		}
	}

	// Re-signing a modified payload with another key is rejected too.
	forged := newManager(t, "attacker")
	g := grant()
	g.Capability.Protocol = capability.HLS
	other, _ := forged.Assemble(g)
	otherParts := strings.Split(other, ".")
	if _, err := mgr.ValidateToken(parts[0] + "." + otherParts[1] + "." + parts[2]); err == nil {
		t.Error("Expected swapped claims to fail validation")
	}
}

func TestExpiredToken(t *testing.T) {
	mgr := newManager(t, "test-secret-key")
	token, _ := mgr.Assemble(grant())

	later, _ := tokens.NewManager("test-secret-key", "SITE01", tokens.WithClock(func() time.Time {
		return fixedNow.Add(25 * time.Hour)
	}))
	if _, err := later.ValidateToken(token); err == nil {
		t.Error("Expected expired token to fail validation")
	}
}

func TestCustomTTLAndEndpoints(t *testing.T) {
	mgr := newManager(t, "k", tokens.WithTTL(time.Hour), tokens.WithEndpoints(tokens.Endpoints{
		LicenseURL:      "https://license.example/lic",
		CertificateURL:  "https://license.example/cert",
		CustomHeaderKey: "x-custom",
	}))

	claims := mgr.BuildClaims(grant())
	if claims.Expiry != fixedNow.Add(time.Hour).Unix() {
		t.Errorf("Unexpected expiry %d", claims.Expiry)
	}
	data := claims.MediaContent[0].DRMPolicy.Data
	if data.CertificateURL != "https://license.example/cert?siteId=SITE01" {
		t.Errorf("Unexpected certificate url %s", data.CertificateURL)
	}
	if data.CustomHeader.Key != "x-custom" {
		t.Errorf("Unexpected header key %s", data.CustomHeader.Key)
	}
}

func TestNewManager_MissingConfig(t *testing.T) {
	if _, err := tokens.NewManager("", "SITE01"); !errors.Is(err, tokens.ErrMissingSigningKey) {
		t.Errorf("Expected ErrMissingSigningKey, got %v", err)
	}
	if _, err := tokens.NewManager("k", ""); !errors.Is(err, tokens.ErrMissingSiteID) {
		t.Errorf("Expected ErrMissingSiteID, got %v", err)
	}
}
