package playback

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/technosupport/ts-drm/internal/capability"
	"github.com/technosupport/ts-drm/internal/metrics"
	"github.com/technosupport/ts-drm/internal/payload"
	"github.com/technosupport/ts-drm/internal/policy"
	"github.com/technosupport/ts-drm/internal/tokens"
)

var (
	ErrIncompleteIdentity = errors.New("client user id, content id and media content key are required")
	ErrMalformedIdentity  = errors.New("client user id, content id and media content key must be valid UTF-8")
)

// Identity names who is watching what.
type Identity struct {
	ClientUserID    string `json:"cuid"`
	ContentID       string `json:"cid"`
	MediaContentKey string `json:"mckey"`
}

func (i Identity) complete() bool {
	return i.ClientUserID != "" && i.ContentID != "" && i.MediaContentKey != ""
}

func (i Identity) validUTF8() bool {
	return utf8.ValidString(i.ClientUserID) && utf8.ValidString(i.ContentID) && utf8.ValidString(i.MediaContentKey)
}

type Request struct {
	UserAgent string
	HDCPLevel int
	Identity  Identity
}

// PlayerURL describes the streaming platform's player endpoint.
type PlayerURL struct {
	StreamingHost string
	CustomKey     string
	PlayerVersion string
	DebugMode     bool
}

// Build returns https://<host>/s?jwt=…&custom_key=…&debug_mode=…&s=0&player_v4_ver=…
// with parameters in that order.
func (p PlayerURL) Build(jwt string) string {
	u := url.URL{Scheme: "https", Host: p.StreamingHost, Path: "/s"}
	u.RawQuery = "jwt=" + url.QueryEscape(jwt) +
		"&custom_key=" + url.QueryEscape(p.CustomKey) +
		"&debug_mode=" + strconv.FormatBool(p.DebugMode) +
		"&s=0" +
		"&player_v4_ver=" + url.QueryEscape(p.PlayerVersion)
	return u.String()
}

type Result struct {
	Token      string
	URL        string
	Capability capability.Resolution
	Policy     policy.Resolution
	Payload    *payload.Sealed
}

type Service struct {
	resolver  *capability.Resolver
	fallback  capability.Capability
	encryptor *payload.Encryptor
	tokens    *tokens.Manager
	player    PlayerURL
	metrics   *metrics.Collector
	log       *zap.Logger
}

type Deps struct {
	Resolver  *capability.Resolver
	Encryptor *payload.Encryptor
	Tokens    *tokens.Manager
	Player    PlayerURL
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

func NewService(d Deps) *Service {
	if d.Resolver == nil {
		d.Resolver = capability.Default()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		resolver:  d.Resolver,
		fallback:  capability.Fallback,
		encryptor: d.Encryptor,
		tokens:    d.Tokens,
		player:    d.Player,
		metrics:   d.Metrics,
		log:       d.Logger,
	}
}

// ResolveCapability applies the documented fallback for unknown clients.
func (s *Service) ResolveCapability(userAgent string) capability.Resolution {
	return s.resolver.Resolve(userAgent).OrDefault(s.fallback)
}

// Issue runs resolver and mapper, seals the policy and signs the token. On
// any failure nothing is returned.
func (s *Service) Issue(req Request) (*Result, error) {
	if !req.Identity.complete() {
		return nil, ErrIncompleteIdentity
	}
	if !req.Identity.validUTF8() {
		return nil, ErrMalformedIdentity
	}

	capRes := s.ResolveCapability(req.UserAgent)
	polRes := policy.Map(req.HDCPLevel)

	if capRes.Defaulted {
		s.metrics.Fallback(metrics.FallbackCapability)
		s.log.Info("unrecognised user agent, using fallback capability",
			zap.String("user_agent", req.UserAgent),
			zap.String("drm_type", string(capRes.Capability.DRM)))
	}
	if polRes.Defaulted {
		s.metrics.Fallback(metrics.FallbackHDCPLevel)
		s.log.Info("hdcp level out of range, using level 0", zap.Int("requested", req.HDCPLevel))
	}

	sealed, err := s.encryptor.Encrypt(capRes.Capability.DRM, req.Identity.ClientUserID, req.Identity.ContentID, polRes.Policy)
	if err != nil {
		s.metrics.Failure("encrypt")
		return nil, fmt.Errorf("encrypt policy: %w", err)
	}

	jwt, err := s.tokens.Assemble(tokens.Grant{
		ClientUserID:    req.Identity.ClientUserID,
		MediaContentKey: req.Identity.MediaContentKey,
		Capability:      capRes.Capability,
		Payload:         sealed.Encoded,
	})
	if err != nil {
		s.metrics.Failure("sign")
		return nil, fmt.Errorf("assemble token: %w", err)
	}

	s.metrics.TokenIssued(string(capRes.Capability.DRM), string(capRes.Capability.Protocol), int(polRes.Level))
	s.log.Debug("playback token issued",
		zap.String("drm_type", string(capRes.Capability.DRM)),
		zap.String("streaming_type", string(capRes.Capability.Protocol)),
		zap.Int("hdcp_level", int(polRes.Level)),
		zap.String("cuid", req.Identity.ClientUserID))

	return &Result{
		Token:      jwt,
		URL:        s.player.Build(jwt),
		Capability: capRes,
		Policy:     polRes,
		Payload:    sealed,
	}, nil
}

// PolicyJSON is the indented form of the policy for operator display. It is
// not the canonical form that gets encrypted.
func PolicyJSON(p policy.SecurityPolicy) (string, error) {
	b, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
