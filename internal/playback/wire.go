package playback

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/technosupport/ts-drm/internal/capability"
	"github.com/technosupport/ts-drm/internal/config"
	"github.com/technosupport/ts-drm/internal/crypto"
	"github.com/technosupport/ts-drm/internal/metrics"
	"github.com/technosupport/ts-drm/internal/payload"
	"github.com/technosupport/ts-drm/internal/tokens"
)

// FromConfig wires a Service from validated configuration. It also returns
// the encryptor and token manager so callers can verify what they issue.
func FromConfig(cfg *config.Config, m *metrics.Collector, log *zap.Logger) (*Service, *payload.Encryptor, *tokens.Manager, error) {
	key, err := cfg.SiteKey()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("site key: %w", err)
	}
	if key.Mode() == crypto.IVFixed && log != nil {
		log.Warn("payload IV is fixed; identical policies encrypt identically")
	}

	enc, err := payload.NewEncryptor(cfg.Secrets.AccessKey, cfg.Secrets.SiteID, key)
	if err != nil {
		return nil, nil, nil, err
	}
	mgr, err := tokens.NewManager(cfg.Secrets.SigningKey, cfg.Secrets.SiteID,
		tokens.WithTTL(cfg.Playback.TokenTTL),
		tokens.WithEndpoints(cfg.Endpoints()),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	svc := NewService(Deps{
		Resolver:  capability.Default(),
		Encryptor: enc,
		Tokens:    mgr,
		Player: PlayerURL{
			StreamingHost: cfg.Playback.StreamingHost,
			CustomKey:     cfg.Secrets.CustomKey,
			PlayerVersion: cfg.Playback.PlayerVersion,
			DebugMode:     cfg.Playback.DebugMode,
		},
		Metrics: m,
		Logger:  log,
	})
	return svc, enc, mgr, nil
}

// DefaultIdentity is the identity used when a request names none.
func DefaultIdentity(cfg *config.Config) Identity {
	return Identity{
		ClientUserID:    cfg.Playback.DefaultClientUserID,
		ContentID:       cfg.Playback.DefaultContentID,
		MediaContentKey: cfg.Playback.DefaultMediaContentKey,
	}
}

// Fill replaces empty fields of i with those of def.
func (i Identity) Fill(def Identity) Identity {
	if i.ClientUserID == "" {
		i.ClientUserID = def.ClientUserID
	}
	if i.ContentID == "" {
		i.ContentID = def.ContentID
	}
	if i.MediaContentKey == "" {
		i.MediaContentKey = def.MediaContentKey
	}
	return i
}
