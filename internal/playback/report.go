package playback

import (
	"github.com/technosupport/ts-drm/internal/capability"
	"github.com/technosupport/ts-drm/internal/policy"
)

// Report is the diagnostic summary rendered next to the player.
type Report struct {
	DRMType             capability.DRM      `json:"drm_type"`
	StreamingType       capability.Protocol `json:"streaming_type"`
	MatchedToken        string              `json:"matched_token,omitempty"`
	Override            string              `json:"override,omitempty"`
	CapabilityDefaulted bool                `json:"capability_defaulted"`

	HDCPLevel          int             `json:"hdcp_level"`
	RequestedHDCPLevel int             `json:"requested_hdcp_level"`
	LevelDefaulted     bool            `json:"hdcp_level_defaulted"`
	Settings           policy.Settings `json:"hdcp"`

	PolicyJSON string `json:"policy_json"`
	JWT        string `json:"jwt"`
	FinalURL   string `json:"final_url"`
}

func NewReport(r *Result) (Report, error) {
	pj, err := PolicyJSON(r.Policy.Policy)
	if err != nil {
		return Report{}, err
	}

	return Report{
		DRMType:             r.Capability.Capability.DRM,
		StreamingType:       r.Capability.Capability.Protocol,
		MatchedToken:        r.Capability.Source.Token,
		Override:            r.Capability.Source.Override,
		CapabilityDefaulted: r.Capability.Defaulted,

		HDCPLevel:          int(r.Policy.Level),
		RequestedHDCPLevel: r.Policy.Requested,
		LevelDefaulted:     r.Policy.Defaulted,
		Settings:           r.Policy.Settings,

		PolicyJSON: pj,
		JWT:        r.Token,
		FinalURL:   r.URL,
	}, nil
}
