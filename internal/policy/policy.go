package policy

// Field order in these structs is the canonical serialization order. Changing
// it changes every integrity hash downstream.

const (
	Version                = 2
	LicenseDurationSeconds = 86400

	TrackTypeAll = "ALL"

	CGMSNone        = "CGMS_NONE"
	HDCPSRMRuleNone = "HDCP_SRM_RULE_NONE"

	widevineSecurityLevel = 1
	playreadyProtection   = 100
)

type HDCPVersion string

const (
	HDCPNone HDCPVersion = "HDCP_NONE"
	HDCPV1   HDCPVersion = "HDCP_V1"
	HDCPV2_2 HDCPVersion = "HDCP_V2_2"
)

// FairPlay hdcp_enforcement values.
const (
	FairPlayNoEnforcement = -1
	FairPlayHDCPType0     = 0
	FairPlayHDCPType1     = 1
)

type SecurityPolicy struct {
	PolicyVersion  int            `json:"policy_version"`
	PlaybackPolicy PlaybackPolicy `json:"playback_policy"`
	SecurityPolicy []TrackPolicy  `json:"security_policy"`
}

type PlaybackPolicy struct {
	Persistent      bool `json:"persistent"`
	LicenseDuration int  `json:"license_duration"`
}

type TrackPolicy struct {
	TrackType string    `json:"track_type"`
	Widevine  Widevine  `json:"widevine"`
	PlayReady PlayReady `json:"playready"`
	FairPlay  FairPlay  `json:"fairplay"`
}

type Widevine struct {
	SecurityLevel            int         `json:"security_level"`
	RequiredHDCPVersion      HDCPVersion `json:"required_hdcp_version"`
	RequiredCGMSFlags        string      `json:"required_cgms_flags"`
	DisableAnalogOutput      bool        `json:"disable_analog_output"`
	HDCPSRMRule              string      `json:"hdcp_srm_rule"`
	OverrideDeviceRevocation bool        `json:"override_device_revocation"`
}

type PlayReady struct {
	SecurityLevel               int  `json:"security_level"`
	DigitalVideoProtectionLevel int  `json:"digital_video_protection_level"`
	AnalogVideoProtectionLevel  int  `json:"analog_video_protection_level"`
	DigitalAudioProtectionLevel int  `json:"digital_audio_protection_level"`
	RequireHDCPType1            bool `json:"require_hdcp_type_1"`
}

type FairPlay struct {
	HDCPEnforcement int  `json:"hdcp_enforcement"`
	AllowAirPlay    bool `json:"allow_airplay"`
	AllowAVAdapter  bool `json:"allow_av_adapter"`
}

// Track returns the single track entry. Policies built by Map always carry
// exactly one.
func (p SecurityPolicy) Track() TrackPolicy {
	if len(p.SecurityPolicy) == 0 {
		return TrackPolicy{}
	}
	return p.SecurityPolicy[0]
}
