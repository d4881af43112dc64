package policy

import "strconv"

type Level int

const (
	LevelNone   Level = 0
	LevelHDCP14 Level = 1
	LevelHDCP22 Level = 2
)

// Settings is the per-level summary shown to operators alongside a token.
type Settings struct {
	WidevineHDCP   HDCPVersion `json:"widevine_hdcp"`
	PlayReadyHDCP  HDCPVersion `json:"playready_hdcp"`
	PlayReadyLevel int         `json:"playready_level"`
	FairPlayHDCP   int         `json:"fairplay_hdcp"`
	DisableAnalog  bool        `json:"disable_analog"`
	Label          string      `json:"label"`
}

var levels = map[Level]Settings{
	LevelNone: {
		WidevineHDCP:   HDCPNone,
		PlayReadyHDCP:  HDCPNone,
		PlayReadyLevel: 150,
		FairPlayHDCP:   FairPlayNoEnforcement,
		DisableAnalog:  false,
		Label:          "no HDCP",
	},
	LevelHDCP14: {
		WidevineHDCP:   HDCPV1,
		PlayReadyHDCP:  HDCPV1,
		PlayReadyLevel: 2000,
		FairPlayHDCP:   FairPlayHDCPType0,
		DisableAnalog:  false,
		Label:          "HDCP 1.4",
	},
	LevelHDCP22: {
		WidevineHDCP:   HDCPV2_2,
		PlayReadyHDCP:  HDCPV2_2,
		PlayReadyLevel: 3000,
		FairPlayHDCP:   FairPlayHDCPType1,
		DisableAnalog:  true,
		Label:          "HDCP 2.2",
	},
}

func (l Level) Valid() bool {
	_, ok := levels[l]
	return ok
}

func (l Level) String() string {
	return strconv.Itoa(int(l))
}

// Normalize coerces anything outside 0..2 to LevelNone.
func Normalize(requested int) (Level, bool) {
	l := Level(requested)
	if !l.Valid() {
		return LevelNone, true
	}
	return l, false
}

// SettingsFor returns the summary for requested, with the same fallback as Map.
func SettingsFor(requested int) Settings {
	l, _ := Normalize(requested)
	return levels[l]
}

// Resolution is the mapped policy together with how the level was chosen.
type Resolution struct {
	Policy    SecurityPolicy `json:"policy"`
	Settings  Settings       `json:"settings"`
	Level     Level          `json:"level"`
	Requested int            `json:"requested"`
	Defaulted bool           `json:"defaulted"`
}

// Map builds the security policy for requested. Out-of-range levels silently
// map to LevelNone; Defaulted records when that happened.
func Map(requested int) Resolution {
	l, defaulted := Normalize(requested)
	s := levels[l]

	return Resolution{
		Policy:    build(l, s),
		Settings:  s,
		Level:     l,
		Requested: requested,
		Defaulted: defaulted,
	}
}

func build(l Level, s Settings) SecurityPolicy {
	return SecurityPolicy{
		PolicyVersion: Version,
		PlaybackPolicy: PlaybackPolicy{
			Persistent:      false,
			LicenseDuration: LicenseDurationSeconds,
		},
		SecurityPolicy: []TrackPolicy{{
			TrackType: TrackTypeAll,
			Widevine: Widevine{
				SecurityLevel:            widevineSecurityLevel,
				RequiredHDCPVersion:      s.WidevineHDCP,
				RequiredCGMSFlags:        CGMSNone,
				DisableAnalogOutput:      s.DisableAnalog,
				HDCPSRMRule:              HDCPSRMRuleNone,
				OverrideDeviceRevocation: true,
			},
			PlayReady: PlayReady{
				SecurityLevel:               s.PlayReadyLevel,
				DigitalVideoProtectionLevel: playreadyProtection,
				AnalogVideoProtectionLevel:  playreadyProtection,
				DigitalAudioProtectionLevel: playreadyProtection,
				RequireHDCPType1:            l >= LevelHDCP22,
			},
			FairPlay: FairPlay{
				HDCPEnforcement: s.FairPlayHDCP,
				AllowAirPlay:    false,
				AllowAVAdapter:  false,
			},
		}},
	}
}
