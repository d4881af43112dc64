package capability

import "strings"

type DRM string

const (
	Widevine  DRM = "Widevine"
	PlayReady DRM = "PlayReady"
	FairPlay  DRM = "FairPlay"
)

type Protocol string

const (
	DASH Protocol = "dash"
	HLS  Protocol = "hls"
)

// Capability is the (DRM technology, streaming protocol) pair a client can play.
type Capability struct {
	DRM      DRM      `json:"drm_type"`
	Protocol Protocol `json:"streaming_type"`
}

var (
	widevineDash  = Capability{DRM: Widevine, Protocol: DASH}
	playreadyDash = Capability{DRM: PlayReady, Protocol: DASH}
	fairplayHLS   = Capability{DRM: FairPlay, Protocol: HLS}
)

// Fallback is what callers use when a descriptor cannot be resolved.
var Fallback = widevineDash

// Rule maps a browser token found in the descriptor to a capability.
type Rule struct {
	Token  string
	Result Capability
}

// Override replaces the table result when every token in Contains is present.
type Override struct {
	Name     string
	Contains []string
	Result   Capability
}

// DefaultRules is evaluated in order; the first token found wins. Chromium
// Edge carries both "Chrome" and "Edg", so Edge entries sit before Chrome.
var DefaultRules = []Rule{
	{Token: "CriOS", Result: fairplayHLS},
	{Token: "Edge", Result: playreadyDash},
	{Token: "Edg", Result: playreadyDash},
	{Token: "Firefox", Result: widevineDash},
	{Token: "Chrome", Result: widevineDash},
	{Token: "Safari", Result: fairplayHLS},
	{Token: "Opera", Result: widevineDash},
	{Token: "MSIE", Result: playreadyDash},
	{Token: "Trident", Result: playreadyDash},
}

// DefaultOverrides: Edge on macOS has no PlayReady CDM.
var DefaultOverrides = []Override{
	{Name: "macos-edge", Contains: []string{"Macintosh", "Edg"}, Result: widevineDash},
}

// Result is the outcome of resolving one descriptor. The zero value is Unknown.
type Result struct {
	Capability Capability `json:"capability"`
	Token      string     `json:"matched_token,omitempty"`
	Override   string     `json:"override,omitempty"`
}

// Unknown is returned for empty or unrecognised descriptors.
var Unknown = Result{}

func (r Result) Known() bool {
	return r.Token != ""
}

// Resolution is a Result with the caller's fallback applied.
type Resolution struct {
	Capability Capability `json:"capability"`
	Defaulted  bool       `json:"defaulted"`
	Source     Result     `json:"source"`
}

// OrDefault applies fallback when r is Unknown and records that it did so.
func (r Result) OrDefault(fallback Capability) Resolution {
	if !r.Known() {
		return Resolution{Capability: fallback, Defaulted: true, Source: r}
	}
	return Resolution{Capability: r.Capability, Source: r}
}

type Resolver struct {
	rules     []Rule
	overrides []Override
}

func NewResolver(rules []Rule, overrides []Override) *Resolver {
	return &Resolver{rules: rules, overrides: overrides}
}

// Default returns a resolver over DefaultRules and DefaultOverrides.
func Default() *Resolver {
	return NewResolver(DefaultRules, DefaultOverrides)
}

// Resolve matches descriptor against the rule table, then applies overrides.
// Matching is case-sensitive.
func (r *Resolver) Resolve(descriptor string) Result {
	if descriptor == "" {
		return Unknown
	}

	var res Result
	for _, rule := range r.rules {
		if strings.Contains(descriptor, rule.Token) {
			res = Result{Capability: rule.Result, Token: rule.Token}
			break
		}
	}
	if !res.Known() {
		return Unknown
	}

	for _, o := range r.overrides {
		if containsAll(descriptor, o.Contains) {
			res.Capability = o.Result
			res.Override = o.Name
			break
		}
	}
	return res
}

func containsAll(s string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return len(tokens) > 0
}
