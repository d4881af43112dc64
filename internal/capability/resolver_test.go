package capability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/technosupport/ts-drm/internal/capability"
)

const (
	uaChrome     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
	uaEdgeWin    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36 Edg/118.0.2088.46"
	uaEdgeMac    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36 Edg/118.0.2088.46"
	uaEdgeLegacy = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/70.0.3538.102 Safari/537.36 Edge/18.19041"
	uaSafari     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	uaCriOS      = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/118.0.5993.69 Mobile/15E148 Safari/604.1"
	uaFirefox    = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/118.0"
	uaIE11       = "Mozilla/5.0 (Windows NT 10.0; WOW64; Trident/7.0; rv:11.0) like Gecko"
	uaIE10       = "Mozilla/5.0 (compatible; MSIE 10.0; Windows NT 6.2)"
	uaOperaOld   = "Opera/9.80 (Windows NT 6.1) Presto/2.12.388 Version/12.16"
)

func TestResolve_Table(t *testing.T) {
	widevine := capability.Capability{DRM: capability.Widevine, Protocol: capability.DASH}
	playready := capability.Capability{DRM: capability.PlayReady, Protocol: capability.DASH}
	fairplay := capability.Capability{DRM: capability.FairPlay, Protocol: capability.HLS}

	cases := []struct {
		name  string
		ua    string
		want  capability.Capability
		token string
	}{
		{"chrome", uaChrome, widevine, "Chrome"},
		{"chromium edge windows", uaEdgeWin, playready, "Edg"},
		{"legacy edge", uaEdgeLegacy, playready, "Edge"},
		{"safari", uaSafari, fairplay, "Safari"},
		{"chrome on ios", uaCriOS, fairplay, "CriOS"},
		{"firefox", uaFirefox, widevine, "Firefox"},
		{"ie11", uaIE11, playready, "Trident"},
		{"ie10", uaIE10, playready, "MSIE"},
		{"presto opera", uaOperaOld, widevine, "Opera"},
	}

	r := capability.Default()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := r.Resolve(tc.ua)
			assert.True(t, res.Known())
			assert.Equal(t, tc.want, res.Capability)
			assert.Equal(t, tc.token, res.Token)
			assert.Empty(t, res.Override)
		})
	}
}

func TestResolve_MacEdgeOverride(t *testing.T) {
	r := capability.Default()

	for _, ua := range []string{
		uaEdgeMac,
		"Mozilla/5.0 (Macintosh) Edge/18.0",
		"Macintosh Chrome Edg",
	} {
		res := r.Resolve(ua)
		assert.Equal(t, capability.Capability{DRM: capability.Widevine, Protocol: capability.DASH}, res.Capability, ua)
		assert.Equal(t, "macos-edge", res.Override)
	}

	// Macintosh alone does not trigger the override.
	res := r.Resolve(uaSafari)
	assert.Equal(t, capability.FairPlay, res.Capability.DRM)
	assert.Empty(t, res.Override)
}

func TestResolve_Unknown(t *testing.T) {
	r := capability.Default()

	assert.Equal(t, capability.Unknown, r.Resolve(""))
	assert.Equal(t, capability.Unknown, r.Resolve("curl/8.4.0"))
	// Matching is case-sensitive.
	assert.Equal(t, capability.Unknown, r.Resolve("mozilla chrome firefox"))
}

func TestResolve_Deterministic(t *testing.T) {
	r := capability.Default()
	first := r.Resolve(uaEdgeWin)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, r.Resolve(uaEdgeWin))
	}
}

func TestOrDefault(t *testing.T) {
	r := capability.Default()

	res := r.Resolve("").OrDefault(capability.Fallback)
	assert.True(t, res.Defaulted)
	assert.Equal(t, capability.Fallback, res.Capability)
	assert.Equal(t, capability.Widevine, res.Capability.DRM)
	assert.Equal(t, capability.DASH, res.Capability.Protocol)

	res = r.Resolve(uaSafari).OrDefault(capability.Fallback)
	assert.False(t, res.Defaulted)
	assert.Equal(t, capability.FairPlay, res.Capability.DRM)
}

func TestResolve_CustomTable(t *testing.T) {
	r := capability.NewResolver([]capability.Rule{
		{Token: "SmartTV", Result: capability.Capability{DRM: capability.PlayReady, Protocol: capability.DASH}},
	}, nil)

	assert.Equal(t, capability.PlayReady, r.Resolve("Tizen SmartTV").Capability.DRM)
	assert.False(t, r.Resolve(uaChrome).Known())
}
