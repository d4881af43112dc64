package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/technosupport/ts-drm/internal/capability"
	"github.com/technosupport/ts-drm/internal/middleware"
	"github.com/technosupport/ts-drm/internal/payload"
	"github.com/technosupport/ts-drm/internal/playback"
	"github.com/technosupport/ts-drm/internal/policy"
)

type PlaybackHandler struct {
	Service  *playback.Service
	Defaults playback.Identity
	Log      *zap.Logger
}

func NewPlaybackHandler(svc *playback.Service, defaults playback.Identity, log *zap.Logger) *PlaybackHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlaybackHandler{Service: svc, Defaults: defaults, Log: log}
}

func (h *PlaybackHandler) Register(r chi.Router) {
	r.Get("/v1/playback", h.GetPlayback)
	r.Get("/v1/policy", h.GetPolicy)
	r.Get("/v1/capability", h.GetCapability)
}

type PlaybackResponse struct {
	URL    string          `json:"url"`
	JWT    string          `json:"jwt"`
	Report playback.Report `json:"report"`
}

type PolicyResponse struct {
	Level     int                   `json:"hdcp_level"`
	Requested int                   `json:"requested_hdcp_level"`
	Defaulted bool                  `json:"defaulted"`
	Settings  policy.Settings       `json:"settings"`
	Policy    policy.SecurityPolicy `json:"policy"`
	Canonical string                `json:"canonical"`
}

type CapabilityResponse struct {
	UserAgent string `json:"user_agent"`
	capability.Resolution
}

func (h *PlaybackHandler) GetPlayback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level, levelOK := parseLevel(q.Get("hdcp_level"))

	identity := playback.Identity{
		ClientUserID:    q.Get("cuid"),
		ContentID:       q.Get("cid"),
		MediaContentKey: q.Get("mckey"),
	}.Fill(h.Defaults)

	res, err := h.Service.Issue(playback.Request{
		UserAgent: r.UserAgent(),
		HDCPLevel: level,
		Identity:  identity,
	})
	if errors.Is(err, playback.ErrIncompleteIdentity) || errors.Is(err, playback.ErrMalformedIdentity) || errors.Is(err, payload.ErrInvalidIdentity) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Log.Error("issue playback token", zap.Error(err), zap.String("req_id", middleware.RequestID(r.Context())))
		http.Error(w, "failed to issue playback token", http.StatusInternalServerError)
		return
	}

	report, err := playback.NewReport(res)
	if err != nil {
		h.Log.Error("build report", zap.Error(err))
		http.Error(w, "failed to issue playback token", http.StatusInternalServerError)
		return
	}
	if !levelOK {
		report.LevelDefaulted = true
	}

	writeJSON(h.Log, w, http.StatusOK, PlaybackResponse{URL: res.URL, JWT: res.Token, Report: report})
}

func (h *PlaybackHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	level, levelOK := parseLevel(r.URL.Query().Get("hdcp_level"))
	res := policy.Map(level)

	canonical, err := payload.Canonical(res.Policy)
	if err != nil {
		http.Error(w, "failed to serialize policy", http.StatusInternalServerError)
		return
	}

	writeJSON(h.Log, w, http.StatusOK, PolicyResponse{
		Level:     int(res.Level),
		Requested: res.Requested,
		Defaulted: res.Defaulted || !levelOK,
		Settings:  res.Settings,
		Policy:    res.Policy,
		Canonical: string(canonical),
	})
}

func (h *PlaybackHandler) GetCapability(w http.ResponseWriter, r *http.Request) {
	ua := r.UserAgent()
	writeJSON(h.Log, w, http.StatusOK, CapabilityResponse{
		UserAgent:  ua,
		Resolution: h.Service.ResolveCapability(ua),
	})
}

// parseLevel reads the leading optional sign and digits after trimming
// whitespace, so "2.0" and "2 " mean 2. A missing value is 0. A value with no
// leading digits is also 0 but reports false so the caller can flag it.
func parseLevel(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}

	start := 0
	if s[0] == '+' || s[0] == '-' {
		start = 1
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}

	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return v, true
}

func writeJSON(log *zap.Logger, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response", zap.Error(err))
	}
}
