package handler

import (
	"net/http"
	"strings"

	"voicebot-server/internal/callflow"
	openaiclient "voicebot-server/internal/clients/openai"
	"voicebot-server/internal/menu"
	"voicebot-server/internal/observability"
	"voicebot-server/internal/store"

	"github.com/gorilla/websocket"
)

// Config carries the call-facing settings the handlers need.
type Config struct {
	// PublicBaseURL is the externally reachable https base URL, no trailing
	// slash. The media-stream WebSocket URL is derived from it.
	PublicBaseURL  string
	RealtimeModel  string
	Voice          string
	Language       string
	RestaurantName string
}

type Handler struct {
	cfg      Config
	logger   *observability.Logger
	realtime *openaiclient.RealtimeClient
	speech   *openaiclient.SpeechClient
	rules    *callflow.Rules
	catalog  *menu.Catalog
	store    *store.Store
}

func New(cfg Config, realtime *openaiclient.RealtimeClient, speech *openaiclient.SpeechClient,
	rules *callflow.Rules, catalog *menu.Catalog, st *store.Store, logger *observability.Logger) Handler {
	return Handler{
		cfg:      cfg,
		logger:   logger,
		realtime: realtime,
		speech:   speech,
		rules:    rules,
		catalog:  catalog,
		store:    st,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Twilio connects from its own infrastructure without an Origin
		// header the upgrader could validate.
		return true
	},
}

// mediaStreamURL converts the public base URL into the wss endpoint Twilio
// connects its media stream to.
func (h *Handler) mediaStreamURL() string {
	base := strings.TrimSuffix(h.cfg.PublicBaseURL, "/")
	base = strings.TrimPrefix(base, "https://")
	base = strings.TrimPrefix(base, "http://")
	return "wss://" + base + "/api/phone/voice-agent"
}

// instructions is the fixed realtime system prompt. The conversation content
// itself comes from the flow as literal sentences per response.
func (h *Handler) instructions() string {
	return "Je bent Sara, de telefonische assistent van " + h.cfg.RestaurantName + ". " +
		"Spreek uitsluitend Nederlands, kort en vriendelijk. " +
		"Wanneer een antwoord letterlijk wordt aangeleverd, spreek het exact zo uit, zonder toevoegingen."
}
