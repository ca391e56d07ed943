package bootstrap

import (
	"context"
	"fmt"

	"voicebot-server/internal/callflow"
	"voicebot-server/internal/config"
	"voicebot-server/internal/menu"
	"voicebot-server/internal/observability"
	"voicebot-server/internal/store"

	adminHandler "voicebot-server/internal/admin/handler"
	adminProcessor "voicebot-server/internal/admin/processor"
	openaiclient "voicebot-server/internal/clients/openai"
	voicecallHandler "voicebot-server/internal/voicecall/handler"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store   store.Store
	Logger  *observability.Logger
	Catalog *menu.Catalog
	Rules   *callflow.Rules

	// Handlers
	VoiceCallHandler voicecallHandler.Handler
	AdminHandler     adminHandler.Handler
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	var err error
	deps.Store, err = store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := deps.Store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	// Load the menu catalog
	deps.Catalog, err = menu.Load(cfg.Restaurant.MenuPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}

	// Initialize business rules
	deps.Rules, err = callflow.NewRules(cfg.Restaurant.Name, cfg.Restaurant.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rules: %w", err)
	}

	// Initialize speech-AI clients
	realtimeClient, err := openaiclient.NewRealtimeClient(cfg.OpenAI.APIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create realtime client: %w", err)
	}
	speechClient, err := openaiclient.NewSpeechClient(cfg.OpenAI.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	// Initialize voice call handler
	deps.VoiceCallHandler = voicecallHandler.New(
		voicecallHandler.Config{
			PublicBaseURL:  cfg.Twilio.PublicBaseURL,
			RealtimeModel:  cfg.OpenAI.RealtimeModel,
			Voice:          cfg.OpenAI.Voice,
			Language:       cfg.OpenAI.Language,
			RestaurantName: cfg.Restaurant.Name,
		},
		realtimeClient,
		speechClient,
		deps.Rules,
		deps.Catalog,
		&deps.Store,
		logger,
	)

	// Initialize admin processor and handler
	adminProc := adminProcessor.New(&deps.Store, cfg.Admin.JWTSecret, cfg.Admin.PasswordHash, logger)
	deps.AdminHandler = adminHandler.New(adminProc, logger)

	return deps, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if db := d.Store.DB(); db != nil {
		db.Close()
	}
}
