package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// LiveSettings is the operator-tunable snapshot read once per decision point
// during a call. It is never cached across calls.
type LiveSettings struct {
	BotEnabled       bool `json:"bot_enabled"`
	PastasEnabled    bool `json:"pastas_enabled"`
	DelayPizzasMin   int  `json:"delay_pizzas_min"`
	DelaySchotelsMin int  `json:"delay_schotels_min"`
}

// DefaultLiveSettings returns the settings used when a key has never been
// written by the admin API.
func DefaultLiveSettings() LiveSettings {
	return LiveSettings{
		BotEnabled:       true,
		PastasEnabled:    true,
		DelayPizzasMin:   0,
		DelaySchotelsMin: 0,
	}
}

var ErrInvalidSetting = errors.New("invalid setting")

// ValidateLiveSettings rejects out-of-range delay values before they are
// persisted. Delays are minutes in 0..60.
func ValidateLiveSettings(s LiveSettings) error {
	if s.DelayPizzasMin < 0 || s.DelayPizzasMin > 60 {
		return fmt.Errorf("%w: delay_pizzas_min must be in 0..60, got %d", ErrInvalidSetting, s.DelayPizzasMin)
	}
	if s.DelaySchotelsMin < 0 || s.DelaySchotelsMin > 60 {
		return fmt.Errorf("%w: delay_schotels_min must be in 0..60, got %d", ErrInvalidSetting, s.DelaySchotelsMin)
	}
	return nil
}

type settingsRow struct {
	Key   string `db:"key"`
	Value []byte `db:"value"`
}

const sqlGetLiveSettings = `
SELECT key, value FROM live_settings`

// GetLiveSettings reads all stored settings rows and merges them over the
// defaults, so a key that was never written still has a usable value.
func (s *Store) GetLiveSettings(ctx context.Context) (LiveSettings, error) {
	var rows []settingsRow
	if err := s.db.SelectContext(ctx, &rows, sqlGetLiveSettings); err != nil {
		return LiveSettings{}, fmt.Errorf("failed to get live settings: %w", err)
	}

	settings := DefaultLiveSettings()
	for _, row := range rows {
		if err := applySetting(&settings, row.Key, row.Value); err != nil {
			s.logger.Error(ctx, "skipping malformed live setting "+row.Key, err)
		}
	}
	return settings, nil
}

func applySetting(settings *LiveSettings, key string, value []byte) error {
	switch key {
	case "bot_enabled":
		return json.Unmarshal(value, &settings.BotEnabled)
	case "pastas_enabled":
		return json.Unmarshal(value, &settings.PastasEnabled)
	case "delay_pizzas_min":
		return json.Unmarshal(value, &settings.DelayPizzasMin)
	case "delay_schotels_min":
		return json.Unmarshal(value, &settings.DelaySchotelsMin)
	}
	// Unknown keys are tolerated so old rows never break a deploy.
	return nil
}

const sqlUpsertLiveSetting = `
INSERT INTO live_settings (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`

// UpdateLiveSettings validates and persists a full settings snapshot.
func (s *Store) UpdateLiveSettings(ctx context.Context, settings LiveSettings) error {
	if err := ValidateLiveSettings(settings); err != nil {
		return err
	}

	values := map[string]interface{}{
		"bot_enabled":        settings.BotEnabled,
		"pastas_enabled":     settings.PastasEnabled,
		"delay_pizzas_min":   settings.DelayPizzasMin,
		"delay_schotels_min": settings.DelaySchotelsMin,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settings transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range values {
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to encode setting %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, sqlUpsertLiveSetting, key, encoded); err != nil {
			return fmt.Errorf("failed to upsert setting %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}
