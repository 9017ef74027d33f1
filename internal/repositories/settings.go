package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
)

// SettingsRepository stores [models.Settings] as key/value rows per user.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository creates a new SettingsRepository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the user's settings overlaid on the defaults.
// A user with no stored rows gets [models.DefaultSettings].
func (r *SettingsRepository) Get(ctx context.Context, userID string) (models.Settings, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM user_settings WHERE user_id = ?`, userID)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	pairs := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return models.Settings{}, fmt.Errorf("failed to scan setting: %w", err)
		}
		pairs[k] = v
	}
	if err := rows.Err(); err != nil {
		return models.Settings{}, fmt.Errorf("row iteration error: %w", err)
	}

	return models.SettingsFromPairs(pairs), nil
}

// Save validates and upserts every setting for the user.
func (r *SettingsRepository) Save(ctx context.Context, userID string, s models.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for k, v := range s.Pairs() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_settings (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, userID, k, v, now); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}
	return nil
}

// Reset removes all stored settings so the user falls back to defaults.
func (r *SettingsRepository) Reset(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_settings WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	return nil
}
