package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	// SettingLastAggregationEnd is the window end of the last cycle that
	// settled every artist.
	SettingLastAggregationEnd = "last_aggregation_window_end"
	SettingLastReconcileAt    = "last_reconcile_at"
)

// SettingsRepo keeps watermarks that must survive restarts.
type SettingsRepo struct {
	db *DB
}

func NewSettingsRepo(db *DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Time returns the timestamp stored under key, or the zero time if unset.
func (r *SettingsRepo) Time(ctx context.Context, key string) (time.Time, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw, r.db.Rebind(`SELECT value FROM settings WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read setting %s: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("setting %s holds %q: %w", key, raw, err)
	}
	return t, nil
}

// SetTime stores t under key, replacing any previous value.
func (r *SettingsRepo) SetTime(ctx context.Context, key string, t time.Time) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`), key, t.UTC().Format(time.RFC3339Nano), now)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}
