package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
)

const deviceConfigID = 1

type DeviceStore struct {
	db DBTX
}

func NewDeviceStore(db DBTX) *DeviceStore {
	return &DeviceStore{db: db}
}

// Get returns the device binding, or nil when the device is unprovisioned.
func (s *DeviceStore) Get(ctx context.Context) (*domain.DeviceConfig, error) {
	cfg := &domain.DeviceConfig{}
	var lastSync sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT org_id, org_name, access_token, device_id, cloud_url, cloud_key, last_sync_at, setup_completed_at
		FROM device_config WHERE id = ?
	`, deviceConfigID).Scan(&cfg.OrgID, &cfg.OrgName, &cfg.AccessToken, &cfg.DeviceID,
		&cfg.CloudURL, &cfg.CloudKey, &lastSync, &cfg.SetupCompletedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device config: %w", err)
	}

	cfg.LastSyncAt = nullTime(lastSync)
	return cfg, nil
}

// Save replaces the binding wholesale; nothing from a previous binding survives.
func (s *DeviceStore) Save(ctx context.Context, cfg *domain.DeviceConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_config
		(id, org_id, org_name, access_token, device_id, cloud_url, cloud_key, last_sync_at, setup_completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			org_id = excluded.org_id,
			org_name = excluded.org_name,
			access_token = excluded.access_token,
			device_id = excluded.device_id,
			cloud_url = excluded.cloud_url,
			cloud_key = excluded.cloud_key,
			last_sync_at = excluded.last_sync_at,
			setup_completed_at = excluded.setup_completed_at
	`, deviceConfigID, cfg.OrgID, cfg.OrgName, cfg.AccessToken, cfg.DeviceID,
		cfg.CloudURL, cfg.CloudKey, cfg.LastSyncAt, cfg.SetupCompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save device config: %w", err)
	}
	return nil
}

func (s *DeviceStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM device_config WHERE id = ?`, deviceConfigID); err != nil {
		return fmt.Errorf("failed to clear device config: %w", err)
	}
	return nil
}

// TouchLastSync stamps the last successful sync for the given tenant. It is a
// no-op if the device has been rebound to another tenant in the meantime.
func (s *DeviceStore) TouchLastSync(ctx context.Context, orgID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE device_config SET last_sync_at = ? WHERE id = ? AND org_id = ?
	`, at.UTC(), deviceConfigID, orgID)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrDeviceNotConfigured
	}
	return nil
}
