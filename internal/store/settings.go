package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// LoadSettings 读取管理员设置；尚未保存过时返回零值设置
func (s *Store) LoadSettings() (*model.Settings, error) {
	var payload string
	err := s.db.QueryRow("SELECT payload FROM settings WHERE id = 1").Scan(&payload)
	if err == sql.ErrNoRows {
		return &model.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	var settings model.Settings
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings 整体覆盖写入单行设置
func (s *Store) SaveSettings(settings *model.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO settings (id, payload) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET payload = ?, updated_at = CURRENT_TIMESTAMP
	`, string(raw), string(raw))
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
