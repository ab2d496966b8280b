package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// WorkbookRecord 一次工作簿上传的完整记录
//
// 二进制原件与派生蓝图一起落库：计算表模式每次报价都要从原件克隆副本，
// BlueprintError 保留生成阶段被吸收的 AI 失败原因，供管理端展示。
type WorkbookRecord struct {
	ID             string
	Filename       string
	MimeType       string
	Data           []byte
	Blueprint      *model.Blueprint
	BlueprintError string
	UploadedAt     time.Time
}

// SaveWorkbook 保存一次上传，返回记录 ID
func (s *Store) SaveWorkbook(rec *WorkbookRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now().UTC()
	}

	var blueprintJSON sql.NullString
	if rec.Blueprint != nil {
		raw, err := json.Marshal(rec.Blueprint)
		if err != nil {
			return "", fmt.Errorf("failed to marshal blueprint: %w", err)
		}
		blueprintJSON = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO workbooks (id, filename, mime_type, data, blueprint, blueprint_error, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Filename, rec.MimeType, rec.Data, blueprintJSON, rec.BlueprintError, rec.UploadedAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert workbook: %w", err)
	}
	return rec.ID, nil
}

// LatestWorkbook 取最近一次上传；尚无上传时返回 (nil, nil)
func (s *Store) LatestWorkbook() (*WorkbookRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, filename, mime_type, data, blueprint, blueprint_error, uploaded_at
		FROM workbooks
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1
	`)
	return scanWorkbook(row)
}

// LatestWorkbookInfo 只取元数据，不携带二进制
func (s *Store) LatestWorkbookInfo() (*model.WorkbookInfo, error) {
	var info model.WorkbookInfo
	err := s.db.QueryRow(`
		SELECT id, filename, mime_type, blueprint_error, uploaded_at
		FROM workbooks
		ORDER BY uploaded_at DESC, id DESC
		LIMIT 1
	`).Scan(&info.ID, &info.Filename, &info.MimeType, &info.BlueprintError, &info.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query workbook info: %w", err)
	}
	return &info, nil
}

// UpdateBlueprint 映射变更后重新生成的蓝图写回原记录
func (s *Store) UpdateBlueprint(id string, bp *model.Blueprint, blueprintError string) error {
	var blueprintJSON sql.NullString
	if bp != nil {
		raw, err := json.Marshal(bp)
		if err != nil {
			return fmt.Errorf("failed to marshal blueprint: %w", err)
		}
		blueprintJSON = sql.NullString{String: string(raw), Valid: true}
	}

	res, err := s.db.Exec(`
		UPDATE workbooks SET blueprint = ?, blueprint_error = ? WHERE id = ?
	`, blueprintJSON, blueprintError, id)
	if err != nil {
		return fmt.Errorf("failed to update blueprint: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("workbook not found: %s", id)
	}
	return nil
}

func scanWorkbook(row *sql.Row) (*WorkbookRecord, error) {
	var rec WorkbookRecord
	var blueprintJSON sql.NullString
	err := row.Scan(&rec.ID, &rec.Filename, &rec.MimeType, &rec.Data, &blueprintJSON, &rec.BlueprintError, &rec.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workbook: %w", err)
	}

	if blueprintJSON.Valid && blueprintJSON.String != "" {
		var bp model.Blueprint
		if err := json.Unmarshal([]byte(blueprintJSON.String), &bp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blueprint: %w", err)
		}
		rec.Blueprint = &bp
	}
	return &rec, nil
}
