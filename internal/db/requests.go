package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nexgsol/hmva/internal/models"
)

const requestColumns = `
	id, icon_or_topic, notes, duration, avatar_id, voice_id, status,
	final_script, asset_url, edit_url, file_name, scheduled_slot, publish_at,
	error_message, created_at, updated_at
`

func scanRequest(row interface{ Scan(...interface{}) error }, r *models.ScriptRequest) error {
	return row.Scan(
		&r.ID, &r.IconOrTopic, &r.Notes, &r.Duration, &r.AvatarID, &r.VoiceID,
		&r.Status, &r.FinalScript, &r.AssetURL, &r.EditURL, &r.FileName,
		&r.ScheduledSlot, &r.PublishAt, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt,
	)
}

func (db *DB) CreateRequest(ctx context.Context, req *models.ScriptRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = models.RequestStatusNew
	}

	query := `
		INSERT INTO script_requests (id, icon_or_topic, notes, duration, avatar_id, voice_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + requestColumns

	return scanRequest(db.QueryRowContext(
		ctx, query,
		req.ID, req.IconOrTopic, req.Notes, req.Duration, req.AvatarID, req.VoiceID, req.Status,
	), req)
}

func (db *DB) GetRequest(ctx context.Context, id uuid.UUID) (*models.ScriptRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM script_requests WHERE id = $1`

	req := &models.ScriptRequest{}
	err := scanRequest(db.QueryRowContext(ctx, query, id), req)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

func (db *DB) UpdateRequestStatus(ctx context.Context, id uuid.UUID, status models.RequestStatus) error {
	query := `UPDATE script_requests SET status = $2, updated_at = now() WHERE id = $1`
	_, err := db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
	}
	return nil
}

func (db *DB) UpdateRequestError(ctx context.Context, id uuid.UUID, msg string) error {
	query := `
		UPDATE script_requests
		SET status = $2, error_message = $3, updated_at = now()
		WHERE id = $1
	`
	_, err := db.ExecContext(ctx, query, id, models.RequestStatusFailed, msg)
	return err
}

func (db *DB) SetRequestScript(ctx context.Context, id uuid.UUID, script string) error {
	query := `
		UPDATE script_requests
		SET final_script = $2, status = $3, updated_at = now()
		WHERE id = $1
	`
	_, err := db.ExecContext(ctx, query, id, script, models.RequestStatusDrafted)
	return err
}

func (db *DB) SetRequestAssets(ctx context.Context, id uuid.UUID, assetURL, editURL, fileName string) error {
	query := `
		UPDATE script_requests
		SET asset_url  = CASE WHEN $2 <> '' THEN $2 ELSE asset_url END,
			edit_url   = CASE WHEN $3 <> '' THEN $3 ELSE edit_url END,
			file_name  = CASE WHEN $4 <> '' THEN $4 ELSE file_name END,
			status     = $5,
			updated_at = now()
		WHERE id = $1
	`
	_, err := db.ExecContext(ctx, query, id, assetURL, editURL, fileName, models.RequestStatusRendered)
	return err
}

func (db *DB) SetRequestSchedule(ctx context.Context, id uuid.UUID, slot string, publishAt *time.Time) error {
	query := `
		UPDATE script_requests
		SET scheduled_slot = $2, publish_at = $3, status = $4, updated_at = now()
		WHERE id = $1
	`
	_, err := db.ExecContext(ctx, query, id, slot, publishAt, models.RequestStatusScheduled)
	return err
}
