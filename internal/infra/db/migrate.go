package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed seeds/recipients.sql
var seedRecipientsSQL string

// MigrateUp creates the recipients and notifications tables and their
// indexes. Every statement is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS recipients (
    id                    BIGSERIAL PRIMARY KEY,
    display_name          TEXT NOT NULL DEFAULT '',
    email                 TEXT,
    phone                 TEXT,
    push_token            TEXT,
    push_platform         TEXT,
    whatsapp_opt_in       BOOLEAN NOT NULL DEFAULT FALSE,
    notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    group_name            TEXT,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("create recipients: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS notifications (
    id             BIGSERIAL PRIMARY KEY,
    recipient_id   BIGINT NOT NULL REFERENCES recipients(id) ON DELETE CASCADE,
    correlation_id BIGINT,
    type           VARCHAR(20) NOT NULL,
    title          TEXT NOT NULL,
    message        TEXT NOT NULL,
    priority       VARCHAR(10) NOT NULL,
    sent_by        TEXT,
    is_read        BOOLEAN NOT NULL DEFAULT FALSE,
    read_at        TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return fmt.Errorf("create notifications: %w", err)
	}

	indexes := []string{
		// delivery statistics filter on created_at
		`CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient_id ON notifications(recipient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_group_name ON recipients(group_name) WHERE group_name IS NOT NULL`,
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// SeedDemo inserts the demo recipients. Existing ids are left untouched.
func SeedDemo(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, seedRecipientsSQL); err != nil {
		return fmt.Errorf("seed recipients: %w", err)
	}
	return nil
}

// MigrateDown drops both tables. All delivery history is lost.
func MigrateDown(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS notifications CASCADE`,
		`DROP TABLE IF EXISTS recipients CASCADE`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
