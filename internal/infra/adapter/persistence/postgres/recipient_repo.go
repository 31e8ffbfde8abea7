package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"schoolnotify/internal/domain/entity"
	"schoolnotify/internal/observability/metrics"
	"schoolnotify/internal/repository"
)

// RecipientRepo resolves notification targets from the recipients table.
type RecipientRepo struct{ db *sql.DB }

func NewRecipientRepo(db *sql.DB) repository.RecipientRepository {
	return &RecipientRepo{db: db}
}

const recipientColumns = `
SELECT id, display_name, COALESCE(email, ''), COALESCE(phone, ''),
       COALESCE(push_token, ''), COALESCE(push_platform, ''),
       whatsapp_opt_in, notifications_enabled
FROM recipients`

// Resolve returns recipients whose id is listed in target.RecipientIDs or who
// belong to target.Group. Each recipient appears once, ordered by id.
func (repo *RecipientRepo) Resolve(ctx context.Context, target entity.TargetSpec) ([]entity.Recipient, error) {
	if target.IsEmpty() {
		return nil, fmt.Errorf("Resolve: %w: recipient ids or group required", entity.ErrInvalidInput)
	}

	var conds []string
	args := make([]any, 0, len(target.RecipientIDs)+1)

	if len(target.RecipientIDs) > 0 {
		placeholders := make([]string, len(target.RecipientIDs))
		for i, id := range target.RecipientIDs {
			args = append(args, id)
			placeholders[i] = "$" + strconv.Itoa(len(args))
		}
		conds = append(conds, "id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if group := strings.TrimSpace(target.Group); group != "" {
		args = append(args, group)
		conds = append(conds, "group_name = $"+strconv.Itoa(len(args)))
	}

	query := recipientColumns + "\nWHERE " + strings.Join(conds, " OR ") + "\nORDER BY id ASC"

	start := time.Now()
	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("resolve_recipients", time.Since(start), err)
		return nil, fmt.Errorf("Resolve: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recipients := make([]entity.Recipient, 0, len(target.RecipientIDs))
	for rows.Next() {
		var r entity.Recipient
		if err := rows.Scan(
			&r.ID, &r.DisplayName, &r.Email, &r.Phone,
			&r.PushToken, &r.PushPlatform,
			&r.WhatsAppOptIn, &r.NotificationsEnabled,
		); err != nil {
			return nil, fmt.Errorf("Resolve: %w", err)
		}
		recipients = append(recipients, r)
	}
	err = rows.Err()
	metrics.RecordDBQuery("resolve_recipients", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("Resolve: %w", err)
	}
	return recipients, nil
}
