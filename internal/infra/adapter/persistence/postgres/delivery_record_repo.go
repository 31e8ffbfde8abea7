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

// DeliveryRecordRepo stores in-app delivery records in the notifications table.
type DeliveryRecordRepo struct{ db *sql.DB }

func NewDeliveryRecordRepo(db *sql.DB) repository.DeliveryRepository {
	return &DeliveryRecordRepo{db: db}
}

func (repo *DeliveryRecordRepo) RecordInApp(ctx context.Context, rec *entity.DeliveryRecord) (int64, error) {
	const query = `
INSERT INTO notifications
       (recipient_id, correlation_id, type, title, message, priority, sent_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`

	var createdAt time.Time
	start := time.Now()
	err := repo.db.QueryRowContext(ctx, query,
		rec.RecipientID, rec.CorrelationID, string(rec.Type),
		rec.Title, rec.Message, string(rec.Priority), rec.SentBy,
	).Scan(&rec.ID, &createdAt)
	metrics.RecordDBQuery("record_in_app", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("RecordInApp: %w", err)
	}
	rec.CreatedAt = createdAt
	return rec.ID, nil
}

func (repo *DeliveryRecordRepo) CountTotal(ctx context.Context, r entity.DateRange) (int64, error) {
	where, args := rangeClause(r, nil, nil)
	n, err := repo.count(ctx, "count_total", where, args)
	if err != nil {
		return 0, fmt.Errorf("CountTotal: %w", err)
	}
	return n, nil
}

// CountDelivered counts records that have been read.
func (repo *DeliveryRecordRepo) CountDelivered(ctx context.Context, r entity.DateRange) (int64, error) {
	where, args := rangeClause(r, []string{"is_read = TRUE"}, nil)
	n, err := repo.count(ctx, "count_delivered", where, args)
	if err != nil {
		return 0, fmt.Errorf("CountDelivered: %w", err)
	}
	return n, nil
}

func (repo *DeliveryRecordRepo) count(ctx context.Context, op, where string, args []any) (int64, error) {
	start := time.Now()
	var n int64
	err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+where, args...).Scan(&n)
	metrics.RecordDBQuery(op, time.Since(start), err)
	return n, err
}

func (repo *DeliveryRecordRepo) MarkRead(ctx context.Context, id int64, at time.Time) error {
	const query = `
UPDATE notifications
SET    is_read = TRUE, read_at = $2
WHERE  id = $1`
	start := time.Now()
	res, err := repo.db.ExecContext(ctx, query, id, at)
	metrics.RecordDBQuery("mark_read", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkRead: %w", entity.ErrNotFound)
	}
	return nil
}

// rangeClause builds a WHERE clause for created_at within the half-open range
// r, appended after the given conditions and their args.
func rangeClause(r entity.DateRange, conds []string, args []any) (string, []any) {
	if r.From != nil {
		args = append(args, *r.From)
		conds = append(conds, "created_at >= $"+strconv.Itoa(len(args)))
	}
	if r.To != nil {
		args = append(args, *r.To)
		conds = append(conds, "created_at < $"+strconv.Itoa(len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "\nWHERE " + strings.Join(conds, " AND "), args
}
