package repository

import (
	"context"
	"time"

	"schoolnotify/internal/domain/entity"
)

// DeliveryRepository persists in-app notification records and answers
// the aggregate queries used for delivery statistics.
type DeliveryRepository interface {
	// RecordInApp inserts one in-app record and returns its id.
	// Each call writes a single row; no transaction spans recipients.
	RecordInApp(ctx context.Context, rec *entity.DeliveryRecord) (int64, error)

	// CountTotal returns the number of in-app records created within r.
	CountTotal(ctx context.Context, r entity.DateRange) (int64, error)

	// CountDelivered returns the number of in-app records created within r
	// that have been read.
	CountDelivered(ctx context.Context, r entity.DateRange) (int64, error)

	// MarkRead flags a record as read at the given time.
	// Returns entity.ErrNotFound when no record has the id.
	MarkRead(ctx context.Context, id int64, at time.Time) error
}
