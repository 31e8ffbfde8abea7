package repository

import (
	"context"

	"schoolnotify/internal/domain/entity"
)

// RecipientRepository resolves target specifications into recipients.
// Recipient lifecycle is owned by the surrounding data layer.
type RecipientRepository interface {
	// Resolve returns the recipients selected by target, ordered by id.
	// An empty target returns entity.ErrInvalidInput.
	Resolve(ctx context.Context, target entity.TargetSpec) ([]entity.Recipient, error)
}
