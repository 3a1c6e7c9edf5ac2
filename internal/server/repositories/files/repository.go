package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) error
	GetByID(ctx context.Context, id string) (*models.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error)
	IncrementDownload(ctx context.Context, id string, now, expiresAt time.Time) (int64, time.Time, error)
	ExtendExpiry(ctx context.Context, id string, now, expiresAt time.Time) (time.Time, error)
	Delete(ctx context.Context, id, ownerID string) error
}
