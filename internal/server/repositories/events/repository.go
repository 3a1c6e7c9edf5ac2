package events

import (
	"context"

	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

type Repository interface {
	Append(ctx context.Context, e *models.Event) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Event, error)
	ListAll(ctx context.Context, limit int) ([]*models.Event, error)
}
