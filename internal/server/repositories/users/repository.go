package users

import (
	"context"
)

type Repository interface {
	Exists(ctx context.Context, id string) (bool, error)
}
