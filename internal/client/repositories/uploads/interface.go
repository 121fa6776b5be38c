package uploads

import (
	"context"

	"github.com/dmitrijs2005/suifan/internal/client/models"
)

type Repository interface {
	Insert(ctx context.Context, u models.Upload) (int64, error)
	// List returns the history newest first.
	List(ctx context.Context) ([]models.Upload, error)
	FindByBlobID(ctx context.Context, blobID string) ([]models.Upload, error)
	// Clear drops the history and restarts row ids.
	Clear(ctx context.Context) error
}
