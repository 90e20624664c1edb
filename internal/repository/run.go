package repository

import (
	"context"

	"github-faces/internal/domain"
)

// RunRepository defines persistence operations for pipeline run records.
type RunRepository interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, run *domain.Run) error
	List(ctx context.Context, limit int) ([]domain.Run, error)
}
