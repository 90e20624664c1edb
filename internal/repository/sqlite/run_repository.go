package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github-faces/internal/domain"
	"github-faces/internal/repository"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	discovered INTEGER NOT NULL,
	enriched INTEGER NOT NULL,
	avatars_downloaded INTEGER NOT NULL,
	avatars_pruned INTEGER NOT NULL
);
`

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) repository.RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

func (r *RunRepository) Record(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO runs (id, started_at, finished_at, discovered, enriched, avatars_downloaded, avatars_pruned)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Discovered,
		run.Enriched,
		run.AvatarsDownloaded,
		run.AvatarsPruned,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, discovered, enriched, avatars_downloaded, avatars_pruned
FROM runs
ORDER BY started_at DESC
LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		if err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Discovered,
			&run.Enriched,
			&run.AvatarsDownloaded,
			&run.AvatarsPruned,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
