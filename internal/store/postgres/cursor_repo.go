package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type CursorRepo struct {
	db *DB
}

func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

func (r *CursorRepo) Get(ctx context.Context, jobName string) (int64, bool, error) {
	var lastBlock int64
	err := r.db.QueryRowContext(ctx, `
		SELECT last_block FROM job_cursors WHERE job_name = $1
	`, jobName).Scan(&lastBlock)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cursor %s: %w", jobName, err)
	}
	return lastBlock, true, nil
}

// Set upserts the cursor. GREATEST keeps last_block monotonic even if
// a misconfigured run hands back a smaller window bound.
func (r *CursorRepo) Set(ctx context.Context, jobName string, lastBlock int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_cursors (job_name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (job_name) DO UPDATE SET
			last_block = GREATEST(job_cursors.last_block, EXCLUDED.last_block),
			updated_at = now()
	`, jobName, lastBlock)
	if err != nil {
		return fmt.Errorf("set cursor %s: %w", jobName, err)
	}
	return nil
}
