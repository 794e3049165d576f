package model

import "time"

// JobCursor is the durable pointer recording the last chain block a
// named job has fully processed. LastBlock is monotonically
// non-decreasing and only ever written by that job's own runner.
type JobCursor struct {
	JobName   string    `db:"job_name"`
	LastBlock int64     `db:"last_block"`
	UpdatedAt time.Time `db:"updated_at"`
}
