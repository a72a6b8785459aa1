package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const sqliteConstraintCode = 19

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		// Extended codes keep the base constraint code in the low byte.
		if code := coder.Code(); code == sqliteConstraintCode || code&0xff == sqliteConstraintCode {
			return true
		}
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// Enqueue records a new job: one queue row plus a PENDING status row,
// inserted as a single unit. Ids are caller-generated; a duplicate fails
// with ErrAlreadyQueued.
func (s *Store) Enqueue(ctx context.Context, jobID, model string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return storeErr("enqueue job", errors.New("job id is empty"))
	}
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO queue (job_id, model) VALUES (?, ?)`, jobID, model); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO status (job_id, status) VALUES (?, ?)`, jobID, string(StatusPending))
		return err
	})
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: enqueue job %s: %w", ErrStore, jobID, ErrAlreadyQueued)
		}
		return storeErr("enqueue job", err)
	}
	return nil
}

// ClaimNext atomically removes the oldest queue row and returns it. A nil
// job with a nil error means the queue is empty. The delete and the read
// are one statement, so two concurrent callers never claim the same row.
func (s *Store) ClaimNext(ctx context.Context) (*QueuedJob, error) {
	ctx = ensureContext(ctx)
	var job QueuedJob
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`DELETE FROM queue
			 WHERE job_id = (SELECT job_id FROM queue ORDER BY rowid LIMIT 1)
			 RETURNING job_id, model`)
		return row.Scan(&job.ID, &job.Model)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("claim next job", err)
	}
	return &job, nil
}

// SetStatus overwrites the stored status for a job. Transition order is the
// caller's responsibility; the store only rejects values that are never stored.
func (s *Store) SetStatus(ctx context.Context, jobID string, status Status) error {
	if !status.Valid() {
		return storeErr("set status", fmt.Errorf("status %q is not storable", status))
	}
	if err := s.execWithRetry(ctx, `UPDATE status SET status = ? WHERE job_id = ?`, string(status), jobID); err != nil {
		return storeErr("set status", err)
	}
	return nil
}

// GetStatus reports the stored status for a job. Unknown ids read as
// StatusNone rather than an error so callers can probe freely.
func (s *Store) GetStatus(ctx context.Context, jobID string) (Status, error) {
	ctx = ensureContext(ctx)
	var status Status
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT status FROM status WHERE job_id = ?`, jobID).Scan(&status)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return StatusNone, nil
	}
	if err != nil {
		return StatusNone, storeErr("get status", err)
	}
	return status, nil
}

// ListStatuses returns every known job with its status in insertion order.
func (s *Store) ListStatuses(ctx context.Context) ([]JobStatus, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT job_id, status FROM status ORDER BY rowid`)
	if err != nil {
		return nil, storeErr("list statuses", err)
	}
	defer rows.Close()

	var jobs []JobStatus
	for rows.Next() {
		var job JobStatus
		if err := rows.Scan(&job.ID, &job.Status); err != nil {
			return nil, storeErr("scan status row", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate statuses", err)
	}
	return jobs, nil
}

// Delete removes a job's queue row, if any, and its status row.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue WHERE job_id = ?`, jobID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM status WHERE job_id = ?`, jobID)
		return err
	})
	if err != nil {
		return storeErr("delete job", err)
	}
	return nil
}

// Clear empties both tables.
func (s *Store) Clear(ctx context.Context) error {
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM queue`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM status`)
		return err
	})
	if err != nil {
		return storeErr("clear jobs", err)
	}
	return nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM status GROUP BY status`)
	if err != nil {
		return nil, storeErr("job stats", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, storeErr("scan stats row", err)
		}
		stats[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate stats", err)
	}
	return stats, nil
}
