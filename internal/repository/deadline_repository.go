package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/conselho-dev/eleicao-api/internal/models"
)

// DeadlineRepository persists prazo windows. Every status change is guarded
// by `status = 'ACTIVE'` in the same UPDATE, so met/expired races resolve to
// exactly one winner.
type DeadlineRepository struct {
	db *sqlx.DB
}

// NewDeadlineRepository constructs the repository.
func NewDeadlineRepository(db *sqlx.DB) *DeadlineRepository {
	return &DeadlineRepository{db: db}
}

// insertDeadline writes a deadline row through the given executor, so the
// case transition opening the window can run it inside its own transaction.
func insertDeadline(ctx context.Context, exec sqlx.ExtContext, deadline *models.Deadline) error {
	if deadline.ID == "" {
		deadline.ID = uuid.NewString()
	}
	if deadline.Status == "" {
		deadline.Status = models.DeadlineStatusActive
	}
	now := time.Now().UTC()
	if deadline.CreatedAt.IsZero() {
		deadline.CreatedAt = now
	}
	deadline.UpdatedAt = now
	const query = `INSERT INTO deadlines
	(id, challenge_id, phase, window_start, window_end, status, extendable, extended, created_at, updated_at)
	VALUES (:id, :challenge_id, :phase, :window_start, :window_end, :status, :extendable, :extended, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, deadline); err != nil {
		return fmt.Errorf("insert deadline: %w", err)
	}
	return nil
}

// GetByID fetches a deadline by identifier.
func (r *DeadlineRepository) GetByID(ctx context.Context, id string) (*models.Deadline, error) {
	const query = `SELECT id, challenge_id, phase, window_start, window_end, status, extendable, extended, created_at, updated_at
	FROM deadlines WHERE id = $1`
	var deadline models.Deadline
	if err := r.db.GetContext(ctx, &deadline, query, id); err != nil {
		return nil, err
	}
	return &deadline, nil
}

// ListByChallenge returns every deadline for a challenge in creation order.
func (r *DeadlineRepository) ListByChallenge(ctx context.Context, challengeID string) ([]models.Deadline, error) {
	const query = `SELECT id, challenge_id, phase, window_start, window_end, status, extendable, extended, created_at, updated_at
	FROM deadlines WHERE challenge_id = $1 ORDER BY created_at ASC`
	var deadlines []models.Deadline
	if err := r.db.SelectContext(ctx, &deadlines, query, challengeID); err != nil {
		return nil, fmt.Errorf("list deadlines: %w", err)
	}
	return deadlines, nil
}

// GetActive returns the single ACTIVE deadline for a challenge phase.
func (r *DeadlineRepository) GetActive(ctx context.Context, challengeID string, phase models.DeadlinePhase) (*models.Deadline, error) {
	const query = `SELECT id, challenge_id, phase, window_start, window_end, status, extendable, extended, created_at, updated_at
	FROM deadlines WHERE challenge_id = $1 AND phase = $2 AND status = 'ACTIVE'`
	var deadline models.Deadline
	if err := r.db.GetContext(ctx, &deadline, query, challengeID, phase); err != nil {
		return nil, err
	}
	return &deadline, nil
}

// claimDeadlineMet records that the phase action happened in time. Returns
// sql.ErrNoRows when the deadline is no longer ACTIVE.
func claimDeadlineMet(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := exec.ExecContext(ctx,
		"UPDATE deadlines SET status = 'MET', updated_at = $1 WHERE id = $2 AND status = 'ACTIVE'",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark deadline met: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deadline met rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Extend pushes the window end once. The guard enforces the one-extension
// rule and rejects deadlines that are no longer ACTIVE.
func (r *DeadlineRepository) Extend(ctx context.Context, id string, newEnd time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE deadlines SET window_end = $1, extended = TRUE, updated_at = $2
		 WHERE id = $3 AND status = 'ACTIVE' AND extendable AND NOT extended`,
		newEnd, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("extend deadline: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deadline extend rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExpireDue atomically claims every ACTIVE deadline past its window end and
// returns the claimed rows. Concurrent sweeps cannot claim the same row twice.
func (r *DeadlineRepository) ExpireDue(ctx context.Context, now time.Time) ([]models.Deadline, error) {
	const query = `UPDATE deadlines SET status = 'EXPIRED', updated_at = $1
	WHERE status = 'ACTIVE' AND window_end < $2
	RETURNING id, challenge_id, phase, window_start, window_end, status, extendable, extended, created_at, updated_at`
	var expired []models.Deadline
	if err := r.db.SelectContext(ctx, &expired, query, now, now); err != nil {
		return nil, fmt.Errorf("expire due deadlines: %w", err)
	}
	return expired, nil
}
