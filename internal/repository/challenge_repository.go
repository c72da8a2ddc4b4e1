package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/conselho-dev/eleicao-api/internal/models"
)

// pqUniqueViolation is the Postgres error code for unique constraint failures.
const pqUniqueViolation = "23505"

// ErrDuplicate reports a unique-constraint violation on insert.
var ErrDuplicate = fmt.Errorf("duplicate row")

// ErrDeadlineNotActive reports that the deadline a transition tried to
// consume was already met or expired.
var ErrDeadlineNotActive = fmt.Errorf("deadline no longer active")

// ChallengeRepository persists impugnação cases, rulings, and documents.
type ChallengeRepository struct {
	db *sqlx.DB
}

// NewChallengeRepository constructs the repository.
func NewChallengeRepository(db *sqlx.DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// NextProtocol reserves the next human-readable protocol number.
func (r *ChallengeRepository) NextProtocol(ctx context.Context, year int) (string, error) {
	var seq int64
	if err := r.db.GetContext(ctx, &seq, "SELECT nextval('challenge_protocol_seq')"); err != nil {
		return "", fmt.Errorf("next protocol: %w", err)
	}
	return fmt.Sprintf("IMP-%d-%06d", year, seq), nil
}

// insertChallenge writes a new challenge row through the given executor.
func insertChallenge(ctx context.Context, exec sqlx.ExtContext, challenge *models.Challenge) error {
	if challenge.ID == "" {
		challenge.ID = uuid.NewString()
	}
	if challenge.Instance == 0 {
		challenge.Instance = 1
	}
	if challenge.Version == 0 {
		challenge.Version = 1
	}
	now := time.Now().UTC()
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = now
	}
	challenge.UpdatedAt = now
	const query = `INSERT INTO challenges
	(id, protocol, election_id, type, target_kind, target_id, status, instance, filer_id, grounds, reasoning, defense, defense_at, version, created_at, updated_at)
	VALUES (:id, :protocol, :election_id, :type, :target_kind, :target_id, :status, :instance, :filer_id, :grounds, :reasoning, :defense, :defense_at, :version, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, challenge); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("create challenge: %w", err)
	}
	return nil
}

// GetByID fetches a challenge row by identifier.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*models.Challenge, error) {
	const query = `SELECT id, protocol, election_id, type, target_kind, target_id, status, instance, filer_id,
       grounds, reasoning, defense, defense_at, version, created_at, updated_at
	FROM challenges WHERE id = $1`
	var challenge models.Challenge
	if err := r.db.GetContext(ctx, &challenge, query, id); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// GetByProtocol fetches a challenge by its protocol number.
func (r *ChallengeRepository) GetByProtocol(ctx context.Context, protocol string) (*models.Challenge, error) {
	const query = `SELECT id, protocol, election_id, type, target_kind, target_id, status, instance, filer_id,
       grounds, reasoning, defense, defense_at, version, created_at, updated_at
	FROM challenges WHERE protocol = $1`
	var challenge models.Challenge
	if err := r.db.GetContext(ctx, &challenge, query, protocol); err != nil {
		return nil, err
	}
	return &challenge, nil
}

// List returns challenges matching the filter plus the total count.
func (r *ChallengeRepository) List(ctx context.Context, filter models.ChallengeFilter) ([]models.Challenge, int, error) {
	base := "FROM challenges"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ElectionID != "" {
		where = append(where, fmt.Sprintf("election_id = $%d", len(args)+1))
		args = append(args, filter.ElectionID)
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.Type != "" {
		where = append(where, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}
	if filter.FilerID != "" {
		where = append(where, fmt.Sprintf("filer_id = $%d", len(args)+1))
		args = append(args, filter.FilerID)
	}
	whereClause := strings.Join(where, " AND ")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT id, protocol, election_id, type, target_kind, target_id, status, instance, filer_id,
       grounds, reasoning, defense, defense_at, version, created_at, updated_at
%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, whereClause, limit, offset)
	var challenges []models.Challenge
	if err := r.db.SelectContext(ctx, &challenges, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list challenges: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count challenges: %w", err)
	}
	return challenges, total, nil
}

// UpdateChallengeParams groups the columns a transition may touch.
type UpdateChallengeParams struct {
	ID        string
	Version   int
	Status    models.ChallengeStatus
	Instance  int
	Defense   *string
	DefenseAt *time.Time
}

// applyTransition persists a state change guarded by the optimistic version.
// Returns sql.ErrNoRows when the version no longer matches.
func applyTransition(ctx context.Context, exec sqlx.ExtContext, params UpdateChallengeParams) error {
	setParts := []string{
		"status = :status",
		"instance = :instance",
		"version = version + 1",
		"updated_at = :updated_at",
	}
	if params.Defense != nil {
		setParts = append(setParts, "defense = :defense", "defense_at = :defense_at")
	}
	query := fmt.Sprintf("UPDATE challenges SET %s WHERE id = :id AND version = :version",
		strings.Join(setParts, ", "))
	result, err := sqlx.NamedExecContext(ctx, exec, query, map[string]interface{}{
		"id":         params.ID,
		"version":    params.Version,
		"status":     params.Status,
		"instance":   params.Instance,
		"defense":    params.Defense,
		"defense_at": params.DefenseAt,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("apply challenge transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// insertRuling stores a decision record. The unique (challenge_id, instance)
// index guarantees at most one ruling per instance.
func insertRuling(ctx context.Context, exec sqlx.ExtContext, ruling *models.Ruling) error {
	if ruling.ID == "" {
		ruling.ID = uuid.NewString()
	}
	if ruling.JudgedAt.IsZero() {
		ruling.JudgedAt = time.Now().UTC()
	}
	const query = `INSERT INTO rulings
	(id, challenge_id, instance, outcome, reasoning, judge_ref, penalty, appealable, judged_at)
	VALUES (:id, :challenge_id, :instance, :outcome, :reasoning, :judge_ref, :penalty, :appealable, :judged_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, ruling); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("insert ruling: %w", err)
	}
	return nil
}

// TransitionWrites groups the rows one lifecycle transition commits together.
// Only the populated parts are written.
type TransitionWrites struct {
	Insert        *models.Challenge     // new case row, set when filing
	Update        UpdateChallengeParams // status change, guarded by the optimistic version
	Ruling        *models.Ruling        // decision record, set when judging
	ClaimDeadline string                // ACTIVE deadline the transition consumes
	OpenDeadline  *models.Deadline      // window for the phase the transition opens
}

// ExecuteTransition commits one lifecycle transition atomically: the case
// row, the ruling it records, the deadline it consumes, and the window it
// opens all land or none do. Returns sql.ErrNoRows on a version miss,
// ErrDuplicate on a second ruling for the same instance, and
// ErrDeadlineNotActive when the consumed deadline lost its race.
func (r *ChallengeRepository) ExecuteTransition(ctx context.Context, writes TransitionWrites) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if writes.Insert != nil {
		if err := insertChallenge(ctx, tx, writes.Insert); err != nil {
			return err
		}
	}
	if writes.Ruling != nil {
		if err := insertRuling(ctx, tx, writes.Ruling); err != nil {
			return err
		}
	}
	if writes.ClaimDeadline != "" {
		if err := claimDeadlineMet(ctx, tx, writes.ClaimDeadline); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrDeadlineNotActive
			}
			return err
		}
	}
	if err := applyTransition(ctx, tx, writes.Update); err != nil {
		return err
	}
	if writes.OpenDeadline != nil {
		if err := insertDeadline(ctx, tx, writes.OpenDeadline); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRulings returns all decision records for a challenge, first instance first.
func (r *ChallengeRepository) ListRulings(ctx context.Context, challengeID string) ([]models.Ruling, error) {
	const query = `SELECT id, challenge_id, instance, outcome, reasoning, judge_ref, penalty, appealable, judged_at
	FROM rulings WHERE challenge_id = $1 ORDER BY instance ASC`
	var rulings []models.Ruling
	if err := r.db.SelectContext(ctx, &rulings, query, challengeID); err != nil {
		return nil, fmt.Errorf("list rulings: %w", err)
	}
	return rulings, nil
}

// AddDocument appends a document reference to the challenge.
func (r *ChallengeRepository) AddDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.AddedAt.IsZero() {
		doc.AddedAt = time.Now().UTC()
	}
	const query = `INSERT INTO challenge_documents
	(id, challenge_id, kind, name, storage_handle, size_bytes, mime_type, added_by, added_at, removed_at)
	VALUES (:id, :challenge_id, :kind, :name, :storage_handle, :size_bytes, :mime_type, :added_by, :added_at, :removed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("add challenge document: %w", err)
	}
	return nil
}

// TombstoneDocument marks a document removed without deleting the row.
func (r *ChallengeRepository) TombstoneDocument(ctx context.Context, challengeID, documentID string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE challenge_documents SET removed_at = $1 WHERE id = $2 AND challenge_id = $3 AND removed_at IS NULL",
		time.Now().UTC(), documentID, challengeID)
	if err != nil {
		return fmt.Errorf("tombstone document: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check tombstone rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListDocuments returns every document reference, tombstoned ones included.
func (r *ChallengeRepository) ListDocuments(ctx context.Context, challengeID string) ([]models.Document, error) {
	const query = `SELECT id, challenge_id, kind, name, storage_handle, size_bytes, mime_type, added_by, added_at, removed_at
	FROM challenge_documents WHERE challenge_id = $1 ORDER BY added_at ASC`
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query, challengeID); err != nil {
		return nil, fmt.Errorf("list challenge documents: %w", err)
	}
	return docs, nil
}
