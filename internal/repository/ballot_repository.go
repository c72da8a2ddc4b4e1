package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/conselho-dev/eleicao-api/internal/models"
)

// BallotRepository persists ballots. The (election_id, voter_id) primary key
// makes the single-vote rule a property of the insert, not of a prior read.
type BallotRepository struct {
	db *sqlx.DB
}

// NewBallotRepository constructs the repository.
func NewBallotRepository(db *sqlx.DB) *BallotRepository {
	return &BallotRepository{db: db}
}

// Insert stores a ballot. Returns false when the voter already has a ballot
// in the election; no row is written in that case.
func (r *BallotRepository) Insert(ctx context.Context, ballot *models.Ballot) (bool, error) {
	if ballot.ID == "" {
		ballot.ID = uuid.NewString()
	}
	if ballot.CastAt.IsZero() {
		ballot.CastAt = time.Now().UTC()
	}
	const query = `INSERT INTO ballots (id, election_id, voter_id, slate_id, cast_at)
	VALUES (:id, :election_id, :voter_id, :slate_id, :cast_at)
	ON CONFLICT (election_id, voter_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, ballot)
	if err != nil {
		return false, fmt.Errorf("insert ballot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check ballot insert rows: %w", err)
	}
	return rows == 1, nil
}

// Get returns the ballot a voter cast in an election, if any.
func (r *BallotRepository) Get(ctx context.Context, electionID, voterID string) (*models.Ballot, error) {
	const query = `SELECT id, election_id, voter_id, slate_id, cast_at
	FROM ballots WHERE election_id = $1 AND voter_id = $2`
	var ballot models.Ballot
	if err := r.db.GetContext(ctx, &ballot, query, electionID, voterID); err != nil {
		return nil, err
	}
	return &ballot, nil
}

// CountByElection tallies ballots cast in an election.
func (r *BallotRepository) CountByElection(ctx context.Context, electionID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM ballots WHERE election_id = $1", electionID); err != nil {
		return 0, fmt.Errorf("count ballots: %w", err)
	}
	return total, nil
}
