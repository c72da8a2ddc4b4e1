package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/conselho-dev/eleicao-api/internal/models"
)

// ElectionRepository is a read-only view over the electoral collaborator's
// election table. This service never mutates elections.
type ElectionRepository struct {
	db *sqlx.DB
}

// NewElectionRepository constructs the repository.
func NewElectionRepository(db *sqlx.DB) *ElectionRepository {
	return &ElectionRepository{db: db}
}

// GetByID fetches an election.
func (r *ElectionRepository) GetByID(ctx context.Context, id string) (*models.Election, error) {
	const query = `SELECT id, name, status, starts_at, ends_at, updated_at FROM elections WHERE id = $1`
	var election models.Election
	if err := r.db.GetContext(ctx, &election, query, id); err != nil {
		return nil, err
	}
	return &election, nil
}
