package models

import "time"

// ElectionStatus mirrors the external election entity; this service reads it,
// never mutates it.
type ElectionStatus string

const (
	ElectionStatusPlanned  ElectionStatus = "PLANNED"
	ElectionStatusActive   ElectionStatus = "ACTIVE"
	ElectionStatusFinished ElectionStatus = "FINISHED"
)

// Election is a read-only view of the electoral collaborator's entity.
type Election struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Status    ElectionStatus `db:"status" json:"status"`
	StartsAt  *time.Time     `db:"starts_at" json:"startsAt,omitempty"`
	EndsAt    *time.Time     `db:"ends_at" json:"endsAt,omitempty"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}
