package models

import "time"

// DeadlinePhase names the bounded window a prazo covers.
type DeadlinePhase string

const (
	DeadlinePhaseFiling   DeadlinePhase = "FILING"
	DeadlinePhaseDefense  DeadlinePhase = "DEFENSE"
	DeadlinePhaseJudgment DeadlinePhase = "JUDGMENT"
	DeadlinePhaseAppeal   DeadlinePhase = "APPEAL"
)

// DeadlineStatus tracks whether the phase action happened in time.
type DeadlineStatus string

const (
	DeadlineStatusActive  DeadlineStatus = "ACTIVE"
	DeadlineStatusMet     DeadlineStatus = "MET"
	DeadlineStatusExpired DeadlineStatus = "EXPIRED"
)

// Deadline is a prazo owned by exactly one challenge. At most one ACTIVE
// deadline exists per (challenge, phase).
type Deadline struct {
	ID          string         `db:"id" json:"id"`
	ChallengeID string         `db:"challenge_id" json:"challengeId"`
	Phase       DeadlinePhase  `db:"phase" json:"phase"`
	WindowStart time.Time      `db:"window_start" json:"windowStart"`
	WindowEnd   time.Time      `db:"window_end" json:"windowEnd"`
	Status      DeadlineStatus `db:"status" json:"status"`
	Extendable  bool           `db:"extendable" json:"extendable"`
	Extended    bool           `db:"extended" json:"extended"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// InWindow reports whether an action at t meets the deadline. The boundary is
// inclusive: acting exactly at windowEnd is in time.
func (d *Deadline) InWindow(t time.Time) bool {
	return !t.Before(d.WindowStart) && !t.After(d.WindowEnd)
}
