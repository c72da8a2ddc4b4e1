package models

import "time"

// Ballot records one vote. (election_id, voter_id) is the primary key, so the
// single-vote rule is enforced by the store, never by check-then-write.
type Ballot struct {
	ID         string    `db:"id" json:"id"`
	ElectionID string    `db:"election_id" json:"electionId"`
	VoterID    string    `db:"voter_id" json:"voterId"`
	SlateID    string    `db:"slate_id" json:"slateId"`
	CastAt     time.Time `db:"cast_at" json:"castAt"`
}

// BallotReceipt is returned to the voter on a successful cast.
type BallotReceipt struct {
	BallotID string    `json:"ballotId"`
	CastAt   time.Time `json:"castAt"`
}
