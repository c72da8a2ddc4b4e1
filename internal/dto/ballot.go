package dto

// CastBallotRequest casts a vote for a slate. The voter identity comes from
// the authenticated claims, never from the payload.
type CastBallotRequest struct {
	ElectionID string `json:"electionId" validate:"required"`
	SlateID    string `json:"slateId" validate:"required"`
}
