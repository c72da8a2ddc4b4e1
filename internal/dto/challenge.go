package dto

import "github.com/conselho-dev/eleicao-api/internal/models"

// FileChallengeRequest opens a new impugnação case.
type FileChallengeRequest struct {
	ElectionID string `json:"electionId" validate:"required"`
	Type       string `json:"type" validate:"required,challengetype"`
	TargetKind string `json:"targetKind" validate:"required"`
	TargetID   string `json:"targetId" validate:"required"`
	Grounds    string `json:"grounds" validate:"required"`
	Reasoning  string `json:"reasoning" validate:"required"`
}

// SubmitDefenseRequest records the challenged party's rebuttal. DeadlineID
// anchors the request to the window it answers, which makes retries
// detectable as replays instead of duplicate submissions.
type SubmitDefenseRequest struct {
	DeadlineID string `json:"deadlineId" validate:"required"`
	Defense    string `json:"defense" validate:"required"`
}

// RenderRulingRequest records a judgment decision.
type RenderRulingRequest struct {
	Outcome    string  `json:"outcome" validate:"required,oneof=UPHELD DENIED"`
	Reasoning  string  `json:"reasoning" validate:"required"`
	Penalty    *string `json:"penalty,omitempty"`
	Appealable bool    `json:"appealable"`
}

// FileAppealRequest escalates a ruling to the appellate instance.
type FileAppealRequest struct {
	Reasoning string `json:"reasoning" validate:"required"`
}

// AddDocumentRequest attaches an externally stored document reference.
type AddDocumentRequest struct {
	Kind          string `json:"kind" validate:"required"`
	Name          string `json:"name" validate:"required"`
	StorageHandle string `json:"storageHandle" validate:"required"`
	SizeBytes     int64  `json:"sizeBytes" validate:"required,min=1"`
	MimeType      string `json:"mimeType" validate:"required"`
}

// ChallengeQuery is the closed filter set for challenge listings.
type ChallengeQuery struct {
	ElectionID string
	Status     []models.ChallengeStatus
	Type       models.ChallengeType
	FilerID    string
	Page       int
	PageSize   int
}
