package models

import "time"

// ChallengeType enumerates what kind of entity is being challenged.
type ChallengeType string

const (
	ChallengeTypeSlate    ChallengeType = "CHAPA"
	ChallengeTypeMember   ChallengeType = "MEMBER"
	ChallengeTypeDocument ChallengeType = "DOCUMENT"
)

// ChallengeStatus captures lifecycle states of an impugnação case.
type ChallengeStatus string

const (
	ChallengeStatusFiled            ChallengeStatus = "FILED"
	ChallengeStatusAwaitingDefense  ChallengeStatus = "AWAITING_DEFENSE"
	ChallengeStatusDefenseSubmitted ChallengeStatus = "DEFENSE_SUBMITTED"
	ChallengeStatusUnderJudgment    ChallengeStatus = "UNDER_JUDGMENT"
	ChallengeStatusUpheld           ChallengeStatus = "UPHELD"
	ChallengeStatusDenied           ChallengeStatus = "DENIED"
	ChallengeStatusArchived         ChallengeStatus = "ARCHIVED"
)

// RulingOutcome is the decision of a judgment instance.
type RulingOutcome string

const (
	RulingOutcomeUpheld RulingOutcome = "UPHELD"
	RulingOutcomeDenied RulingOutcome = "DENIED"
)

// MaxInstance caps adjudication at one appeal: 1 = first tier, 2 = appellate.
const MaxInstance = 2

// Challenge is an impugnação case against a slate, member, or document.
type Challenge struct {
	ID         string          `db:"id" json:"id"`
	Protocol   string          `db:"protocol" json:"protocol"`
	ElectionID string          `db:"election_id" json:"electionId"`
	Type       ChallengeType   `db:"type" json:"type"`
	TargetKind string          `db:"target_kind" json:"targetKind"`
	TargetID   string          `db:"target_id" json:"targetId"`
	Status     ChallengeStatus `db:"status" json:"status"`
	Instance   int             `db:"instance" json:"instance"`
	FilerID    string          `db:"filer_id" json:"filerId"`
	Grounds    string          `db:"grounds" json:"grounds"`
	Reasoning  string          `db:"reasoning" json:"reasoning"`
	Defense    *string         `db:"defense" json:"defense,omitempty"`
	DefenseAt  *time.Time      `db:"defense_at" json:"defenseAt,omitempty"`
	Version    int             `db:"version" json:"-"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updatedAt"`

	Rulings   []Ruling   `db:"-" json:"rulings,omitempty"`
	Documents []Document `db:"-" json:"documents,omitempty"`
	Deadlines []Deadline `db:"-" json:"deadlines,omitempty"`
}

// CurrentRuling returns the ruling for the highest adjudicated instance.
func (c *Challenge) CurrentRuling() *Ruling {
	var current *Ruling
	for i := range c.Rulings {
		if current == nil || c.Rulings[i].Instance > current.Instance {
			current = &c.Rulings[i]
		}
	}
	return current
}

// IsTerminal reports whether no further transition is legally available.
func (c *Challenge) IsTerminal() bool {
	if c.Status == ChallengeStatusArchived {
		return true
	}
	if c.Status != ChallengeStatusUpheld && c.Status != ChallengeStatusDenied {
		return false
	}
	ruling := c.CurrentRuling()
	if ruling == nil {
		return false
	}
	return !ruling.Appealable || c.Instance >= MaxInstance
}

// Ruling is one decision record; at most one exists per (challenge, instance).
type Ruling struct {
	ID          string        `db:"id" json:"id"`
	ChallengeID string        `db:"challenge_id" json:"challengeId"`
	Instance    int           `db:"instance" json:"instance"`
	Outcome     RulingOutcome `db:"outcome" json:"outcome"`
	Reasoning   string        `db:"reasoning" json:"reasoning"`
	JudgeRef    string        `db:"judge_ref" json:"judgeRef"`
	Penalty     *string       `db:"penalty" json:"penalty,omitempty"`
	Appealable  bool          `db:"appealable" json:"appealable"`
	JudgedAt    time.Time     `db:"judged_at" json:"judgedAt"`
}

// Document is an opaque reference to an externally stored file. Rows are
// append-only; removal sets removed_at so the chain of custody is auditable.
type Document struct {
	ID            string     `db:"id" json:"id"`
	ChallengeID   string     `db:"challenge_id" json:"challengeId"`
	Kind          string     `db:"kind" json:"kind"`
	Name          string     `db:"name" json:"name"`
	StorageHandle string     `db:"storage_handle" json:"storageHandle"`
	SizeBytes     int64      `db:"size_bytes" json:"sizeBytes"`
	MimeType      string     `db:"mime_type" json:"mimeType"`
	AddedBy       string     `db:"added_by" json:"addedBy"`
	AddedAt       time.Time  `db:"added_at" json:"addedAt"`
	RemovedAt     *time.Time `db:"removed_at" json:"removedAt,omitempty"`
}

// ChallengeFilter constrains listing queries.
type ChallengeFilter struct {
	ElectionID string
	Status     []ChallengeStatus
	Type       ChallengeType
	FilerID    string
	Limit      int
	Offset     int
}
