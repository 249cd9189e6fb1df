package types

import "strings"

// MissionStatus is the lifecycle state of a mission.
type MissionStatus string

// Mission states. ASSIGNED is initial and COMPLETED is terminal.
// PENDING_REVIEW is reserved for a human review workflow; nothing
// transitions a mission into it yet.
const (
	MissionAssigned      MissionStatus = "ASSIGNED"
	MissionPendingReview MissionStatus = "PENDING_REVIEW"
	MissionCompleted     MissionStatus = "COMPLETED"
)

// AutoReviewComment is recorded on every automatically verified submission.
const AutoReviewComment = "Auto-verified. Data processed. Good work."

// Valid reports whether s is a recognized mission status.
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionAssigned, MissionPendingReview, MissionCompleted:
		return true
	}
	return false
}

// Directive is an externally supplied mission description and point value.
// Chat directives carry no classification; clue-matrix directives carry
// their category and subcategory.
type Directive struct {
	Description string      `json:"description"`
	Points      int         `json:"points"`
	Category    Category    `json:"category,omitempty"`
	Subcategory Subcategory `json:"subcategory,omitempty"`
}

// Validate checks the directive before it becomes a mission.
func (d Directive) Validate() error {
	if strings.TrimSpace(d.Description) == "" {
		return ErrInvalidDescription
	}
	if d.Points < 0 {
		return ErrNegativePoints
	}
	if d.Category != "" && d.Category.Index() < 0 {
		return ErrInvalidData
	}
	if d.Subcategory != "" && d.Subcategory.Index() < 0 {
		return ErrInvalidData
	}
	return nil
}

// Mission is one assignable objective owned by a single agent profile.
type Mission struct {
	ID             string        `json:"id"`
	Description    string        `json:"description"`
	Points         int           `json:"points"`
	Status         MissionStatus `json:"status"`
	SubmissionText string        `json:"submissionText,omitempty"`
	ReviewComment  string        `json:"reviewComment,omitempty"`
	Category       Category      `json:"category,omitempty"`
	Subcategory    Subcategory   `json:"subcategory,omitempty"`
}

// NewMission creates a mission in the ASSIGNED state from a directive.
func NewMission(id string, d Directive) (Mission, error) {
	if id == "" {
		return Mission{}, ErrInvalidKey
	}
	if err := d.Validate(); err != nil {
		return Mission{}, err
	}
	return Mission{
		ID:          id,
		Description: strings.TrimSpace(d.Description),
		Points:      d.Points,
		Status:      MissionAssigned,
		Category:    d.Category,
		Subcategory: d.Subcategory,
	}, nil
}

// Complete applies the automatic ASSIGNED to COMPLETED transition for a
// field report. The text is trimmed and must not be empty. On error the
// mission is left unchanged.
func (m *Mission) Complete(submission string) error {
	text := strings.TrimSpace(submission)
	if text == "" {
		return ErrEmptySubmission
	}
	if m.Status != MissionAssigned {
		return ErrInvalidTransition
	}
	m.Status = MissionCompleted
	m.SubmissionText = text
	m.ReviewComment = AutoReviewComment
	return nil
}
