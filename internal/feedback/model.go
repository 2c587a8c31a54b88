package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies a feedback submission.
type Category string

const (
	CategoryBug     Category = "bug"
	CategoryFeature Category = "feature"
	CategoryContent Category = "content"
	CategoryOther   Category = "other"
)

// Status is the single triage axis of a feedback record.
type Status string

const (
	StatusNew     Status = "new"
	StatusTriaged Status = "triaged"
	StatusClosed  Status = "closed"
)

// ListMode selects which statuses the public listing exposes.
type ListMode string

const (
	// ListModeRecent exposes open items only.
	ListModeRecent ListMode = "recent"
	// ListModeAll exposes every status.
	ListModeAll ListMode = "all"
)

const (
	MinMessageLength = 5
	MaxMessageLength = 3000
	MaxEmailLength   = 254
	MaxPageURLLength = 2048
	MaxUserAgentLen  = 512
)

var (
	ErrInvalidCategory = errors.New("feedback: invalid category")
	ErrInvalidStatus   = errors.New("feedback: invalid status")
	ErrInvalidListMode = errors.New("feedback: invalid list mode")
)

var modeStatuses = map[ListMode][]Status{
	ListModeRecent: {StatusNew, StatusTriaged},
	ListModeAll:    {StatusNew, StatusTriaged, StatusClosed},
}

// ParseCategory validates raw input.
func ParseCategory(raw string) (Category, error) {
	switch candidate := Category(strings.ToLower(strings.TrimSpace(raw))); candidate {
	case CategoryBug, CategoryFeature, CategoryContent, CategoryOther:
		return candidate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, raw)
	}
}

// ParseStatus validates raw input.
func ParseStatus(raw string) (Status, error) {
	switch candidate := Status(strings.ToLower(strings.TrimSpace(raw))); candidate {
	case StatusNew, StatusTriaged, StatusClosed:
		return candidate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// ParseListMode validates raw input; empty input selects ListModeRecent.
func ParseListMode(raw string) (ListMode, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ListModeRecent, nil
	}
	mode := ListMode(trimmed)
	if _, ok := modeStatuses[mode]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidListMode, raw)
	}
	return mode, nil
}

// Feedback is the persisted feedback record.
type Feedback struct {
	ID        string    `gorm:"column:id;primaryKey;size:36;not null"`
	Category  Category  `gorm:"column:category;size:16;not null;index"`
	Message   string    `gorm:"column:message;type:text;not null"`
	Email     string    `gorm:"column:email;size:254;not null;default:''"`
	PageURL   string    `gorm:"column:page_url;size:2048;not null;default:''"`
	UserAgent string    `gorm:"column:user_agent;size:512;not null;default:''"`
	Status    Status    `gorm:"column:status;size:16;not null;default:'new';index:idx_feedback_status_created,priority:1"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_feedback_status_created,priority:2"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Feedback) TableName() string {
	return "feedback"
}

// PublicFeedback is the reduced view safe to show to anyone.
type PublicFeedback struct {
	Category  Category  `json:"category"`
	Message   string    `json:"message"`
	PageURL   string    `json:"pageUrl,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ModeratedFeedback is the full record as served to moderators.
type ModeratedFeedback struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Message   string    `json:"message"`
	Email     string    `json:"email,omitempty"`
	PageURL   string    `json:"pageUrl,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (f Feedback) public() PublicFeedback {
	return PublicFeedback{
		Category:  f.Category,
		Message:   f.Message,
		PageURL:   f.PageURL,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
	}
}

func (f Feedback) moderated() ModeratedFeedback {
	return ModeratedFeedback{
		ID:        f.ID,
		Category:  f.Category,
		Message:   f.Message,
		Email:     f.Email,
		PageURL:   f.PageURL,
		UserAgent: f.UserAgent,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// allowedStatuses intersects the statuses mode permits with the optional caller filter,
// preserving the mode's order.
func allowedStatuses(mode ListMode, filter []Status) []Status {
	permitted := modeStatuses[mode]
	if len(filter) == 0 {
		return append([]Status(nil), permitted...)
	}
	requested := make(map[Status]struct{}, len(filter))
	for _, status := range filter {
		requested[status] = struct{}{}
	}
	result := make([]Status, 0, len(permitted))
	for _, status := range permitted {
		if _, ok := requested[status]; ok {
			result = append(result, status)
		}
	}
	return result
}
