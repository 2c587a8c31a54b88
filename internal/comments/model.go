package comments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/moderation"
)

// Type classifies what a comment reports about its subject.
type Type string

const (
	TypeMissingData Type = "missing-data"
	TypeCorrection  Type = "correction"
	TypeGeneral     Type = "general"
)

const (
	MaxNormalizedKeyLength = 200
	MaxDescriptorLength    = 120
	MinBodyLength          = 5
	MaxBodyLength          = 2000
	MaxAuthorEmailLength   = 254
)

// ErrInvalidType indicates a comment type outside the supported set.
var ErrInvalidType = errors.New("comments: invalid type")

// ParseType validates raw input and returns the matching Type.
func ParseType(raw string) (Type, error) {
	switch candidate := Type(strings.ToLower(strings.TrimSpace(raw))); candidate {
	case TypeMissingData, TypeCorrection, TypeGeneral:
		return candidate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, raw)
	}
}

// Comment is the persisted comment record.
type Comment struct {
	ID                    string            `gorm:"column:id;primaryKey;size:36;not null"`
	NormalizedKey         string            `gorm:"column:normalized_key;size:200;not null;index:idx_comments_key_status_created,priority:1"`
	Brand                 string            `gorm:"column:brand;size:120;not null;default:''"`
	ModelName             string            `gorm:"column:model;size:120;not null;default:''"`
	Type                  Type              `gorm:"column:type;size:32;not null"`
	Body                  string            `gorm:"column:body;type:text;not null"`
	AuthorName            string            `gorm:"column:author_name;size:120;not null;default:''"`
	AuthorEmail           string            `gorm:"column:author_email;size:254;not null;default:'';index:idx_comments_claim,priority:2"`
	AuthorID              *string           `gorm:"column:author_id;size:190;index:idx_comments_claim,priority:1"`
	OwnershipSecretDigest *string           `gorm:"column:ownership_secret_digest;size:64"`
	Status                moderation.Status `gorm:"column:status;size:16;not null;default:'pending';index:idx_comments_key_status_created,priority:2"`
	CreatedAt             time.Time         `gorm:"column:created_at;not null;index:idx_comments_key_status_created,priority:3"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// PublicComment is the read model served to anonymous visitors.
// It carries neither the author email nor the ownership digest.
type PublicComment struct {
	ID            string            `json:"id"`
	NormalizedKey string            `json:"normalizedKey"`
	Brand         string            `json:"brand,omitempty"`
	Model         string            `json:"model,omitempty"`
	Type          Type              `json:"type"`
	Body          string            `json:"body"`
	AuthorName    string            `json:"authorName,omitempty"`
	Status        moderation.Status `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// ModeratedComment is the read model served to moderators. It adds the author email and
// claimed identity but never the ownership digest.
type ModeratedComment struct {
	PublicComment
	AuthorEmail string  `json:"authorEmail,omitempty"`
	AuthorID    *string `json:"authorId,omitempty"`
}

func (c Comment) public() PublicComment {
	return PublicComment{
		ID:            c.ID,
		NormalizedKey: c.NormalizedKey,
		Brand:         c.Brand,
		Model:         c.ModelName,
		Type:          c.Type,
		Body:          c.Body,
		AuthorName:    c.AuthorName,
		Status:        c.Status,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func (c Comment) moderated() ModeratedComment {
	return ModeratedComment{
		PublicComment: c.public(),
		AuthorEmail:   c.AuthorEmail,
		AuthorID:      c.AuthorID,
	}
}
