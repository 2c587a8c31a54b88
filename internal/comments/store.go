package comments

import (
	"context"
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/moderation"
	"gorm.io/gorm"
)

// ErrRecordNotFound is returned by Store implementations when no record matches.
var ErrRecordNotFound = errors.New("comments: record not found")

const (
	columnID                    = "id"
	columnNormalizedKey         = "normalized_key"
	columnBody                  = "body"
	columnStatus                = "status"
	columnAuthorID              = "author_id"
	columnAuthorEmail           = "author_email"
	columnOwnershipSecretDigest = "ownership_secret_digest"
	columnUpdatedAt             = "updated_at"
	orderNewestFirst            = "created_at DESC, id DESC"
)

var (
	publicColumns = []string{
		columnID, columnNormalizedKey, "brand", "model", "type", columnBody,
		"author_name", columnStatus, "created_at", columnUpdatedAt,
	}
	moderationColumns = append(append([]string{}, publicColumns...), columnAuthorEmail, columnAuthorID)
)

// Projection selects which columns a read returns.
type Projection int

const (
	// ProjectPublic omits the author email, author identity and ownership digest.
	ProjectPublic Projection = iota
	// ProjectModeration omits only the ownership digest.
	ProjectModeration
)

func (p Projection) columns() []string {
	if p == ProjectModeration {
		return moderationColumns
	}
	return publicColumns
}

// Filter narrows Find results. Zero values do not constrain.
type Filter struct {
	NormalizedKey string
	Statuses      []moderation.Status
	Limit         int
}

// Selector addresses exactly one record. When OwnershipDigest is set the write only applies
// while the stored digest still matches; CurrentStatuses likewise restricts the status.
type Selector struct {
	ID              string
	OwnershipDigest *string
	CurrentStatuses []moderation.Status
}

// Patch maps column names to new values.
type Patch map[string]any

// Store is the persistence port used by the comment lifecycle manager.
type Store interface {
	Insert(ctx context.Context, comment *Comment) error
	Get(ctx context.Context, id string) (Comment, error)
	Find(ctx context.Context, filter Filter, projection Projection) ([]Comment, error)
	UpdateOne(ctx context.Context, selector Selector, patch Patch) (bool, error)
	DeleteOne(ctx context.Context, selector Selector) (bool, error)
	AssignAuthorByEmail(ctx context.Context, email, authorID string, at time.Time) (matched int64, modified int64, err error)
}

// GormStore implements Store on top of a gorm handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, comment *Comment) error {
	return s.db.WithContext(ctx).Create(comment).Error
}

func (s *GormStore) Get(ctx context.Context, id string) (Comment, error) {
	var comment Comment
	err := s.db.WithContext(ctx).Where(columnID+" = ?", id).Take(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Comment{}, ErrRecordNotFound
	}
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

func (s *GormStore) Find(ctx context.Context, filter Filter, projection Projection) ([]Comment, error) {
	query := s.db.WithContext(ctx).
		Model(&Comment{}).
		Select(projection.columns())
	if filter.NormalizedKey != "" {
		query = query.Where(columnNormalizedKey+" = ?", filter.NormalizedKey)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where(columnStatus+" IN ?", filter.Statuses)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var comments []Comment
	if err := query.Order(orderNewestFirst).Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}

func (s *GormStore) UpdateOne(ctx context.Context, selector Selector, patch Patch) (bool, error) {
	result := s.selectOne(ctx, selector).Model(&Comment{}).Updates(map[string]any(patch))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) DeleteOne(ctx context.Context, selector Selector) (bool, error) {
	result := s.selectOne(ctx, selector).Delete(&Comment{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AssignAuthorByEmail attaches authorID to every unclaimed comment submitted with email.
// Counting and updating share one transaction so the counts describe the same row set.
func (s *GormStore) AssignAuthorByEmail(ctx context.Context, email, authorID string, at time.Time) (int64, int64, error) {
	var matched, modified int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unclaimed := func() *gorm.DB {
			return tx.Model(&Comment{}).
				Where(columnAuthorID+" IS NULL").
				Where(columnAuthorEmail+" = ?", email)
		}
		if err := unclaimed().Count(&matched).Error; err != nil {
			return err
		}
		if matched == 0 {
			return nil
		}
		result := unclaimed().Updates(map[string]any{
			columnAuthorID:  authorID,
			columnUpdatedAt: at,
		})
		if result.Error != nil {
			return result.Error
		}
		modified = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return matched, modified, nil
}

func (s *GormStore) selectOne(ctx context.Context, selector Selector) *gorm.DB {
	query := s.db.WithContext(ctx).Where(columnID+" = ?", selector.ID)
	if selector.OwnershipDigest != nil {
		query = query.Where(columnOwnershipSecretDigest+" = ?", *selector.OwnershipDigest)
	}
	if len(selector.CurrentStatuses) > 0 {
		query = query.Where(columnStatus+" IN ?", selector.CurrentStatuses)
	}
	return query
}
