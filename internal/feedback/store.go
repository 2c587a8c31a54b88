package feedback

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrRecordNotFound is returned by Store implementations when no record matches.
var ErrRecordNotFound = errors.New("feedback: record not found")

const orderNewestFirst = "created_at DESC, id DESC"

var publicColumns = []string{"category", "message", "page_url", "status", "created_at"}

// Filter narrows Find results. Zero values do not constrain.
type Filter struct {
	Statuses []Status
	Category Category
	Limit    int
	// PublicOnly restricts the read to the public projection.
	PublicOnly bool
}

// Store is the persistence port used by the feedback lifecycle manager.
type Store interface {
	Insert(ctx context.Context, record *Feedback) error
	Find(ctx context.Context, filter Filter) ([]Feedback, error)
	UpdateOne(ctx context.Context, id string, patch map[string]any) (bool, error)
	DeleteOne(ctx context.Context, id string) (bool, error)
}

// GormStore implements Store on top of a gorm handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Insert(ctx context.Context, record *Feedback) error {
	return s.db.WithContext(ctx).Create(record).Error
}

func (s *GormStore) Find(ctx context.Context, filter Filter) ([]Feedback, error) {
	query := s.db.WithContext(ctx).Model(&Feedback{})
	if filter.PublicOnly {
		query = query.Select(publicColumns)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []Feedback
	if err := query.Order(orderNewestFirst).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *GormStore) UpdateOne(ctx context.Context, id string, patch map[string]any) (bool, error) {
	result := s.db.WithContext(ctx).Model(&Feedback{}).Where("id = ?", id).Updates(patch)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) DeleteOne(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Feedback{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
