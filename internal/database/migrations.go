package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/remarks/internal/comments"
	"github.com/MarcoPoloResearchLab/remarks/internal/feedback"
	"github.com/MarcoPoloResearchLab/remarks/internal/moderation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillCommentStatus  = "2026-01-10_backfill_comment_status"
	migrationBackfillFeedbackStatus = "2026-01-10_backfill_feedback_status"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

var migrations = []migrationDefinition{
	{name: migrationBackfillCommentStatus, apply: backfillCommentStatus},
	{name: migrationBackfillFeedbackStatus, apply: backfillFeedbackStatus},
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: time.Now().UTC().Unix()}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before status existed are treated as unmoderated.
func backfillCommentStatus(db *gorm.DB) error {
	return db.Model(&comments.Comment{}).
		Where("status = '' OR status IS NULL").
		Update("status", moderation.StatusPending).Error
}

func backfillFeedbackStatus(db *gorm.DB) error {
	return db.Model(&feedback.Feedback{}).
		Where("status = '' OR status IS NULL").
		Update("status", feedback.StatusNew).Error
}
