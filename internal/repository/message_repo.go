package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Debayan00100101/chatt/internal/apperrors"
	"github.com/Debayan00100101/chatt/internal/models"
)

// MessageRepo is the append-only (with authorized deletion) message log.
// Blob reference counts are maintained in the same transaction as the row,
// so a key's count always matches the number of rows pointing at it.
type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append inserts the message and returns with msg.ID assigned by sqlite.
// Ids are strictly increasing and never reused.
func (r *MessageRepo) Append(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("%w: insert message: %v", apperrors.ErrStorage, err)
		}
		if !msg.IsMedia() {
			return nil
		}
		if err := addRef(tx, msg.Content); err != nil {
			return err
		}
		if msg.ThumbRef != "" {
			return addRef(tx, msg.ThumbRef)
		}
		return nil
	})
}

// List returns every message in ascending id order, metadata only.
func (r *MessageRepo) List(ctx context.Context) ([]models.Message, error) {
	var msgs []models.Message
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", apperrors.ErrStorage, err)
	}
	return msgs, nil
}

func (r *MessageRepo) Get(ctx context.Context, id uint64) (*models.Message, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).First(&msg, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get message %d: %v", apperrors.ErrStorage, id, err)
	}
	return &msg, nil
}

// Delete removes the message when requester is its author or override is set.
// It reports whether the row was removed and which blob keys dropped to zero
// references; the caller is responsible for removing those objects.
// A missing id is not an error: the second of two concurrent deletes simply
// finds nothing and reports false.
func (r *MessageRepo) Delete(ctx context.Context, id uint64, requester string, override bool) ([]string, bool, error) {
	var released []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		err := tx.First(&msg, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: get message %d: %v", apperrors.ErrStorage, id, err)
		}
		if msg.Author != requester && !override {
			return apperrors.ErrUnauthorized
		}
		if err := tx.Delete(&models.Message{}, id).Error; err != nil {
			return fmt.Errorf("%w: delete message %d: %v", apperrors.ErrStorage, id, err)
		}
		if !msg.IsMedia() {
			return nil
		}
		for _, key := range []string{msg.Content, msg.ThumbRef} {
			if key == "" {
				continue
			}
			free, err := releaseRef(tx, key)
			if err != nil {
				return err
			}
			if free {
				released = append(released, key)
			}
		}
		return nil
	})
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrUnauthorized) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return released, true, nil
}

func addRef(tx *gorm.DB, key string) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("count + 1")}),
	}).Create(&models.BlobRef{Key: key, Count: 1}).Error
	if err != nil {
		return fmt.Errorf("%w: add blob ref %s: %v", apperrors.ErrStorage, key, err)
	}
	return nil
}

// releaseRef decrements the count for key and reports whether it hit zero.
// An untracked key counts as already free so the object still gets cleaned up.
func releaseRef(tx *gorm.DB, key string) (bool, error) {
	var ref models.BlobRef
	err := tx.First(&ref, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get blob ref %s: %v", apperrors.ErrStorage, key, err)
	}
	if ref.Count <= 1 {
		if err := tx.Delete(&models.BlobRef{}, "key = ?", key).Error; err != nil {
			return false, fmt.Errorf("%w: delete blob ref %s: %v", apperrors.ErrStorage, key, err)
		}
		return true, nil
	}
	err = tx.Model(&models.BlobRef{}).Where("key = ?", key).
		Update("count", gorm.Expr("count - 1")).Error
	if err != nil {
		return false, fmt.Errorf("%w: release blob ref %s: %v", apperrors.ErrStorage, key, err)
	}
	return false, nil
}
