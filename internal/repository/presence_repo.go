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

// PresenceRepo tracks one heartbeat row per active user. A user is online
// while its last heartbeat falls inside the configured window; rows past the
// window are removed by SweepExpired, which the caller runs on its poll tick.
type PresenceRepo struct {
	db *gorm.DB
}

func NewPresenceRepo(db *gorm.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// Heartbeat upserts last_heartbeat = now for username and reports whether the
// row was created, which happens once per session and drives the join alert.
// An empty avatarRef leaves any stored avatar reference untouched. The insert
// resolves the primary-key conflict in the engine, so concurrent heartbeats
// for one user never race a read-then-write.
func (r *PresenceRepo) Heartbeat(ctx context.Context, username, avatarRef string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoNothing: true,
	}).Create(&models.UserPresence{Username: username, AvatarRef: avatarRef, LastHeartbeat: now})
	if res.Error != nil {
		return false, fmt.Errorf("%w: create presence %s: %v", apperrors.ErrStorage, username, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	updates := map[string]any{"last_heartbeat": now}
	if avatarRef != "" {
		updates["avatar_ref"] = avatarRef
	}
	err := r.db.WithContext(ctx).
		Model(&models.UserPresence{}).
		Where("username = ?", username).
		Updates(updates).Error
	if err != nil {
		return false, fmt.Errorf("%w: update presence %s: %v", apperrors.ErrStorage, username, err)
	}
	return false, nil
}

func (r *PresenceRepo) Get(ctx context.Context, username string) (*models.UserPresence, error) {
	var row models.UserPresence
	err := r.db.WithContext(ctx).First(&row, "username = ?", username).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get presence %s: %v", apperrors.ErrStorage, username, err)
	}
	return &row, nil
}

// Online returns users whose heartbeat falls inside window.
func (r *PresenceRepo) Online(ctx context.Context, window time.Duration) ([]models.UserPresence, error) {
	cutoff := time.Now().UTC().Add(-window)
	var rows []models.UserPresence
	err := r.db.WithContext(ctx).
		Where("last_heartbeat >= ?", cutoff).
		Order("username ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: online users: %v", apperrors.ErrStorage, err)
	}
	return rows, nil
}

// SweepExpired removes every row older than window and returns the affected
// usernames so the caller can emit their leave alerts.
func (r *PresenceRepo) SweepExpired(ctx context.Context, window time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-window)
	var expired []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.UserPresence
		if err := tx.Where("last_heartbeat < ?", cutoff).Find(&rows).Error; err != nil {
			return fmt.Errorf("%w: sweep select: %v", apperrors.ErrStorage, err)
		}
		if len(rows) == 0 {
			return nil
		}
		names := make([]string, 0, len(rows))
		for _, row := range rows {
			names = append(names, row.Username)
		}
		// re-check the cutoff in the delete so a heartbeat racing the sweep wins
		err := tx.Where("username IN ? AND last_heartbeat < ?", names, cutoff).
			Delete(&models.UserPresence{}).Error
		if err != nil {
			return fmt.Errorf("%w: sweep delete: %v", apperrors.ErrStorage, err)
		}
		expired = names
		return nil
	})
	return expired, err
}

// Remove drops the row for username, reporting whether it existed.
func (r *PresenceRepo) Remove(ctx context.Context, username string) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.UserPresence{}, "username = ?", username)
	if res.Error != nil {
		return false, fmt.Errorf("%w: remove presence %s: %v", apperrors.ErrStorage, username, res.Error)
	}
	return res.RowsAffected > 0, nil
}
