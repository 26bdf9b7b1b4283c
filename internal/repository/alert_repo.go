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

// AlertRepo is the system notification log. Dismissals are per-viewer and
// persisted, so a hidden alert stays hidden across reconnects; only a purge
// removes an alert for everyone.
type AlertRepo struct {
	db *gorm.DB
}

func NewAlertRepo(db *gorm.DB) *AlertRepo {
	return &AlertRepo{db: db}
}

func (r *AlertRepo) Push(ctx context.Context, text string) (*models.Alert, error) {
	alert := &models.Alert{Text: text, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(alert).Error; err != nil {
		return nil, fmt.Errorf("%w: insert alert: %v", apperrors.ErrStorage, err)
	}
	return alert, nil
}

// List returns the most recent limit alerts oldest-first, excluding any the
// viewer already dismissed.
func (r *AlertRepo) List(ctx context.Context, limit int, viewer string) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Model(&models.Alert{})
	if viewer != "" {
		dismissed := r.db.Model(&models.AlertDismissal{}).
			Select("alert_id").
			Where("viewer = ?", viewer)
		q = q.Where("id NOT IN (?)", dismissed)
	}
	var alerts []models.Alert
	if err := q.Order("id DESC").Limit(limit).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("%w: list alerts: %v", apperrors.ErrStorage, err)
	}
	// newest N selected descending, reverse for chronological display
	for i, j := 0, len(alerts)-1; i < j; i, j = i+1, j-1 {
		alerts[i], alerts[j] = alerts[j], alerts[i]
	}
	return alerts, nil
}

// Dismiss hides the alert for a single viewer. Repeat dismissals are no-ops.
func (r *AlertRepo) Dismiss(ctx context.Context, id uint64, viewer string) error {
	var alert models.Alert
	err := r.db.WithContext(ctx).First(&alert, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: get alert %d: %v", apperrors.ErrStorage, id, err)
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.AlertDismissal{AlertID: id, Viewer: viewer}).Error
	if err != nil {
		return fmt.Errorf("%w: dismiss alert %d: %v", apperrors.ErrStorage, id, err)
	}
	return nil
}

// Purge permanently removes the alert and its dismissals for all viewers.
// The privilege check belongs to the caller.
func (r *AlertRepo) Purge(ctx context.Context, id uint64) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.AlertDismissal{}, "alert_id = ?", id).Error; err != nil {
			return fmt.Errorf("%w: purge dismissals %d: %v", apperrors.ErrStorage, id, err)
		}
		res := tx.Delete(&models.Alert{}, id)
		if res.Error != nil {
			return fmt.Errorf("%w: purge alert %d: %v", apperrors.ErrStorage, id, res.Error)
		}
		removed = res.RowsAffected > 0
		return nil
	})
	return removed, err
}
