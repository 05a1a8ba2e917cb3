package services

import (
	"context"
	"time"

	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/kendall-kelly/home-services-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SweepResult summarises one sweep run
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// ThresholdSweeper reminds customers whose orders are still unassigned
// after the service threshold has passed. It never changes an order.
type ThresholdSweeper struct {
	db         *gorm.DB
	dispatcher *NotificationDispatcher
	now        func() time.Time
}

// NewThresholdSweeper creates a sweeper. now may be nil to use wall time.
func NewThresholdSweeper(db *gorm.DB, dispatcher *NotificationDispatcher, now func() time.Time) *ThresholdSweeper {
	if now == nil {
		now = time.Now
	}
	return &ThresholdSweeper{db: db, dispatcher: dispatcher, now: now}
}

// Sweep notifies the customer of every unassigned order past its threshold.
// Each order is notified at most once; a failure on one order does not
// stop the others.
func (s *ThresholdSweeper) Sweep(ctx context.Context) (*SweepResult, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Service").
		Preload("User").
		Where("partner_id IS NULL AND status IN ?", awaitingAssignmentStatuses).
		Order("created_at ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, classifyDBError(err)
	}

	now := s.now()
	result := &SweepResult{}
	for i := range orders {
		order := &orders[i]
		if !order.CreatedAt.Add(order.Service.ThresholdDuration()).Before(now) {
			continue
		}
		result.Scanned++

		if err := ctx.Err(); err != nil {
			return result, err
		}

		delivered, err := s.dispatcher.HasDelivered(ctx, order.ID, models.NotificationThresholdExceeded)
		if err != nil {
			logger.Log.Error("Threshold sweep failed to read delivery log", zap.Uint("order_id", order.ID), zap.Error(err))
			result.Failed++
			continue
		}
		if delivered {
			result.Skipped++
			continue
		}

		if s.dispatcher.NotifyThresholdExceeded(ctx, order).OK() {
			result.Notified++
		} else {
			result.Failed++
		}
	}

	logger.Log.Info("Threshold sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("notified", result.Notified),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
