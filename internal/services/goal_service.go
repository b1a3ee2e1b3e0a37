package services

import (
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"stocktrail/internal/analytics"
	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/models"
	"stocktrail/internal/period"
)

const maxGoalMonths = 120

// goalService manages the single sales goal of each user.
type goalService struct {
	db      *gorm.DB
	history HistoryServicer
	now     func() time.Time
}

// NewGoalService creates a new GoalServicer. Progress figures are computed
// from history.
func NewGoalService(db *gorm.DB, history HistoryServicer) GoalServicer {
	return &goalService{db: db, history: history, now: time.Now}
}

// SetGoal replaces the user's goal. A nil startDate starts the goal today.
func (s *goalService) SetGoal(userID string, targetAmount, targetProfit float64, durationMonths int, startDate *time.Time) (*models.Goal, error) {
	if err := validateGoal(targetAmount, targetProfit, durationMonths); err != nil {
		return nil, err
	}

	start := period.StartOfDay(s.now())
	if startDate != nil {
		start = period.StartOfDay(*startDate)
	}

	goal := &models.Goal{
		UserID:         userID,
		TargetAmount:   targetAmount,
		TargetProfit:   targetProfit,
		DurationMonths: durationMonths,
		StartDate:      start,
		Deadline:       models.DeadlineFor(start, durationMonths),
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", userID).Delete(&models.Goal{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Create(goal).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

// GetGoal retrieves the user's goal.
func (s *goalService) GetGoal(userID string) (*models.Goal, error) {
	var goal models.Goal
	if err := s.db.Where("user_id = ?", userID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// UpdateGoal changes targets or duration in place. The start date is kept;
// the deadline is only rescheduled when the duration changes.
func (s *goalService) UpdateGoal(userID string, targetAmount, targetProfit *float64, durationMonths *int) (*models.Goal, error) {
	goal, err := s.GetGoal(userID)
	if err != nil {
		return nil, err
	}

	if targetAmount != nil {
		goal.TargetAmount = *targetAmount
	}
	if targetProfit != nil {
		goal.TargetProfit = *targetProfit
	}
	rescheduled := durationMonths != nil && *durationMonths != goal.DurationMonths
	if durationMonths != nil {
		goal.DurationMonths = *durationMonths
	}
	if err := validateGoal(goal.TargetAmount, goal.TargetProfit, goal.DurationMonths); err != nil {
		return nil, err
	}
	if rescheduled {
		goal.Deadline = models.DeadlineFor(goal.StartDate, goal.DurationMonths)
	}

	if err := s.db.Model(goal).Updates(map[string]interface{}{
		"target_amount":   goal.TargetAmount,
		"target_profit":   goal.TargetProfit,
		"duration_months": goal.DurationMonths,
		"deadline":        goal.Deadline,
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// GetGoalProgress compares the goal against sales in its elapsed window and
// today.
func (s *goalService) GetGoalProgress(userID string) (*GoalStatus, error) {
	goal, err := s.GetGoal(userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	window := period.GoalWindow(goal.StartDate, goal.Deadline, now)
	today := period.Bounded(period.StartOfDay(now), now)

	var windowSummary, todaySummary analytics.Summary
	var g errgroup.Group
	g.Go(func() error {
		var err error
		windowSummary, err = s.history.Summary(userID, window)
		return err
	})
	g.Go(func() error {
		var err error
		todaySummary, err = s.history.Summary(userID, today)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &GoalStatus{
		Goal:     goal,
		Progress: analytics.Progress(*goal, windowSummary, todaySummary, now),
	}, nil
}

func validateGoal(targetAmount, targetProfit float64, durationMonths int) error {
	switch {
	case targetAmount <= 0:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be positive")
	case targetProfit < 0:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "target profit cannot be negative")
	case durationMonths < 1 || durationMonths > maxGoalMonths:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "duration must be between 1 and 120 months")
	}
	return nil
}
