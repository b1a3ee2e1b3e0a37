package services

import (
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"stocktrail/internal/analytics"
	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/models"
	"stocktrail/internal/period"
)

// historyService reads the inventory history. It never writes records.
type historyService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewHistoryService creates a new HistoryServicer.
func NewHistoryService(db *gorm.DB) HistoryServicer {
	return &historyService{db: db, now: time.Now}
}

func (s *historyService) query(userID string, r period.Range, filter HistoryFilter) *gorm.DB {
	q := s.db.Model(&models.TransactionRecord{}).Where("user_id = ?", userID)
	if r.Start != nil {
		q = q.Where("timestamp >= ?", *r.Start)
	}
	if r.End != nil {
		q = q.Where("timestamp <= ?", *r.End)
	}
	if filter.Kind != nil {
		q = q.Where("kind = ?", *filter.Kind)
	}
	if filter.ProductID != nil && *filter.ProductID != "" {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	return q
}

// Records returns the owner's records inside r, oldest first.
func (s *historyService) Records(userID string, r period.Range, filter HistoryFilter) ([]models.TransactionRecord, error) {
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, apperrors.ErrInvalidRecordKind
	}
	var records []models.TransactionRecord
	if err := s.query(userID, r, filter).Order("timestamp ASC, id ASC").Find(&records).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return records, nil
}

// History returns the owner's records inside r, newest first.
func (s *historyService) History(userID string, r period.Range, filter HistoryFilter) ([]models.TransactionRecord, error) {
	records, err := s.Records(userID, r, filter)
	if err != nil {
		return nil, err
	}
	return analytics.SortNewestFirst(records), nil
}

// Summary totals buy value, sell value and profit over r.
func (s *historyService) Summary(userID string, r period.Range) (analytics.Summary, error) {
	records, err := s.Records(userID, r, HistoryFilter{})
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(records), nil
}

// DailySummary is the summary of the current day.
func (s *historyService) DailySummary(userID string) (analytics.Summary, error) {
	now := s.now()
	return s.Summary(userID, period.Bounded(period.StartOfDay(now), period.EndOfDay(now)))
}

// MonthlySummary runs from the first of the month to the end of today.
func (s *historyService) MonthlySummary(userID string) (analytics.Summary, error) {
	now := s.now()
	return s.Summary(userID, period.Bounded(period.StartOfMonth(now), period.EndOfDay(now)))
}

// TopSellers ranks the products sold in r.
func (s *historyService) TopSellers(userID string, r period.Range, groupBy analytics.GroupBy) ([]analytics.ProductSales, error) {
	kind := models.RecordKindReduce
	records, err := s.Records(userID, r, HistoryFilter{Kind: &kind})
	if err != nil {
		return nil, err
	}
	return analytics.TopSellers(records, analytics.TopSellerOptions{GroupBy: groupBy}), nil
}

// Table itemizes the records of one kind in r.
func (s *historyService) Table(userID string, r period.Range, kind models.RecordKind) (analytics.Table, error) {
	if !kind.Valid() {
		return analytics.Table{}, apperrors.ErrInvalidRecordKind
	}
	records, err := s.Records(userID, r, HistoryFilter{Kind: &kind})
	if err != nil {
		return analytics.Table{}, err
	}
	return analytics.Itemize(analytics.SortNewestFirst(records), kind)
}

// Weekly buckets sales and profit per day of the week containing anchor.
func (s *historyService) Weekly(userID string, anchor time.Time) ([]analytics.DayBucket, error) {
	week := period.Week(anchor)
	records, err := s.Records(userID, week, HistoryFilter{})
	if err != nil {
		return nil, err
	}
	return analytics.Weekly(records, week), nil
}

// Dashboard gathers today's and this month's summaries with the month's top
// sellers.
func (s *historyService) Dashboard(userID string) (*Dashboard, error) {
	now := s.now()
	month, err := period.Resolve(period.MonthToDate, "", "", now)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{GeneratedAt: now}
	var g errgroup.Group

	g.Go(func() error {
		daily, err := s.DailySummary(userID)
		if err != nil {
			return err
		}
		d.Daily = daily
		return nil
	})

	g.Go(func() error {
		monthly, err := s.MonthlySummary(userID)
		if err != nil {
			return err
		}
		d.Monthly = monthly
		return nil
	})

	g.Go(func() error {
		top, err := s.TopSellers(userID, month, analytics.GroupByName)
		if err != nil {
			return err
		}
		d.TopSellers = top
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
