package models

import "time"

// Goal is a user's sales and profit target over a number of months.
// A user has at most one goal; setting a new one replaces it.
type Goal struct {
	Base
	UserID         string    `gorm:"type:uuid;not null;uniqueIndex" json:"-"`
	TargetAmount   float64   `gorm:"not null" json:"target_amount"`
	TargetProfit   float64   `gorm:"not null" json:"target_profit"`
	DurationMonths int       `gorm:"not null" json:"duration_months"`
	StartDate      time.Time `gorm:"not null" json:"start_date"`
	Deadline       time.Time `gorm:"not null" json:"deadline"`
}

// DeadlineFor returns the end of the day durationMonths after start.
func DeadlineFor(start time.Time, durationMonths int) time.Time {
	d := start.AddDate(0, durationMonths, 0)
	return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), d.Location())
}
