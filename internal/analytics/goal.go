package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"stocktrail/internal/models"
	"stocktrail/internal/period"
)

// PeriodEnded is the DaysLeft value once the deadline has passed. It is
// distinct from 0, which means the deadline is later today.
const PeriodEnded = -1

// daysPerMonth is the flat month length used for daily targets.
const daysPerMonth = 30

// GoalProgress is the goal dashboard derived from a goal and the sales
// summaries of its elapsed window and of today.
type GoalProgress struct {
	DailySalesTarget          float64   `json:"daily_sales_target"`
	DailyProfitTarget         float64   `json:"daily_profit_target"`
	DailySales                float64   `json:"daily_sales"`
	DailyProfit               float64   `json:"daily_profit"`
	DailySalesPercentage      float64   `json:"daily_sales_percentage"`
	DailyProfitPercentage     float64   `json:"daily_profit_percentage"`
	TotalSales                float64   `json:"total_sales"`
	TotalProfit               float64   `json:"total_profit"`
	TotalGoalSalesPercentage  float64   `json:"total_goal_sales_percentage"`
	TotalGoalProfitPercentage float64   `json:"total_goal_profit_percentage"`
	DaysLeft                  int       `json:"days_left"`
	Ended                     bool      `json:"ended"`
	CurrentGoalMonth          int       `json:"current_goal_month"`
	MonthStart                time.Time `json:"month_start"`
	MonthEnd                  time.Time `json:"month_end"`
	DaysLeftInMonth           int       `json:"days_left_in_month"`
}

// Progress combines goal targets with actuals. window summarizes the goal's
// elapsed window and today summarizes the current day.
func Progress(goal models.Goal, window, today Summary, now time.Time) GoalProgress {
	months := goal.DurationMonths
	if months < 1 {
		months = 1
	}

	targetAmount := decimal.NewFromFloat(goal.TargetAmount)
	targetProfit := decimal.NewFromFloat(goal.TargetProfit)
	perDay := decimal.NewFromInt(int64(months * daysPerMonth))
	dailySalesTarget := targetAmount.Div(perDay)
	dailyProfitTarget := targetProfit.Div(perDay)

	p := GoalProgress{
		DailySalesTarget:          money(dailySalesTarget),
		DailyProfitTarget:         money(dailyProfitTarget),
		DailySales:                today.TotalSellValue,
		DailyProfit:               today.Profit,
		DailySalesPercentage:      percent(decimal.NewFromFloat(today.TotalSellValue), dailySalesTarget),
		DailyProfitPercentage:     percent(decimal.NewFromFloat(today.Profit), dailyProfitTarget),
		TotalSales:                window.TotalSellValue,
		TotalProfit:               window.Profit,
		TotalGoalSalesPercentage:  percent(decimal.NewFromFloat(window.TotalSellValue), targetAmount),
		TotalGoalProfitPercentage: percent(decimal.NewFromFloat(window.Profit), targetProfit),
	}

	p.DaysLeft, p.Ended = daysLeft(goal.Deadline, now)
	p.CurrentGoalMonth = currentGoalMonth(goal.StartDate, months, now)

	start := goal.StartDate
	p.MonthStart = time.Date(start.Year(), start.Month()+time.Month(p.CurrentGoalMonth-1), 1, 0, 0, 0, 0, start.Location())
	p.MonthEnd = period.EndOfMonth(p.MonthStart)
	switch {
	case now.Before(p.MonthStart):
		p.DaysLeftInMonth = p.MonthEnd.Day()
	case now.Before(p.MonthEnd):
		p.DaysLeftInMonth = int(p.MonthEnd.Sub(now) / (24 * time.Hour))
	default:
		p.DaysLeftInMonth = 0
	}

	return p
}

func daysLeft(deadline, now time.Time) (int, bool) {
	if now.After(deadline) {
		return PeriodEnded, true
	}
	return int(deadline.Sub(now) / (24 * time.Hour)), false
}

// currentGoalMonth is the 1-based goal month containing now, clamped to the
// goal's duration.
func currentGoalMonth(start time.Time, months int, now time.Time) int {
	now = now.In(start.Location())
	elapsed := (now.Year()-start.Year())*12 + int(now.Month()-start.Month())
	m := elapsed + 1
	if m < 1 {
		return 1
	}
	if m > months {
		return months
	}
	return m
}
