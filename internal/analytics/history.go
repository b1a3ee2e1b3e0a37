package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stocktrail/internal/models"
	"stocktrail/internal/period"
)

// SortNewestFirst orders records by timestamp, newest first. Records with
// equal timestamps keep their relative order. The slice is sorted in place
// and returned.
func SortNewestFirst(records []models.TransactionRecord) []models.TransactionRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records
}

// SortOldestFirst orders records by timestamp ascending, in place.
func SortOldestFirst(records []models.TransactionRecord) []models.TransactionRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records
}

// DayBucket is one day of the weekly sales chart.
type DayBucket struct {
	Date   time.Time `json:"date"`
	Day    string    `json:"day"`
	Sales  float64   `json:"sales"`
	Profit float64   `json:"profit"`
}

// Weekly buckets reduce records into the seven days starting at week.Start.
// Records outside the week are ignored.
func Weekly(records []models.TransactionRecord, week period.Range) []DayBucket {
	if week.Start == nil {
		return nil
	}
	start := period.StartOfDay(*week.Start)
	loc := start.Location()

	sales := make([]decimal.Decimal, 7)
	profit := make([]decimal.Decimal, 7)

	for i := range records {
		r := &records[i]
		if r.Kind != models.RecordKindReduce {
			continue
		}
		day := period.StartOfDay(r.Timestamp.In(loc))
		idx := daysBetween(start, day)
		if idx < 0 || idx > 6 {
			continue
		}
		q := absQty(r.ChangeQuantity)
		sp := price(r.SellingPriceAtTransaction)
		bp := price(r.BuyingPriceAtTransaction)
		sales[idx] = sales[idx].Add(sp.Mul(q))
		profit[idx] = profit[idx].Add(sp.Sub(bp).Mul(q))
	}

	buckets := make([]DayBucket, 7)
	for i := range buckets {
		d := start.AddDate(0, 0, i)
		buckets[i] = DayBucket{
			Date:   d,
			Day:    d.Weekday().String()[:3],
			Sales:  money(sales[i]),
			Profit: money(profit[i]),
		}
	}
	return buckets
}

// daysBetween counts calendar days from a to b, both at midnight in the
// same location. DST shifts are absorbed by rounding.
func daysBetween(a, b time.Time) int {
	return int(math.Floor((b.Sub(a) + 12*time.Hour).Hours() / 24))
}

// Replay reconstructs a product's quantity by summing ChangeQuantity in
// timestamp order, starting from its new_item record. Records must all
// belong to the same product.
func Replay(records []models.TransactionRecord) int {
	ordered := SortOldestFirst(append([]models.TransactionRecord(nil), records...))

	total := 0
	anchored := false
	for i := range ordered {
		r := &ordered[i]
		if r.Kind == models.RecordKindNewItem {
			anchored = true
			total = 0
		}
		if !anchored {
			continue
		}
		total += r.ChangeQuantity
	}
	return total
}

// QuantityAt replays only the records at or before t.
func QuantityAt(records []models.TransactionRecord, t time.Time) int {
	upTo := make([]models.TransactionRecord, 0, len(records))
	for _, r := range records {
		if !r.Timestamp.After(t) {
			upTo = append(upTo, r)
		}
	}
	return Replay(upTo)
}
