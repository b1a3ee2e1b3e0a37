// Package analytics reduces inventory history into summaries, rankings,
// itemized tables and goal progress. Everything here is a pure function of
// its input records; callers are responsible for owner and period filtering.
package analytics

import (
	"github.com/shopspring/decimal"

	"stocktrail/internal/models"
)

// Summary is the buy/sell/profit total over a set of records.
type Summary struct {
	TotalBuyValue  float64 `json:"total_buy_value"`
	TotalSellValue float64 `json:"total_sell_value"`
	Profit         float64 `json:"profit"`
}

// Summarize computes buy value, sell value and profit. Profit is accumulated
// per sale from the snapshot prices, so it is generally not equal to
// TotalSellValue - TotalBuyValue.
func Summarize(records []models.TransactionRecord) Summary {
	var buy, sell, profit decimal.Decimal

	for i := range records {
		r := &records[i]
		switch r.Kind {
		case models.RecordKindAdd, models.RecordKindNewItem:
			buy = buy.Add(price(r.BuyingPriceAtTransaction).Mul(qty(r.ChangeQuantity)))
		case models.RecordKindDeleteItem:
			buy = buy.Sub(price(r.BuyingPriceAtTransaction).Mul(absQty(r.ChangeQuantity)))
		case models.RecordKindReduce:
			q := absQty(r.ChangeQuantity)
			sp := price(r.SellingPriceAtTransaction)
			bp := price(r.BuyingPriceAtTransaction)
			sell = sell.Add(sp.Mul(q))
			profit = profit.Add(sp.Sub(bp).Mul(q))
		case models.RecordKindEditItem:
			// price snapshots only
		}
	}

	return Summary{
		TotalBuyValue:  money(buy),
		TotalSellValue: money(sell),
		Profit:         money(profit),
	}
}

func price(p *float64) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*p)
}

func qty(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func absQty(n int) decimal.Decimal {
	return qty(abs(n))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// money rounds to cents for output.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// percent returns 100 * part / whole rounded to 2 places, or 0 when whole
// is not positive.
func percent(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	return money(part.Mul(decimal.NewFromInt(100)).Div(whole))
}
