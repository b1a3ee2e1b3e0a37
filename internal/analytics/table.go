package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/models"
)

// Column keys shared by rows, footers and exports.
const (
	ColProductName = "product_name"
	ColQuantity    = "quantity"
	ColStock       = "stock"
	ColBuyValue    = "buy_value"
	ColSellValue   = "sell_value"
	ColProfit      = "profit"
	ColDate        = "date"
)

// Column describes one table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Row is one itemized record. Only the fields named by the table's columns
// are meaningful for a given kind.
type Row struct {
	RecordID    string    `json:"record_id"`
	ProductID   string    `json:"product_id"`
	ProductName string    `json:"product_name"`
	SKU         string    `json:"sku"`
	Quantity    int       `json:"quantity"`
	Stock       int       `json:"stock"`
	BuyValue    float64   `json:"buy_value"`
	SellValue   float64   `json:"sell_value"`
	Profit      float64   `json:"profit"`
	Date        time.Time `json:"date"`
}

// Value returns the row's value for a column key.
func (r Row) Value(key string) any {
	switch key {
	case ColProductName:
		return r.ProductName
	case ColQuantity:
		return r.Quantity
	case ColStock:
		return r.Stock
	case ColBuyValue:
		return r.BuyValue
	case ColSellValue:
		return r.SellValue
	case ColProfit:
		return r.Profit
	case ColDate:
		return r.Date
	}
	return nil
}

// Table is the itemized view of one record kind. Footer maps column keys to
// totals and is nil for kinds without a footer.
type Table struct {
	Kind    models.RecordKind  `json:"kind"`
	Columns []Column           `json:"columns"`
	Rows    []Row              `json:"rows"`
	Footer  map[string]float64 `json:"footer,omitempty"`
}

// Columns returns the column layout for kind.
func Columns(kind models.RecordKind) []Column {
	switch kind {
	case models.RecordKindAdd:
		return []Column{
			{ColProductName, "Product Name"},
			{ColQuantity, "Quantity Added"},
			{ColBuyValue, "Buy Value"},
			{ColDate, "Date"},
		}
	case models.RecordKindEditItem:
		return []Column{
			{ColProductName, "Product Name"},
			{ColStock, "Current Stock"},
			{ColBuyValue, "Buying Price"},
			{ColSellValue, "Selling Price"},
			{ColDate, "Date"},
		}
	case models.RecordKindReduce:
		return []Column{
			{ColProductName, "Product Name"},
			{ColQuantity, "Sold Quantity"},
			{ColSellValue, "Sell Value"},
			{ColBuyValue, "Buy Value"},
			{ColProfit, "Profit"},
			{ColDate, "Date"},
		}
	case models.RecordKindNewItem:
		return []Column{
			{ColProductName, "Product Name"},
			{ColStock, "Initial Stock"},
			{ColBuyValue, "Initial Buy Value"},
			{ColDate, "Date"},
		}
	case models.RecordKindDeleteItem:
		return []Column{
			{ColProductName, "Product Name"},
			{ColStock, "Stock at Deletion"},
			{ColBuyValue, "Buy Value at Deletion"},
			{ColDate, "Date"},
		}
	}
	return nil
}

// Itemize filters records to one kind and projects them into a table with
// kind-specific columns and totals.
func Itemize(records []models.TransactionRecord, kind models.RecordKind) (Table, error) {
	if !kind.Valid() {
		return Table{}, apperrors.ErrInvalidRecordKind
	}

	table := Table{Kind: kind, Columns: Columns(kind), Rows: []Row{}}

	var units int
	var buyTotal, sellTotal, profitTotal decimal.Decimal

	for i := range records {
		r := &records[i]
		if r.Kind != kind {
			continue
		}

		row := Row{
			RecordID:    r.ID,
			ProductID:   r.ProductID,
			ProductName: r.ProductName,
			SKU:         r.SKU,
			Date:        r.Timestamp,
		}
		q := abs(r.ChangeQuantity)
		bp := price(r.BuyingPriceAtTransaction)
		sp := price(r.SellingPriceAtTransaction)

		switch kind {
		case models.RecordKindAdd:
			buy := bp.Mul(qty(q))
			row.Quantity = q
			row.BuyValue = money(buy)
			units += q
			buyTotal = buyTotal.Add(buy)
		case models.RecordKindNewItem, models.RecordKindDeleteItem:
			buy := bp.Mul(qty(q))
			row.Stock = q
			row.BuyValue = money(buy)
			units += q
			buyTotal = buyTotal.Add(buy)
		case models.RecordKindReduce:
			sell := sp.Mul(qty(q))
			buy := bp.Mul(qty(q))
			row.Quantity = q
			row.SellValue = money(sell)
			row.BuyValue = money(buy)
			row.Profit = money(sell.Sub(buy))
			units += q
			sellTotal = sellTotal.Add(sell)
			buyTotal = buyTotal.Add(buy)
			profitTotal = profitTotal.Add(sell.Sub(buy))
		case models.RecordKindEditItem:
			row.Stock = r.CurrentQuantity
			row.BuyValue = money(bp)
			row.SellValue = money(sp)
		}

		table.Rows = append(table.Rows, row)
	}

	switch kind {
	case models.RecordKindAdd:
		table.Footer = map[string]float64{
			ColQuantity: float64(units),
			ColBuyValue: money(buyTotal),
		}
	case models.RecordKindNewItem, models.RecordKindDeleteItem:
		table.Footer = map[string]float64{
			ColStock:    float64(units),
			ColBuyValue: money(buyTotal),
		}
	case models.RecordKindReduce:
		table.Footer = map[string]float64{
			ColQuantity:  float64(units),
			ColSellValue: money(sellTotal),
			ColBuyValue:  money(buyTotal),
			ColProfit:    money(profitTotal),
		}
	case models.RecordKindEditItem:
		// no totals
	}

	return table, nil
}
