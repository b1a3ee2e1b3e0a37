package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"stocktrail/internal/models"
)

// GroupBy selects how sales are grouped into ranking entries.
type GroupBy string

const (
	// GroupByName merges every product sharing a name, including cost forks.
	GroupByName GroupBy = "name"
	// GroupByProduct keeps each stored product separate.
	GroupByProduct GroupBy = "product"
)

// TopSellerLimit is the default ranking length.
const TopSellerLimit = 10

// TopSellerOptions configures TopSellers. The zero value groups by name and
// returns at most TopSellerLimit entries.
type TopSellerOptions struct {
	GroupBy GroupBy
	Limit   int
}

// ProductSales is one entry of the top-selling ranking.
type ProductSales struct {
	ProductID            string  `json:"product_id,omitempty"`
	ProductName          string  `json:"product_name"`
	TotalSoldQuantity    int     `json:"total_sold_quantity"`
	TotalRevenue         float64 `json:"total_revenue"`
	TotalCostOfGoodsSold float64 `json:"total_cost_of_goods_sold"`
	AverageSellingPrice  float64 `json:"average_selling_price"`
	AverageBuyingPrice   float64 `json:"average_buying_price"`
	ProfitPerUnit        float64 `json:"profit_per_unit"`
	TotalProfit          float64 `json:"total_profit"`
}

type salesGroup struct {
	productID string
	name      string
	quantity  int
	revenue   decimal.Decimal
	cost      decimal.Decimal
}

// TopSellers ranks reduce records by units sold, descending. Groups with
// equal quantities keep the order in which they first appear in records.
func TopSellers(records []models.TransactionRecord, opts TopSellerOptions) []ProductSales {
	limit := opts.Limit
	if limit <= 0 {
		limit = TopSellerLimit
	}

	index := make(map[string]int)
	var groups []*salesGroup

	for i := range records {
		r := &records[i]
		if r.Kind != models.RecordKindReduce {
			continue
		}

		key := r.ProductName
		if opts.GroupBy == GroupByProduct {
			key = r.ProductID
		}

		pos, ok := index[key]
		if !ok {
			g := &salesGroup{name: r.ProductName}
			if opts.GroupBy == GroupByProduct {
				g.productID = r.ProductID
			}
			pos = len(groups)
			index[key] = pos
			groups = append(groups, g)
		}

		g := groups[pos]
		q := abs(r.ChangeQuantity)
		g.quantity += q
		g.revenue = g.revenue.Add(price(r.SellingPriceAtTransaction).Mul(qty(q)))
		g.cost = g.cost.Add(price(r.BuyingPriceAtTransaction).Mul(qty(q)))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].quantity > groups[j].quantity
	})

	if len(groups) > limit {
		groups = groups[:limit]
	}

	out := make([]ProductSales, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.sales())
	}
	return out
}

func (g *salesGroup) sales() ProductSales {
	ps := ProductSales{
		ProductID:            g.productID,
		ProductName:          g.name,
		TotalSoldQuantity:    g.quantity,
		TotalRevenue:         money(g.revenue),
		TotalCostOfGoodsSold: money(g.cost),
		TotalProfit:          money(g.revenue.Sub(g.cost)),
	}
	if g.quantity > 0 {
		q := qty(g.quantity)
		avgSell := g.revenue.Div(q)
		avgBuy := g.cost.Div(q)
		ps.AverageSellingPrice = money(avgSell)
		ps.AverageBuyingPrice = money(avgBuy)
		ps.ProfitPerUnit = money(avgSell.Sub(avgBuy))
	}
	return ps
}
