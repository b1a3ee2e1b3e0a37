package models

// Product is a stocked inventory item. Quantity is the live on-hand count;
// its full movement history lives in TransactionRecord rows.
type Product struct {
	Base
	UserID       string    `gorm:"type:uuid;not null;uniqueIndex:uq_products_user_sku" json:"user_id"`
	Name         string    `gorm:"not null" json:"name"`
	SKU          string    `gorm:"column:sku;not null;uniqueIndex:uq_products_user_sku" json:"sku"`
	Description  string    `json:"description"`
	SellingPrice float64   `gorm:"not null;default:0" json:"selling_price"`
	BuyingPrice  float64   `gorm:"not null;default:0" json:"buying_price"`
	Quantity     int       `gorm:"not null;default:0" json:"quantity"`
	CategoryID   *string   `gorm:"type:uuid" json:"category_id,omitempty"`
	Category     *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	// ForkBaseSKU is the SKU of the product a cost fork was split from.
	// Empty for products created directly.
	ForkBaseSKU string `gorm:"column:fork_base_sku" json:"fork_base_sku,omitempty"`
}

// BaseSKU is the SKU further cost forks are numbered from.
func (p *Product) BaseSKU() string {
	if p.ForkBaseSKU != "" {
		return p.ForkBaseSKU
	}
	return p.SKU
}
