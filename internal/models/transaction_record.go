package models

import (
	"time"

	"stocktrail/internal/uuid"

	"gorm.io/gorm"
)

// RecordKind classifies an inventory movement.
type RecordKind string

const (
	RecordKindAdd        RecordKind = "add"
	RecordKindReduce     RecordKind = "reduce"
	RecordKindNewItem    RecordKind = "new_item"
	RecordKindDeleteItem RecordKind = "delete_item"
	RecordKindEditItem   RecordKind = "edit_item"
)

// AllRecordKinds lists every kind in a fixed order.
var AllRecordKinds = []RecordKind{
	RecordKindAdd,
	RecordKindReduce,
	RecordKindNewItem,
	RecordKindDeleteItem,
	RecordKindEditItem,
}

// Valid reports whether k is one of the known kinds.
func (k RecordKind) Valid() bool {
	switch k {
	case RecordKindAdd, RecordKindReduce, RecordKindNewItem, RecordKindDeleteItem, RecordKindEditItem:
		return true
	}
	return false
}

// TransactionRecord is one entry of the append-only inventory history.
// Records are immutable: no Base embed and no soft deletes.
// ProductName and SKU are a snapshot taken at transaction time.
type TransactionRecord struct {
	ID                        string     `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID                 string     `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName               string     `gorm:"not null" json:"product_name"`
	SKU                       string     `gorm:"column:sku;not null" json:"sku"`
	ChangeQuantity            int        `gorm:"not null" json:"change_quantity"`
	CurrentQuantity           int        `gorm:"not null" json:"current_quantity"`
	Kind                      RecordKind `gorm:"not null;size:16" json:"kind"`
	SellingPriceAtTransaction *float64   `json:"selling_price_at_transaction,omitempty"`
	BuyingPriceAtTransaction  *float64   `json:"buying_price_at_transaction,omitempty"`
	UserID                    string     `gorm:"type:uuid;not null;index:idx_inventory_history_user_ts" json:"user_id"`
	Timestamp                 time.Time  `gorm:"not null;index:idx_inventory_history_user_ts" json:"timestamp"`
}

// TableName keeps the historical collection name.
func (TransactionRecord) TableName() string {
	return "inventory_history"
}

// BeforeCreate hook generates a UUIDv7 and stamps the record time.
func (r *TransactionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return nil
}

// SellingPrice returns the selling price snapshot or zero.
func (r *TransactionRecord) SellingPrice() float64 {
	if r.SellingPriceAtTransaction == nil {
		return 0
	}
	return *r.SellingPriceAtTransaction
}

// BuyingPrice returns the buying price snapshot or zero.
func (r *TransactionRecord) BuyingPrice() float64 {
	if r.BuyingPriceAtTransaction == nil {
		return 0
	}
	return *r.BuyingPriceAtTransaction
}
