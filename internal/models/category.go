package models

// Category groups inventory items for a single owner.
type Category struct {
	Base
	UserID      string `gorm:"type:uuid;not null;uniqueIndex:uq_categories_user_name" json:"user_id"`
	Name        string `gorm:"not null;size:50;uniqueIndex:uq_categories_user_name" json:"name"`
	Description string `gorm:"size:200" json:"description"`
	Icon        string `gorm:"default:'CategoryIcon'" json:"icon"`
	Color       string `json:"color,omitempty"`

	// Populated at query time.
	ProductCount int64 `gorm:"-" json:"product_count"`
}
