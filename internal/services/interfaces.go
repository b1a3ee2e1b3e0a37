package services

import (
	"time"

	"stocktrail/internal/analytics"
	"stocktrail/internal/models"
	"stocktrail/internal/pagination"
	"stocktrail/internal/period"
)

// UserServicer defines the contract for accounts and authentication.
type UserServicer interface {
	Register(username, email, password string) (*models.User, error)
	VerifyOTP(email, otp string) (*models.User, error)
	ResendVerification(email string) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
	StoreRefreshTokenHash(userID, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
	ForgotPassword(email string) error
	ResetPassword(email, otp, newPassword string) error
	ChangePassword(userID, currentPassword, newPassword string) error
	RequestPasswordChangeOTP(userID string) error
	ChangePasswordWithOTP(userID, otp, newPassword string) error
	RequestAccountDeletion(userID, password string) error
	ConfirmAccountDeletion(userID, otp string) error
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name, description, icon, color string) (*models.Category, error)
	GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, name, description, icon, color *string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// ProductInput holds the fields of a new product.
type ProductInput struct {
	Name         string
	SKU          string
	Description  string
	SellingPrice float64
	BuyingPrice  float64
	Quantity     int
	CategoryID   *string
}

// ProductUpdate holds the detail fields that may change on a product. Nil
// fields are left alone; an empty CategoryID detaches the category.
// Quantity is only changed through AdjustQuantity.
type ProductUpdate struct {
	Name         *string
	SKU          *string
	Description  *string
	SellingPrice *float64
	BuyingPrice  *float64
	CategoryID   *string
}

// AdjustType is the direction of a quantity adjustment.
type AdjustType string

const (
	AdjustAdd    AdjustType = "add"
	AdjustReduce AdjustType = "reduce"
)

// QuantityAdjustment describes a stock movement. For AdjustAdd, BuyingPrice
// is the unit cost of the incoming stock; a cost different from the
// product's forks a new product. For AdjustReduce, SellingPrice is the unit
// price of this sale and defaults to the product's selling price.
type QuantityAdjustment struct {
	Type         AdjustType
	Quantity     int
	BuyingPrice  *float64
	SellingPrice *float64
}

// AdjustResult is the outcome of AdjustQuantity. When Forked is set,
// Product is the newly created sibling and the original is unchanged.
type AdjustResult struct {
	Product *models.Product           `json:"product"`
	Record  *models.TransactionRecord `json:"record"`
	Forked  bool                      `json:"forked"`
}

// ProductFilter holds optional filter parameters for listing products.
type ProductFilter struct {
	Search     string
	CategoryID *string
}

// InventoryServicer defines the contract for products and the history
// records every stock mutation appends.
type InventoryServicer interface {
	CreateProduct(userID string, in ProductInput) (*models.Product, error)
	BulkCreateProducts(userID string, in []ProductInput) ([]models.Product, error)
	GetUserProducts(userID string, page pagination.PageRequest, filter ProductFilter) (*pagination.PageResponse[models.Product], error)
	GetProductByID(userID, productID string) (*models.Product, error)
	UpdateProduct(userID, productID string, upd ProductUpdate) (*models.Product, error)
	AdjustQuantity(userID, productID string, adj QuantityAdjustment) (*AdjustResult, error)
	DeleteProduct(userID, productID string) error
	RenameHistory(userID, productID string, name, sku *string) (int64, error)
	StockAt(userID, productID string, at time.Time) (int, error)
}

// HistoryFilter narrows a history query beyond owner and period.
type HistoryFilter struct {
	Kind      *models.RecordKind
	ProductID *string
}

// Dashboard bundles the figures shown on the analytics landing view.
type Dashboard struct {
	Daily       analytics.Summary        `json:"daily"`
	Monthly     analytics.Summary        `json:"monthly"`
	TopSellers  []analytics.ProductSales `json:"top_sellers"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// HistoryServicer defines the contract for reading the inventory history
// and the analytics derived from it.
type HistoryServicer interface {
	Records(userID string, r period.Range, filter HistoryFilter) ([]models.TransactionRecord, error)
	History(userID string, r period.Range, filter HistoryFilter) ([]models.TransactionRecord, error)
	Summary(userID string, r period.Range) (analytics.Summary, error)
	DailySummary(userID string) (analytics.Summary, error)
	MonthlySummary(userID string) (analytics.Summary, error)
	TopSellers(userID string, r period.Range, groupBy analytics.GroupBy) ([]analytics.ProductSales, error)
	Table(userID string, r period.Range, kind models.RecordKind) (analytics.Table, error)
	Weekly(userID string, anchor time.Time) ([]analytics.DayBucket, error)
	Dashboard(userID string) (*Dashboard, error)
}

// GoalStatus is a goal together with its computed progress.
type GoalStatus struct {
	Goal     *models.Goal           `json:"goal"`
	Progress analytics.GoalProgress `json:"progress"`
}

// GoalServicer defines the contract for the sales goal.
type GoalServicer interface {
	SetGoal(userID string, targetAmount, targetProfit float64, durationMonths int, startDate *time.Time) (*models.Goal, error)
	GetGoal(userID string) (*models.Goal, error)
	UpdateGoal(userID string, targetAmount, targetProfit *float64, durationMonths *int) (*models.Goal, error)
	GetGoalProgress(userID string) (*GoalStatus, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
}
