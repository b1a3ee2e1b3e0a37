package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"stocktrail/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a verified user with a hashed password and unique
// username and email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	n := nextID()
	return CreateTestUserWithEmail(t, db, fmt.Sprintf("user%d@test.com", n))
}

// CreateTestUserWithEmail creates a verified user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:   fmt.Sprintf("user%d", nextID()),
		Email:      email,
		Password:   string(hash),
		IsVerified: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category with a unique name.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string) *models.Category {
	t.Helper()

	category := &models.Category{
		UserID: userID,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Icon:   "CategoryIcon",
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestProduct creates a product with the given stock and prices and
// no history.
func CreateTestProduct(t *testing.T, db *gorm.DB, userID string, quantity int, sellingPrice, buyingPrice float64) *models.Product {
	t.Helper()

	n := nextID()
	product := &models.Product{
		UserID:       userID,
		Name:         fmt.Sprintf("Product %d", n),
		SKU:          fmt.Sprintf("SKU-%d", n),
		SellingPrice: sellingPrice,
		BuyingPrice:  buyingPrice,
		Quantity:     quantity,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("failed to create test product: %v", err)
	}
	return product
}

// CreateTestRecord appends a history record for product at the given time.
func CreateTestRecord(t *testing.T, db *gorm.DB, product *models.Product, kind models.RecordKind, change int, sellingPrice, buyingPrice *float64, at time.Time) *models.TransactionRecord {
	t.Helper()

	record := &models.TransactionRecord{
		ProductID:                 product.ID,
		ProductName:               product.Name,
		SKU:                       product.SKU,
		ChangeQuantity:            change,
		CurrentQuantity:           product.Quantity,
		Kind:                      kind,
		SellingPriceAtTransaction: sellingPrice,
		BuyingPriceAtTransaction:  buyingPrice,
		UserID:                    product.UserID,
		Timestamp:                 at,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create test record: %v", err)
	}
	return record
}

// CreateTestGoal creates a goal starting at start.
func CreateTestGoal(t *testing.T, db *gorm.DB, userID string, targetAmount, targetProfit float64, months int, start time.Time) *models.Goal {
	t.Helper()

	goal := &models.Goal{
		UserID:         userID,
		TargetAmount:   targetAmount,
		TargetProfit:   targetProfit,
		DurationMonths: months,
		StartDate:      start,
		Deadline:       models.DeadlineFor(start, months),
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// Price returns a pointer to v for price snapshot fields.
func Price(v float64) *float64 {
	return &v
}
