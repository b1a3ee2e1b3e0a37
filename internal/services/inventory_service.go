package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"stocktrail/internal/analytics"
	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/logger"
	"stocktrail/internal/mailer"
	"stocktrail/internal/models"
	"stocktrail/internal/pagination"
	"stocktrail/internal/uuid"
)

// inventoryService owns products and appends one history record per stock
// mutation, in the same database transaction as the mutation.
type inventoryService struct {
	db                *gorm.DB
	mail              *mailer.Notifier
	lowStockThreshold int
	now               func() time.Time
}

// NewInventoryService creates a new InventoryServicer. A sale that leaves
// fewer than lowStockThreshold units e-mails the owner; 0 disables this.
func NewInventoryService(db *gorm.DB, mail *mailer.Notifier, lowStockThreshold int) InventoryServicer {
	return &inventoryService{db: db, mail: mail, lowStockThreshold: lowStockThreshold, now: time.Now}
}

// CreateProduct stores a product and its new_item record.
func (s *inventoryService) CreateProduct(userID string, in ProductInput) (*models.Product, error) {
	products, err := s.BulkCreateProducts(userID, []ProductInput{in})
	if err != nil {
		return nil, err
	}
	return &products[0], nil
}

// BulkCreateProducts stores several products atomically. Either every
// product and its new_item record is written or none are.
func (s *inventoryService) BulkCreateProducts(userID string, in []ProductInput) ([]models.Product, error) {
	if len(in) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "at least one product is required")
	}

	seen := make(map[string]bool, len(in))
	products := make([]models.Product, len(in))
	for i, p := range in {
		if err := validateProductInput(p); err != nil {
			return nil, err
		}
		sku := strings.TrimSpace(p.SKU)
		if seen[sku] {
			return nil, apperrors.WithMessage(apperrors.ErrDuplicateProduct, "duplicate SKU in request: "+sku)
		}
		seen[sku] = true

		if err := s.checkCategory(userID, p.CategoryID); err != nil {
			return nil, err
		}
		if err := s.ensureUniqueSKU(s.db, userID, sku, ""); err != nil {
			return nil, err
		}

		products[i] = models.Product{
			UserID:       userID,
			Name:         strings.TrimSpace(p.Name),
			SKU:          sku,
			Description:  p.Description,
			SellingPrice: p.SellingPrice,
			BuyingPrice:  p.BuyingPrice,
			Quantity:     p.Quantity,
			CategoryID:   normalizeID(p.CategoryID),
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range products {
			if err := tx.Create(&products[i]).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := s.appendRecord(tx, newItemRecord(&products[i], s.now())); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return products, nil
}

// GetUserProducts retrieves a paginated, optionally filtered product list.
func (s *inventoryService) GetUserProducts(userID string, page pagination.PageRequest, filter ProductFilter) (*pagination.PageResponse[models.Product], error) {
	base := s.db.Model(&models.Product{}).Where("user_id = ?", userID)
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		base = base.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	if filter.CategoryID != nil && *filter.CategoryID != "" {
		base = base.Where("category_id = ?", *filter.CategoryID)
	}

	result, err := pagination.Find[models.Product](base, page, func(db *gorm.DB) *gorm.DB {
		return db.Preload("Category").Order("name ASC, sku ASC")
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &result, nil
}

// GetProductByID retrieves a product by ID for a specific user
func (s *inventoryService) GetProductByID(userID, productID string) (*models.Product, error) {
	return s.findProduct(s.db.Preload("Category"), userID, productID)
}

func (s *inventoryService) findProduct(db *gorm.DB, userID, productID string) (*models.Product, error) {
	var product models.Product
	if err := db.Where("id = ? AND user_id = ?", productID, userID).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrProductNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &product, nil
}

// UpdateProduct changes product details and appends an edit_item record.
// Historical records keep their old name and SKU until RenameHistory.
func (s *inventoryService) UpdateProduct(userID, productID string, upd ProductUpdate) (*models.Product, error) {
	product, err := s.findProduct(s.db, userID, productID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "product name cannot be empty")
		}
		updates["name"] = name
	}
	if upd.SKU != nil {
		sku := strings.TrimSpace(*upd.SKU)
		if sku == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "SKU cannot be empty")
		}
		if sku != product.SKU {
			if err := s.ensureUniqueSKU(s.db, userID, sku, productID); err != nil {
				return nil, err
			}
		}
		updates["sku"] = sku
	}
	if upd.Description != nil {
		updates["description"] = *upd.Description
	}
	if upd.SellingPrice != nil {
		if *upd.SellingPrice < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "selling price cannot be negative")
		}
		updates["selling_price"] = *upd.SellingPrice
	}
	if upd.BuyingPrice != nil {
		if *upd.BuyingPrice < 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "buying price cannot be negative")
		}
		updates["buying_price"] = *upd.BuyingPrice
	}
	if upd.CategoryID != nil {
		if *upd.CategoryID == "" {
			updates["category_id"] = nil
		} else {
			if err := s.checkCategory(userID, upd.CategoryID); err != nil {
				return nil, err
			}
			updates["category_id"] = *upd.CategoryID
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(product).Updates(updates).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
		}
		updated, err := s.findProduct(tx, userID, productID)
		if err != nil {
			return err
		}
		product = updated

		sell, buy := product.SellingPrice, product.BuyingPrice
		return s.appendRecord(tx, &models.TransactionRecord{
			ProductID:                 product.ID,
			ProductName:               product.Name,
			SKU:                       product.SKU,
			ChangeQuantity:            0,
			CurrentQuantity:           product.Quantity,
			Kind:                      models.RecordKindEditItem,
			SellingPriceAtTransaction: &sell,
			BuyingPriceAtTransaction:  &buy,
			UserID:                    userID,
			Timestamp:                 s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	return s.GetProductByID(userID, productID)
}

// AdjustQuantity adds or sells stock. Adding at a unit cost different from
// the product's creates a sibling product instead of averaging costs.
func (s *inventoryService) AdjustQuantity(userID, productID string, adj QuantityAdjustment) (*AdjustResult, error) {
	if adj.Quantity <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be positive")
	}
	if adj.BuyingPrice != nil && *adj.BuyingPrice < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "buying price cannot be negative")
	}
	if adj.SellingPrice != nil && *adj.SellingPrice < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "selling price cannot be negative")
	}

	product, err := s.findProduct(s.db, userID, productID)
	if err != nil {
		return nil, err
	}

	switch adj.Type {
	case AdjustAdd:
		if adj.BuyingPrice != nil && !samePrice(*adj.BuyingPrice, product.BuyingPrice) {
			return s.forkProduct(product, adj)
		}
		return s.addStock(product, adj.Quantity)
	case AdjustReduce:
		result, err := s.reduceStock(product, adj)
		if err != nil {
			return nil, err
		}
		s.checkLowStock(result.Product)
		return result, nil
	default:
		return nil, apperrors.ErrInvalidAdjustType
	}
}

func (s *inventoryService) addStock(product *models.Product, quantity int) (*AdjustResult, error) {
	result := &AdjustResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).
			Where("id = ? AND user_id = ?", product.ID, product.UserID).
			Update("quantity", gorm.Expr("quantity + ?", quantity)).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		updated, err := s.findProduct(tx, product.UserID, product.ID)
		if err != nil {
			return err
		}

		buy := updated.BuyingPrice
		record := &models.TransactionRecord{
			ProductID:                updated.ID,
			ProductName:              updated.Name,
			SKU:                      updated.SKU,
			ChangeQuantity:           quantity,
			CurrentQuantity:          updated.Quantity,
			Kind:                     models.RecordKindAdd,
			BuyingPriceAtTransaction: &buy,
			UserID:                   updated.UserID,
			Timestamp:                s.now(),
		}
		if err := s.appendRecord(tx, record); err != nil {
			return err
		}
		result.Product, result.Record = updated, record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *inventoryService) reduceStock(product *models.Product, adj QuantityAdjustment) (*AdjustResult, error) {
	result := &AdjustResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ? AND user_id = ? AND quantity >= ?", product.ID, product.UserID, adj.Quantity).
			Update("quantity", gorm.Expr("quantity - ?", adj.Quantity))
		if res.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrInsufficientStock
		}
		updated, err := s.findProduct(tx, product.UserID, product.ID)
		if err != nil {
			return err
		}

		sell := updated.SellingPrice
		if adj.SellingPrice != nil {
			sell = *adj.SellingPrice
		}
		buy := updated.BuyingPrice
		record := &models.TransactionRecord{
			ProductID:                 updated.ID,
			ProductName:               updated.Name,
			SKU:                       updated.SKU,
			ChangeQuantity:            -adj.Quantity,
			CurrentQuantity:           updated.Quantity,
			Kind:                      models.RecordKindReduce,
			SellingPriceAtTransaction: &sell,
			BuyingPriceAtTransaction:  &buy,
			UserID:                    updated.UserID,
			Timestamp:                 s.now(),
		}
		if err := s.appendRecord(tx, record); err != nil {
			return err
		}
		result.Product, result.Record = updated, record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// forkProduct creates a sibling of product holding the incoming stock at its
// own cost. The original product is not touched.
func (s *inventoryService) forkProduct(product *models.Product, adj QuantityAdjustment) (*AdjustResult, error) {
	result := &AdjustResult{Forked: true}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		base := product.BaseSKU()
		sku, err := s.nextForkSKU(tx, product.UserID, base)
		if err != nil {
			return err
		}

		fork := &models.Product{
			UserID:       product.UserID,
			Name:         product.Name,
			SKU:          sku,
			Description:  product.Description,
			SellingPrice: product.SellingPrice,
			BuyingPrice:  *adj.BuyingPrice,
			Quantity:     adj.Quantity,
			CategoryID:   product.CategoryID,
			ForkBaseSKU:  base,
		}
		if err := tx.Create(fork).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		record := newItemRecord(fork, s.now())
		if err := s.appendRecord(tx, record); err != nil {
			return err
		}
		result.Product, result.Record = fork, record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// nextForkSKU returns base(n) for the smallest n >= 2 not used by the owner.
func (s *inventoryService) nextForkSKU(tx *gorm.DB, userID, base string) (string, error) {
	var taken []string
	if err := tx.Model(&models.Product{}).
		Where("user_id = ? AND sku LIKE ?", userID, base+"(%").
		Pluck("sku", &taken).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	used := make(map[string]bool, len(taken))
	for _, t := range taken {
		used[t] = true
	}

	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s(%d)", base, n)
		if !used[candidate] {
			return candidate, nil
		}
	}
}

// DeleteProduct removes a product and appends its delete_item record. The
// product's history is kept.
func (s *inventoryService) DeleteProduct(userID, productID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		product, err := s.findProduct(tx, userID, productID)
		if err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(product).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		buy := product.BuyingPrice
		return s.appendRecord(tx, &models.TransactionRecord{
			ProductID:                product.ID,
			ProductName:              product.Name,
			SKU:                      product.SKU,
			ChangeQuantity:           -product.Quantity,
			CurrentQuantity:          0,
			Kind:                     models.RecordKindDeleteItem,
			BuyingPriceAtTransaction: &buy,
			UserID:                   userID,
			Timestamp:                s.now(),
		})
	})
}

// RenameHistory rewrites the name and SKU snapshot on every record of a
// product. Nil values default to the live product's current values.
func (s *inventoryService) RenameHistory(userID, productID string, name, sku *string) (int64, error) {
	if name == nil || sku == nil {
		product, err := s.findProduct(s.db, userID, productID)
		if err != nil {
			return 0, err
		}
		if name == nil {
			name = &product.Name
		}
		if sku == nil {
			sku = &product.SKU
		}
	}
	if strings.TrimSpace(*name) == "" || strings.TrimSpace(*sku) == "" {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "name and SKU cannot be empty")
	}

	res := s.db.Model(&models.TransactionRecord{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Updates(map[string]interface{}{
			"product_name": strings.TrimSpace(*name),
			"sku":          strings.TrimSpace(*sku),
		})
	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected, nil
}

// StockAt reconstructs a product's quantity at an instant from its history.
func (s *inventoryService) StockAt(userID, productID string, at time.Time) (int, error) {
	var records []models.TransactionRecord
	if err := s.db.Where("user_id = ? AND product_id = ?", userID, productID).
		Order("timestamp ASC").Find(&records).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(records) == 0 {
		return 0, apperrors.ErrProductNotFound
	}
	return analytics.QuantityAt(records, at), nil
}

func (s *inventoryService) appendRecord(tx *gorm.DB, record *models.TransactionRecord) error {
	if record.CurrentQuantity < 0 {
		return apperrors.ErrInsufficientStock
	}
	if err := tx.Create(record).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrRecordWriteFailure, err)
	}
	return nil
}

func (s *inventoryService) checkCategory(userID string, categoryID *string) error {
	if categoryID == nil || *categoryID == "" {
		return nil
	}
	if !uuid.IsValid(*categoryID) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "category_id must be a UUID")
	}
	var count int64
	if err := s.db.Model(&models.Category{}).
		Where("id = ? AND user_id = ?", *categoryID, userID).
		Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrCategoryNotFound
	}
	return nil
}

func (s *inventoryService) ensureUniqueSKU(db *gorm.DB, userID, sku, exceptID string) error {
	q := db.Model(&models.Product{}).Where("user_id = ? AND sku = ?", userID, sku)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateProduct
	}
	return nil
}

func (s *inventoryService) checkLowStock(product *models.Product) {
	if s.mail == nil || s.lowStockThreshold <= 0 || product.Quantity >= s.lowStockThreshold {
		return
	}
	var user models.User
	if err := s.db.Select("id", "email").Where("id = ?", product.UserID).First(&user).Error; err != nil {
		logger.Get().Errorw("failed to load owner for low stock notice", "error", err, "product_id", product.ID)
		return
	}
	if err := s.mail.LowStock(user.Email, product.Name, product.SKU, product.Quantity); err != nil {
		logger.Get().Errorw("failed to send low stock notice", "error", err, "product_id", product.ID)
	}
}

func newItemRecord(product *models.Product, at time.Time) *models.TransactionRecord {
	sell, buy := product.SellingPrice, product.BuyingPrice
	return &models.TransactionRecord{
		ProductID:                 product.ID,
		ProductName:               product.Name,
		SKU:                       product.SKU,
		ChangeQuantity:            product.Quantity,
		CurrentQuantity:           product.Quantity,
		Kind:                      models.RecordKindNewItem,
		SellingPriceAtTransaction: &sell,
		BuyingPriceAtTransaction:  &buy,
		UserID:                    product.UserID,
		Timestamp:                 at,
	}
}

func validateProductInput(p ProductInput) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "product name is required")
	case strings.TrimSpace(p.SKU) == "":
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "SKU is required")
	case p.SellingPrice < 0 || p.BuyingPrice < 0:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "prices cannot be negative")
	case p.Quantity < 0:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity cannot be negative")
	}
	return nil
}

func normalizeID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

// samePrice compares two unit prices to the cent.
func samePrice(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(2).Equal(decimal.NewFromFloat(b).Round(2))
}
