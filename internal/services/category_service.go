package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "stocktrail/internal/errors"
	"stocktrail/internal/models"
	"stocktrail/internal/pagination"
)

// DefaultCategories are created for every new user.
var DefaultCategories = []models.Category{
	{Name: "Electronics", Description: "Electronic devices and accessories", Color: "#1976D2", Icon: "ElectronicsIcon"},
	{Name: "Clothing", Description: "Apparel and fashion items", Color: "#388E3C", Icon: "CheckroomIcon"},
	{Name: "Home & Garden", Description: "Home improvement and gardening items", Color: "#F57C00", Icon: "HomeIcon"},
	{Name: "Sports & Outdoors", Description: "Sports equipment and outdoor gear", Color: "#D32F2F", Icon: "SportsIcon"},
	{Name: "Books & Media", Description: "Books, magazines, and media items", Color: "#7B1FA2", Icon: "MenuBookIcon"},
	{Name: "Other", Description: "Miscellaneous items", Color: "#616161", Icon: "CategoryIcon"},
}

const defaultCategoryIcon = "CategoryIcon"

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// seedDefaultCategories creates the default categories for userID inside tx.
func seedDefaultCategories(tx *gorm.DB, userID string) error {
	categories := make([]models.Category, len(DefaultCategories))
	for i, c := range DefaultCategories {
		c.UserID = userID
		categories[i] = c
	}
	return tx.Create(&categories).Error
}

// CreateCategory creates a new category
func (s *categoryService) CreateCategory(userID, name, description, icon, color string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}
	if icon == "" {
		icon = defaultCategoryIcon
	}

	if err := s.ensureUniqueName(userID, name, ""); err != nil {
		return nil, err
	}

	category := &models.Category{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Icon:        icon,
		Color:       color,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return category, nil
}

// GetUserCategories retrieves a paginated list of categories for a user,
// each with the number of products filed under it.
func (s *categoryService) GetUserCategories(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Category], error) {
	base := s.db.Model(&models.Category{}).Where("user_id = ?", userID)
	result, err := pagination.Find[models.Category](base, page, func(db *gorm.DB) *gorm.DB {
		return db.Order("name ASC")
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := s.attachProductCounts(userID, result.Data); err != nil {
		return nil, err
	}
	return &result, nil
}

type categoryCount struct {
	CategoryID string
	Count      int64
}

func (s *categoryService) attachProductCounts(userID string, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	ids := make([]string, len(categories))
	for i := range categories {
		ids[i] = categories[i].ID
	}

	var counts []categoryCount
	if err := s.db.Model(&models.Product{}).
		Select("category_id, COUNT(*) AS count").
		Where("user_id = ? AND category_id IN ?", userID, ids).
		Group("category_id").
		Scan(&counts).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	byID := make(map[string]int64, len(counts))
	for _, c := range counts {
		byID[c.CategoryID] = c.Count
	}
	for i := range categories {
		categories[i].ProductCount = byID[categories[i].ID]
	}
	return nil
}

// GetCategoryByID retrieves a category by ID for a specific user
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Where("id = ? AND user_id = ?", categoryID, userID).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	categories := []models.Category{category}
	if err := s.attachProductCounts(userID, categories); err != nil {
		return nil, err
	}
	return &categories[0], nil
}

// UpdateCategory updates an existing category. Products reference categories
// by ID, so a rename needs no propagation.
func (s *categoryService) UpdateCategory(userID, categoryID string, name, description, icon, color *string) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name cannot be empty")
		}
		if trimmed != category.Name {
			if err := s.ensureUniqueName(userID, trimmed, categoryID); err != nil {
				return nil, err
			}
		}
		updates["name"] = trimmed
	}
	if description != nil {
		updates["description"] = strings.TrimSpace(*description)
	}
	if icon != nil {
		updates["icon"] = *icon
	}
	if color != nil {
		updates["color"] = *color
	}

	if len(updates) > 0 {
		if err := s.db.Model(category).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetCategoryByID(userID, categoryID)
}

// DeleteCategory removes a category and detaches its products.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	if _, err := s.GetCategoryByID(userID, categoryID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).
			Where("user_id = ? AND category_id = ?", userID, categoryID).
			Update("category_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Where("id = ? AND user_id = ?", categoryID, userID).
			Delete(&models.Category{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

func (s *categoryService) ensureUniqueName(userID, name, exceptID string) error {
	q := s.db.Model(&models.Category{}).Where("user_id = ? AND LOWER(name) = LOWER(?)", userID, name)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrDuplicateCategory
	}
	return nil
}
