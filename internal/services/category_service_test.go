package services

import (
	"testing"

	"stocktrail/internal/models"
	"stocktrail/internal/pagination"
	"stocktrail/internal/testutil"
)

func TestCreateCategory(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		cat, err := svc.CreateCategory(user.ID, "Toys", "Games and toys", "ToyIcon", "#FF0000")
		testutil.AssertNoError(t, err)

		if cat.ID == "" {
			t.Fatal("expected category ID to be set")
		}
		if cat.Name != "Toys" {
			t.Errorf("expected name Toys, got %s", cat.Name)
		}
		if cat.Description != "Games and toys" {
			t.Errorf("expected description 'Games and toys', got %s", cat.Description)
		}
		if cat.Color != "#FF0000" {
			t.Errorf("expected color #FF0000, got %s", cat.Color)
		}
	})

	t.Run("default_icon", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		cat, err := svc.CreateCategory(user.ID, "Toys", "", "", "")
		testutil.AssertNoError(t, err)
		if cat.Icon != "CategoryIcon" {
			t.Errorf("expected default icon, got %s", cat.Icon)
		}
	})

	t.Run("duplicate_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, "Toys", "", "", "")
		testutil.AssertNoError(t, err)

		_, err = svc.CreateCategory(user.ID, "toys", "", "", "")
		testutil.AssertAppError(t, err, "DUPLICATE_CATEGORY")
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user.ID, "   ", "", "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("duplicate_name_different_users_allowed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)

		_, err := svc.CreateCategory(user1.ID, "Toys", "", "", "")
		testutil.AssertNoError(t, err)

		// Same name for different user should succeed
		_, err = svc.CreateCategory(user2.ID, "Toys", "", "", "")
		testutil.AssertNoError(t, err)
	})
}

func TestGetUserCategories(t *testing.T) {
	t.Run("returns_user_categories_only", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)

		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)

		testutil.CreateTestCategory(t, db, user1.ID)
		testutil.CreateTestCategory(t, db, user1.ID)
		testutil.CreateTestCategory(t, db, user2.ID)

		page := pagination.PageRequest{Page: 1, PageSize: 20}
		result, err := svc.GetUserCategories(user1.ID, page)
		testutil.AssertNoError(t, err)

		if result.TotalItems != 2 {
			t.Errorf("expected 2 categories for user1, got %d", result.TotalItems)
		}
	})

	t.Run("product_counts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		full := testutil.CreateTestCategory(t, db, user.ID)
		empty := testutil.CreateTestCategory(t, db, user.ID)
		for i := 0; i < 3; i++ {
			p := testutil.CreateTestProduct(t, db, user.ID, 1, 1, 1)
			db.Model(p).Update("category_id", full.ID)
		}

		result, err := svc.GetUserCategories(user.ID, pagination.PageRequest{})
		testutil.AssertNoError(t, err)

		counts := map[string]int64{}
		for _, c := range result.Data {
			counts[c.ID] = c.ProductCount
		}
		if counts[full.ID] != 3 {
			t.Errorf("expected 3 products in %s, got %d", full.Name, counts[full.ID])
		}
		if counts[empty.ID] != 0 {
			t.Errorf("expected 0 products in %s, got %d", empty.Name, counts[empty.ID])
		}
	})

	t.Run("pagination", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		for i := 0; i < 5; i++ {
			testutil.CreateTestCategory(t, db, user.ID)
		}

		result, err := svc.GetUserCategories(user.ID, pagination.PageRequest{Page: 2, PageSize: 2})
		testutil.AssertNoError(t, err)

		if len(result.Data) != 2 {
			t.Errorf("expected 2 items on page 2, got %d", len(result.Data))
		}
		if result.TotalPages != 3 {
			t.Errorf("expected 3 total pages, got %d", result.TotalPages)
		}
	})
}

func TestGetCategoryByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		created := testutil.CreateTestCategory(t, db, user.ID)

		cat, err := svc.GetCategoryByID(user.ID, created.ID)
		testutil.AssertNoError(t, err)
		if cat.Name != created.Name {
			t.Errorf("expected name %s, got %s", created.Name, cat.Name)
		}
	})

	t.Run("wrong_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user1 := testutil.CreateTestUser(t, db)
		user2 := testutil.CreateTestUser(t, db)
		created := testutil.CreateTestCategory(t, db, user1.ID)

		_, err := svc.GetCategoryByID(user2.ID, created.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})
}

func TestUpdateCategory(t *testing.T) {
	t.Run("rename_keeps_product_links", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		created := testutil.CreateTestCategory(t, db, user.ID)
		p := testutil.CreateTestProduct(t, db, user.ID, 1, 1, 1)
		db.Model(p).Update("category_id", created.ID)

		newName := "Renamed"
		cat, err := svc.UpdateCategory(user.ID, created.ID, &newName, nil, nil, nil)
		testutil.AssertNoError(t, err)

		if cat.Name != "Renamed" {
			t.Errorf("expected name Renamed, got %s", cat.Name)
		}
		if cat.ProductCount != 1 {
			t.Errorf("expected product still filed under the category, got %d", cat.ProductCount)
		}
	})

	t.Run("duplicate_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		a := testutil.CreateTestCategory(t, db, user.ID)
		b := testutil.CreateTestCategory(t, db, user.ID)

		_, err := svc.UpdateCategory(user.ID, b.ID, &a.Name, nil, nil, nil)
		testutil.AssertAppError(t, err, "DUPLICATE_CATEGORY")
	})

	t.Run("same_name_is_noop", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		a := testutil.CreateTestCategory(t, db, user.ID)

		color := "#000000"
		cat, err := svc.UpdateCategory(user.ID, a.ID, &a.Name, nil, nil, &color)
		testutil.AssertNoError(t, err)
		if cat.Color != "#000000" {
			t.Errorf("expected color #000000, got %s", cat.Color)
		}
	})
}

func TestDeleteCategory(t *testing.T) {
	t.Run("detaches_products", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)
		created := testutil.CreateTestCategory(t, db, user.ID)
		p := testutil.CreateTestProduct(t, db, user.ID, 1, 1, 1)
		db.Model(p).Update("category_id", created.ID)

		err := svc.DeleteCategory(user.ID, created.ID)
		testutil.AssertNoError(t, err)

		_, err = svc.GetCategoryByID(user.ID, created.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

		var product models.Product
		db.First(&product, "id = ?", p.ID)
		if product.CategoryID != nil {
			t.Errorf("expected product detached, got category %s", *product.CategoryID)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		err := svc.DeleteCategory(user.ID, "missing")
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("name_reusable_after_delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewCategoryService(db)
		user := testutil.CreateTestUser(t, db)

		cat, err := svc.CreateCategory(user.ID, "Toys", "", "", "")
		testutil.AssertNoError(t, err)
		testutil.AssertNoError(t, svc.DeleteCategory(user.ID, cat.ID))

		_, err = svc.CreateCategory(user.ID, "Toys", "", "", "")
		testutil.AssertNoError(t, err)
	})
}
