package pagination

import (
	"fmt"
	"testing"

	"gorm.io/gorm"

	"stocktrail/internal/models"
	"stocktrail/internal/testutil"
)

func TestDefaults(t *testing.T) {
	tests := []struct {
		name     string
		in       PageRequest
		wantPage int
		wantSize int
	}{
		{"empty", PageRequest{}, 1, 20},
		{"kept", PageRequest{Page: 3, PageSize: 50}, 3, 50},
		{"negative", PageRequest{Page: -1, PageSize: -5}, 1, 20},
		{"clamped", PageRequest{Page: 2, PageSize: 1000}, 2, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.in
			req.Defaults()
			if req.Page != tt.wantPage || req.PageSize != tt.wantSize {
				t.Errorf("expected %d/%d, got %d/%d", tt.wantPage, tt.wantSize, req.Page, req.PageSize)
			}
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := NewPageResponse[int](nil, 1, 20, 41)
	if resp.Data == nil || len(resp.Data) != 0 {
		t.Errorf("expected empty non-nil data")
	}
	if resp.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", resp.TotalPages)
	}
}

func TestFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	user := testutil.CreateTestUser(t, db)
	for i := 0; i < 5; i++ {
		if err := db.Create(&models.Category{UserID: user.ID, Name: fmt.Sprintf("cat-%d", i)}).Error; err != nil {
			t.Fatalf("failed to create category: %v", err)
		}
	}

	base := db.Model(&models.Category{}).Where("user_id = ?", user.ID)
	byNameDesc := func(q *gorm.DB) *gorm.DB { return q.Order("name DESC") }

	page, err := Find[models.Category](base, PageRequest{Page: 2, PageSize: 2}, byNameDesc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalItems != 5 || page.TotalPages != 3 {
		t.Errorf("expected 5 items over 3 pages, got %d over %d", page.TotalItems, page.TotalPages)
	}
	if len(page.Data) != 2 || page.Data[0].Name != "cat-2" || page.Data[1].Name != "cat-1" {
		t.Errorf("unexpected page contents %+v", page.Data)
	}

	// The base query is reusable after Find.
	again, err := Find[models.Category](base, PageRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.TotalItems != 5 || len(again.Data) != 5 {
		t.Errorf("expected all 5 categories, got %d/%d", again.TotalItems, len(again.Data))
	}
}
