package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/fleet/testutil"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

func setupCatalogTest(t *testing.T) (*gorm.DB, *CatalogService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	return db, NewCatalogService(repos.SKU)
}

func TestCreateSKUDuplicateCode(t *testing.T) {
	_, svc := setupCatalogTest(t)
	ctx := context.Background()

	req := &CreateSKURequest{
		Code:     "MIC-X-295-80",
		Brand:    "Michelin",
		Model:    "X Multi",
		Size:     "295/80R22.5",
		Category: entity.SKUCategoryDrive,
		UnitCost: decimal.NewFromInt(2450),
	}
	if _, err := svc.CreateSKU(ctx, "user-1", req); err != nil {
		t.Fatalf("CreateSKU failed: %v", err)
	}
	if _, err := svc.CreateSKU(ctx, "user-1", req); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("Expected Conflict for duplicate code, got %v", err)
	}
}

func TestCreateSKUValidation(t *testing.T) {
	_, svc := setupCatalogTest(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *CreateSKURequest
	}{
		{"invalid category", &CreateSKURequest{Code: "S1", Brand: "b", Model: "m", Size: "s", Category: "wheel"}},
		{"negative reorder point", &CreateSKURequest{Code: "S2", Brand: "b", Model: "m", Size: "s", Category: entity.SKUCategorySteer, ReorderPoint: -1}},
		{"negative unit cost", &CreateSKURequest{Code: "S3", Brand: "b", Model: "m", Size: "s", Category: entity.SKUCategorySteer, UnitCost: decimal.NewFromInt(-1)}},
	}
	for _, tc := range cases {
		if _, err := svc.CreateSKU(ctx, "user-1", tc.req); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("%s: expected Validation, got %v", tc.name, err)
		}
	}
}

func TestCreateSKUDefaultsMinTreadDepth(t *testing.T) {
	_, svc := setupCatalogTest(t)
	ctx := context.Background()

	sku, err := svc.CreateSKU(ctx, "user-1", &CreateSKURequest{
		Code: "MIC-Z-385-65", Brand: "Michelin", Model: "X Works", Size: "385/65R22.5",
		Category: entity.SKUCategoryTrailer,
	})
	if err != nil {
		t.Fatalf("CreateSKU failed: %v", err)
	}
	if sku.MinTreadDepth != 3 {
		t.Errorf("Expected default min tread depth 3, got %v", sku.MinTreadDepth)
	}
}

func TestDeleteSKUWithUnits(t *testing.T) {
	db, svc := setupCatalogTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedUnit(t, db, "SN-1", "MIC-X-295-80", entity.UnitStatusInStock)

	if err := svc.DeleteSKU(ctx, "MIC-X-295-80"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("Expected Conflict when units reference the SKU, got %v", err)
	}

	// Once the unit is gone the SKU can be removed
	db.Exec("DELETE FROM fleet_units WHERE serial_no = ?", "SN-1")
	if err := svc.DeleteSKU(ctx, "MIC-X-295-80"); err != nil {
		t.Errorf("DeleteSKU after unit removal failed: %v", err)
	}
	if _, err := svc.GetSKU(ctx, "MIC-X-295-80"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected NotFound after delete, got %v", err)
	}
}
