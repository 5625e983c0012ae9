package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/fleet/testutil"
)

func TestOverviewCountsSumToTotal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewInventoryService(repos.Unit, repos.Alert, zap.NewNop())
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedUnit(t, db, "SN-1", "MIC-X-295-80", entity.UnitStatusInStock)
	testutil.SeedUnit(t, db, "SN-2", "MIC-X-295-80", entity.UnitStatusInStock)
	testutil.SeedUnit(t, db, "SN-3", "MIC-X-295-80", entity.UnitStatusAssigned)
	testutil.SeedUnit(t, db, "SN-4", "MIC-X-295-80", entity.UnitStatusInInspection)
	testutil.SeedUnit(t, db, "SN-5", "MIC-X-295-80", entity.UnitStatusQuarantined)
	testutil.SeedUnit(t, db, "SN-6", "MIC-X-295-80", entity.UnitStatusScrapped)

	// A worn quarantined tyre and a damaged one still mounted both count
	// as needing replacement
	db.Model(&entity.Unit{}).Where("serial_no = ?", "SN-5").Update("condition", entity.UnitConditionWorn)
	db.Model(&entity.Unit{}).Where("serial_no = ?", "SN-3").Update("condition", entity.UnitConditionDamaged)

	overview, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}
	snap := overview.Snapshot
	if snap.Total != 6 {
		t.Errorf("Expected total 6, got %d", snap.Total)
	}
	sum := snap.InStock + snap.Assigned + snap.InInspection + snap.Quarantined + snap.Scrapped
	if sum != snap.Total {
		t.Errorf("Per-status counts sum to %d, total is %d", sum, snap.Total)
	}
	if snap.InStock != 2 || snap.Assigned != 1 {
		t.Errorf("Unexpected counts: in_stock=%d assigned=%d", snap.InStock, snap.Assigned)
	}
	if snap.NeedsReplacement != 2 {
		t.Errorf("Expected 2 units needing replacement, got %d", snap.NeedsReplacement)
	}
}

func TestStockBreakdownGroupsBySKUAndLocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewInventoryService(repos.Unit, repos.Alert, zap.NewNop())
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedSKU(t, db, "BRG-R-315-70", 0, 0)
	testutil.SeedUnit(t, db, "SN-A1", "MIC-X-295-80", entity.UnitStatusInStock)
	testutil.SeedUnit(t, db, "SN-A2", "MIC-X-295-80", entity.UnitStatusInStock)
	testutil.SeedUnit(t, db, "SN-B1", "BRG-R-315-70", entity.UnitStatusInStock)
	// Assigned units do not show up in the stock breakdown
	testutil.SeedUnit(t, db, "SN-A3", "MIC-X-295-80", entity.UnitStatusAssigned)

	rows, err := svc.StockBreakdown(ctx)
	if err != nil {
		t.Fatalf("StockBreakdown failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected 2 stock rows, got %d", len(rows))
	}
	// Ordered by SKU code
	if rows[0].SKUCode != "BRG-R-315-70" || rows[0].Quantity != 1 {
		t.Errorf("Unexpected first row: %+v", rows[0])
	}
	if rows[1].SKUCode != "MIC-X-295-80" || rows[1].Quantity != 2 {
		t.Errorf("Unexpected second row: %+v", rows[1])
	}
}

func TestExportStockXLSX(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewInventoryService(repos.Unit, repos.Alert, zap.NewNop())
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedUnit(t, db, "SN-X1", "MIC-X-295-80", entity.UnitStatusInStock)

	buf, fileName, err := svc.ExportStockXLSX(ctx)
	if err != nil {
		t.Fatalf("ExportStockXLSX failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Expected non-empty workbook")
	}
	if fileName == "" {
		t.Error("Expected a file name")
	}
}
