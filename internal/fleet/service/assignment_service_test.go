package service

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/fleet/testutil"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

func setupAssignmentTest(t *testing.T) (*gorm.DB, *repository.Repositories, *AssignmentService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewAssignmentService(repos.Assignment, repos.Unit, repos.Vehicle,
		repos.SKU, repos.Inspection, repos.ActivityLog, db)
	return db, repos, svc
}

func TestAssignAndSlotConflict(t *testing.T) {
	db, _, svc := setupAssignmentTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 10, 4)
	testutil.SeedVehicle(t, db, "沪A12345", "steer-left", "steer-right")
	testutil.SeedUnit(t, db, "SN-100", "MIC-X-295-80", entity.UnitStatusInStock)
	testutil.SeedUnit(t, db, "SN-200", "MIC-X-295-80", entity.UnitStatusInStock)

	// SN-100 takes the steer-left slot
	a, err := svc.Assign(ctx, "unit-SN-100", "tester", &AssignRequest{
		VehicleID: "veh-沪A12345", Position: "steer-left", Odometer: 120000,
	})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if !a.Open() {
		t.Error("Expected assignment to be open")
	}

	var unit entity.Unit
	db.Where("id = ?", "unit-SN-100").First(&unit)
	if unit.Status != entity.UnitStatusAssigned {
		t.Errorf("Expected assigned, got %s", unit.Status)
	}
	if unit.Location != "" {
		t.Errorf("Expected empty location for assigned unit, got %q", unit.Location)
	}

	// SN-200 must be rejected on the same slot
	_, err = svc.Assign(ctx, "unit-SN-200", "tester", &AssignRequest{
		VehicleID: "veh-沪A12345", Position: "steer-left", Odometer: 120000,
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("Expected Conflict for occupied slot, got %v", err)
	}

	// SN-200 fits the other slot
	if _, err := svc.Assign(ctx, "unit-SN-200", "tester", &AssignRequest{
		VehicleID: "veh-沪A12345", Position: "steer-right", Odometer: 120000,
	}); err != nil {
		t.Fatalf("Assign to free slot failed: %v", err)
	}
}

func TestAssignRejectsUnavailableUnit(t *testing.T) {
	db, _, svc := setupAssignmentTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedVehicle(t, db, "沪B00001", "steer-left")
	testutil.SeedUnit(t, db, "SN-Q", "MIC-X-295-80", entity.UnitStatusQuarantined)
	testutil.SeedUnit(t, db, "SN-A", "MIC-X-295-80", entity.UnitStatusAssigned)

	_, err := svc.Assign(ctx, "unit-SN-Q", "tester", &AssignRequest{
		VehicleID: "veh-沪B00001", Position: "steer-left", Odometer: 0,
	})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition for quarantined unit, got %v", err)
	}

	_, err = svc.Assign(ctx, "unit-SN-A", "tester", &AssignRequest{
		VehicleID: "veh-沪B00001", Position: "steer-left", Odometer: 0,
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("Expected Conflict for already assigned unit, got %v", err)
	}
}

func TestAssignValidatesPosition(t *testing.T) {
	db, _, svc := setupAssignmentTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedVehicle(t, db, "沪C00001", "steer-left", "steer-right")
	testutil.SeedUnit(t, db, "SN-300", "MIC-X-295-80", entity.UnitStatusInStock)

	_, err := svc.Assign(ctx, "unit-SN-300", "tester", &AssignRequest{
		VehicleID: "veh-沪C00001", Position: "drive-9-left", Odometer: 0,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected Validation for unknown position, got %v", err)
	}
}

func TestUnassignAccumulatesDistance(t *testing.T) {
	db, _, svc := setupAssignmentTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedVehicle(t, db, "沪D00001", "steer-left")
	testutil.SeedUnit(t, db, "SN-400", "MIC-X-295-80", entity.UnitStatusInStock)

	a, err := svc.Assign(ctx, "unit-SN-400", "tester", &AssignRequest{
		VehicleID: "veh-沪D00001", Position: "steer-left", Odometer: 100000,
	})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	// Removal odometer below assignment odometer is rejected
	_, err = svc.Unassign(ctx, a.ID, "tester", &UnassignRequest{Odometer: 99000, Reason: entity.RemovalReasonRotation})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("Expected Validation for odometer regression, got %v", err)
	}

	closed, err := svc.Unassign(ctx, a.ID, "tester", &UnassignRequest{Odometer: 112500, Reason: entity.RemovalReasonRotation})
	if err != nil {
		t.Fatalf("Unassign failed: %v", err)
	}
	if closed.Open() {
		t.Error("Expected assignment to be closed")
	}
	if closed.Distance() != 12500 {
		t.Errorf("Expected distance 12500, got %.1f", closed.Distance())
	}

	var unit entity.Unit
	db.Where("id = ?", "unit-SN-400").First(&unit)
	if unit.Status != entity.UnitStatusInStock {
		t.Errorf("Expected in_stock, got %s", unit.Status)
	}
	if unit.CumulativeKm != 12500 {
		t.Errorf("Expected cumulative km 12500, got %.1f", unit.CumulativeKm)
	}
	if unit.Location != "WH-A" {
		t.Errorf("Expected preferred warehouse restored, got %q", unit.Location)
	}

	// Closing twice is an invalid transition
	_, err = svc.Unassign(ctx, a.ID, "tester", &UnassignRequest{Odometer: 113000, Reason: entity.RemovalReasonRotation})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition for closed assignment, got %v", err)
	}
}

func TestHistoryCursorPagination(t *testing.T) {
	db, _, svc := setupAssignmentTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedVehicle(t, db, "沪E00001", "steer-left")
	testutil.SeedUnit(t, db, "SN-500", "MIC-X-295-80", entity.UnitStatusInStock)

	// Build a history of 5 assignment cycles
	odometer := 10000.0
	for i := 0; i < 5; i++ {
		a, err := svc.Assign(ctx, "unit-SN-500", "tester", &AssignRequest{
			VehicleID: "veh-沪E00001", Position: "steer-left", Odometer: odometer,
		})
		if err != nil {
			t.Fatalf("Assign cycle %d failed: %v", i, err)
		}
		odometer += 1000
		if _, err := svc.Unassign(ctx, a.ID, "tester", &UnassignRequest{
			Odometer: odometer, Reason: entity.RemovalReasonRotation,
		}); err != nil {
			t.Fatalf("Unassign cycle %d failed: %v", i, err)
		}
	}

	first, err := svc.HistoryByUnit(ctx, "unit-SN-500", "", 3)
	if err != nil {
		t.Fatalf("HistoryByUnit failed: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(first))
	}

	rest, err := svc.HistoryByUnit(ctx, "unit-SN-500", first[2].ID, 10)
	if err != nil {
		t.Fatalf("HistoryByUnit with cursor failed: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("Expected 2 remaining rows, got %d", len(rest))
	}

	// Pages are in ascending time order without overlap
	if !rest[0].AssignedAt.After(first[2].AssignedAt) && rest[0].ID == first[2].ID {
		t.Error("Cursor page overlaps previous page")
	}

	// History survives for unknown unit -> NotFound
	if _, err := svc.HistoryByUnit(ctx, "unit-missing", "", 10); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected NotFound for unknown unit, got %v", err)
	}
}
