package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/fleet/testutil"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

func setupInspectionTest(t *testing.T) (*gorm.DB, *InspectionService, *AssignmentService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	assignmentSvc := NewAssignmentService(repos.Assignment, repos.Unit, repos.Vehicle,
		repos.SKU, repos.Inspection, repos.ActivityLog, db)
	inspectionSvc := NewInspectionService(repos.Inspection, repos.Unit, repos.Vehicle,
		repos.SKU, repos.Assignment, repos.ActivityLog, db)
	alertSvc := NewAlertService(repos.Alert, repos.SKU, repos.Unit, zap.NewNop())

	inspectionSvc.SetAssignmentService(assignmentSvc)
	inspectionSvc.SetAlertService(alertSvc)
	assignmentSvc.SetAlertService(alertSvc)

	return db, inspectionSvc, assignmentSvc
}

func depth(v float64) *float64 {
	return &v
}

func TestFailedInspectionBelowMinQuarantinesAssignedUnit(t *testing.T) {
	db, inspectionSvc, assignmentSvc := setupInspectionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0) // min tread depth 3mm
	testutil.SeedVehicle(t, db, "沪F00001", "drive-1-left")
	testutil.SeedUnit(t, db, "SN-600", "MIC-X-295-80", entity.UnitStatusInStock)

	a, err := assignmentSvc.Assign(ctx, "unit-SN-600", "tester", &AssignRequest{
		VehicleID: "veh-沪F00001", Position: "drive-1-left", Odometer: 50000,
	})
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	odo := 58000.0
	inspection, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
		UnitID: "unit-SN-600", Outcome: entity.InspectionOutcomeFailed,
		TreadDepth: depth(2.1), OdometerReading: &odo,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if inspection.Code == "" {
		t.Error("Expected generated inspection code")
	}

	var unit entity.Unit
	db.Where("id = ?", "unit-SN-600").First(&unit)
	if unit.Status != entity.UnitStatusQuarantined {
		t.Errorf("Expected quarantined, got %s", unit.Status)
	}
	if unit.Condition != entity.UnitConditionWorn {
		t.Errorf("Expected worn, got %s", unit.Condition)
	}
	if unit.CumulativeKm != 8000 {
		t.Errorf("Expected cumulative km 8000, got %.1f", unit.CumulativeKm)
	}

	// The open assignment was force-closed with the inspection odometer
	var closed entity.Assignment
	db.Where("id = ?", a.ID).First(&closed)
	if closed.Open() {
		t.Error("Expected assignment force-closed")
	}
	if closed.RemovalReason != entity.RemovalReasonInspectionFailed {
		t.Errorf("Expected removal reason inspection_failed, got %s", closed.RemovalReason)
	}
	if closed.RemovedOdometer == nil || *closed.RemovedOdometer != 58000 {
		t.Errorf("Expected removal odometer 58000, got %v", closed.RemovedOdometer)
	}
}

func TestForcedRemovalFallsBackToVehicleOdometer(t *testing.T) {
	db, inspectionSvc, assignmentSvc := setupInspectionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedVehicle(t, db, "沪G00001", "drive-1-left")
	testutil.SeedUnit(t, db, "SN-700", "MIC-X-295-80", entity.UnitStatusInStock)

	if _, err := assignmentSvc.Assign(ctx, "unit-SN-700", "tester", &AssignRequest{
		VehicleID: "veh-沪G00001", Position: "drive-1-left", Odometer: 30000,
	}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	db.Model(&entity.Vehicle{}).Where("id = ?", "veh-沪G00001").Update("current_odometer", 34000)

	// No odometer reading on the inspection: vehicle current odometer is used
	if _, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
		UnitID: "unit-SN-700", Outcome: entity.InspectionOutcomeFailed, TreadDepth: depth(1.5),
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var unit entity.Unit
	db.Where("id = ?", "unit-SN-700").First(&unit)
	if unit.CumulativeKm != 4000 {
		t.Errorf("Expected cumulative km 4000 from vehicle odometer fallback, got %.1f", unit.CumulativeKm)
	}

	// The fallback is reported as an info data-quality alert
	var alert entity.Alert
	err := db.Where("module = ? AND condition = ? AND entity_ref = ?",
		entity.AlertModuleInspection, entity.AlertConditionDataQuality, "SN-700").First(&alert).Error
	if err != nil {
		t.Fatalf("Expected data-quality alert: %v", err)
	}
	if alert.Severity != entity.AlertSeverityInfo {
		t.Errorf("Expected info severity, got %s", alert.Severity)
	}
}

func TestPassedInspectionRestoresGoodCondition(t *testing.T) {
	db, inspectionSvc, _ := setupInspectionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	unit := testutil.SeedUnit(t, db, "SN-800", "MIC-X-295-80", entity.UnitStatusInInspection)
	db.Model(unit).Update("condition", entity.UnitConditionDamaged)

	if _, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
		UnitID: "unit-SN-800", Outcome: entity.InspectionOutcomePassed, TreadDepth: depth(9.5),
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var got entity.Unit
	db.Where("id = ?", "unit-SN-800").First(&got)
	if got.Status != entity.UnitStatusInStock {
		t.Errorf("Expected in_stock, got %s", got.Status)
	}
	if got.Condition != entity.UnitConditionGood {
		t.Errorf("Expected good, got %s", got.Condition)
	}
	if got.TreadDepth != 9.5 {
		t.Errorf("Expected tread depth 9.5, got %.2f", got.TreadDepth)
	}
}

func TestPendingInspectionDefersCondition(t *testing.T) {
	db, inspectionSvc, _ := setupInspectionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedUnit(t, db, "SN-900", "MIC-X-295-80", entity.UnitStatusInStock)

	if _, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
		UnitID: "unit-SN-900", Outcome: entity.InspectionOutcomePending, TreadDepth: depth(5),
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var got entity.Unit
	db.Where("id = ?", "unit-SN-900").First(&got)
	if got.Status != entity.UnitStatusInInspection {
		t.Errorf("Expected in_inspection, got %s", got.Status)
	}
	if got.Condition != entity.UnitConditionGood {
		t.Errorf("Expected condition unchanged, got %s", got.Condition)
	}
}

func TestInspectionDetectsLedgerInconsistency(t *testing.T) {
	db, inspectionSvc, _ := setupInspectionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	// Unit claims assigned but the ledger has no open row
	testutil.SeedUnit(t, db, "SN-910", "MIC-X-295-80", entity.UnitStatusAssigned)

	_, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
		UnitID: "unit-SN-910", Outcome: entity.InspectionOutcomeFailed, TreadDepth: depth(2),
	})
	if !apperr.Is(err, apperr.KindConsistency) {
		t.Fatalf("Expected Consistency error, got %v", err)
	}

	// The inspection record itself is already persisted
	var count int64
	db.Model(&entity.Inspection{}).Where("unit_id = ?", "unit-SN-910").Count(&count)
	if count != 1 {
		t.Errorf("Expected inspection persisted despite consistency error, got %d rows", count)
	}
}

func TestInspectionRejectsScrappedUnit(t *testing.T) {
	db, inspectionSvc, _ := setupInspectionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedUnit(t, db, "SN-920", "MIC-X-295-80", entity.UnitStatusScrapped)

	_, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
		UnitID: "unit-SN-920", Outcome: entity.InspectionOutcomePassed, TreadDepth: depth(8),
	})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition for scrapped unit, got %v", err)
	}
}

func TestMetricsWithoutPriorMonthData(t *testing.T) {
	db, inspectionSvc, _ := setupInspectionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedUnit(t, db, "SN-M1", "MIC-X-295-80", entity.UnitStatusInStock)
	testutil.SeedUnit(t, db, "SN-M2", "MIC-X-295-80", entity.UnitStatusInStock)

	unitIDs := []string{"unit-SN-M1", "unit-SN-M2"}
	outcomes := []string{entity.InspectionOutcomePassed, entity.InspectionOutcomeFailed}
	for i, unitID := range unitIDs {
		if _, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
			UnitID: unitID, Outcome: outcomes[i], TreadDepth: depth(8),
		}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	metrics, err := inspectionSvc.Metrics(ctx)
	if err != nil {
		t.Fatalf("Metrics failed: %v", err)
	}
	if metrics.MonthTotal != 2 || metrics.MonthPassed != 1 || metrics.MonthFailed != 1 {
		t.Errorf("Unexpected counts: %+v", metrics)
	}
	if metrics.PassRate != 50 {
		t.Errorf("Expected pass rate 50, got %v", metrics.PassRate)
	}
	// No inspections last month: the comparison is suppressed, not a
	// division by zero
	if metrics.HasPriorData || metrics.TotalChange != 0 {
		t.Errorf("Expected no prior-month comparison, got %+v", metrics)
	}
}

func TestFailedInspectionAtZeroTreadQuarantines(t *testing.T) {
	db, inspectionSvc, assignmentSvc := setupInspectionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)
	testutil.SeedVehicle(t, db, "沪F00002", "drive-1-right")
	testutil.SeedUnit(t, db, "SN-930", "MIC-X-295-80", entity.UnitStatusInStock)
	if _, err := assignmentSvc.Assign(ctx, "unit-SN-930", "tester", &AssignRequest{
		VehicleID: "veh-沪F00002", Position: "drive-1-right", Odometer: 20000,
	}); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	// A measured 0mm is the worst possible reading, not a missing one:
	// it must take the quarantine path, not the damaged-review path
	odo := 26000.0
	if _, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
		UnitID: "unit-SN-930", Outcome: entity.InspectionOutcomeFailed,
		TreadDepth: depth(0), OdometerReading: &odo,
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var unit entity.Unit
	db.Where("id = ?", "unit-SN-930").First(&unit)
	if unit.Status != entity.UnitStatusQuarantined {
		t.Errorf("Expected quarantined at 0mm, got %s", unit.Status)
	}
	if unit.Condition != entity.UnitConditionWorn {
		t.Errorf("Expected worn, got %s", unit.Condition)
	}
	var open int64
	db.Model(&entity.Assignment{}).Where("unit_id = ? AND removed_at IS NULL", "unit-SN-930").Count(&open)
	if open != 0 {
		t.Errorf("Expected forced removal, %d open assignments remain", open)
	}

	// Unmeasured tread on a failed inspection must not quarantine
	testutil.SeedUnit(t, db, "SN-940", "MIC-X-295-80", entity.UnitStatusInStock)
	if _, err := inspectionSvc.Record(ctx, "inspector-1", &RecordInspectionRequest{
		UnitID: "unit-SN-940", Outcome: entity.InspectionOutcomeFailed,
	}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	var unit2 entity.Unit
	db.Where("id = ?", "unit-SN-940").First(&unit2)
	if unit2.Status != entity.UnitStatusInInspection {
		t.Errorf("Expected in_inspection for unmeasured failure, got %s", unit2.Status)
	}
	if unit2.Condition != entity.UnitConditionDamaged {
		t.Errorf("Expected damaged, got %s", unit2.Condition)
	}
}
