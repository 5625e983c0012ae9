package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	fleetentity "github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	fleetrepo "github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	fleetservice "github.com/bitfantasy/tyrefleet/internal/fleet/service"
	"github.com/bitfantasy/tyrefleet/internal/fleet/testutil"
	"github.com/bitfantasy/tyrefleet/internal/procurement/entity"
	"github.com/bitfantasy/tyrefleet/internal/procurement/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

type poTestEnv struct {
	db             *gorm.DB
	requisitionSvc *RequisitionService
	poSvc          *POService
}

func setupPOTest(t *testing.T) *poTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	procRepos := repository.NewRepositories(db)
	fleetRepos := fleetrepo.NewRepositories(db)

	unitSvc := fleetservice.NewUnitService(fleetRepos.Unit, fleetRepos.SKU, fleetRepos.Assignment, fleetRepos.ActivityLog, db)
	requisitionSvc := NewRequisitionService(procRepos.Requisition, fleetRepos.SKU, db, zap.NewNop())
	poSvc := NewPOService(procRepos.PO, procRepos.Requisition, db, zap.NewNop())
	poSvc.SetUnitCreator(unitSvc)

	return &poTestEnv{db: db, requisitionSvc: requisitionSvc, poSvc: poSvc}
}

// approvedRequisition walks a requisition through draft/pending/approved.
func (env *poTestEnv) approvedRequisition(t *testing.T, ctx context.Context, skuCode string, qty int) *entity.Requisition {
	t.Helper()
	requisition, err := env.requisitionSvc.CreateRequisition(ctx, "user-1", &CreateRequisitionRequest{
		Items: []RequisitionItemRequest{{SKUCode: skuCode, Quantity: qty}},
	})
	if err != nil {
		t.Fatalf("CreateRequisition failed: %v", err)
	}
	if _, err := env.requisitionSvc.Submit(ctx, requisition.ID, "user-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	approved, err := env.requisitionSvc.Approve(ctx, requisition.ID, "mgr-1")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	return approved
}

func TestCreatePORequiresApprovedRequisition(t *testing.T) {
	env := setupPOTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, env.db, "MIC-X-295-80", 0, 0)

	draft, err := env.requisitionSvc.CreateRequisition(ctx, "user-1", &CreateRequisitionRequest{
		Items: []RequisitionItemRequest{{SKUCode: "MIC-X-295-80", Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("CreateRequisition failed: %v", err)
	}
	if _, err := env.poSvc.CreateFromRequisition(ctx, "buyer-1", &CreatePORequest{
		RequisitionID: draft.ID, SupplierName: "正新轮胎",
	}); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition for draft requisition, got %v", err)
	}
}

func TestCreatePODedupPerRequisition(t *testing.T) {
	env := setupPOTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, env.db, "MIC-X-295-80", 0, 0)
	requisition := env.approvedRequisition(t, ctx, "MIC-X-295-80", 4)

	po, err := env.poSvc.CreateFromRequisition(ctx, "buyer-1", &CreatePORequest{
		RequisitionID: requisition.ID, SupplierName: "正新轮胎",
	})
	if err != nil {
		t.Fatalf("CreateFromRequisition failed: %v", err)
	}
	if po.Status != entity.POStatusCreated || len(po.Items) != 1 {
		t.Errorf("Unexpected PO: status=%s items=%d", po.Status, len(po.Items))
	}

	// Only one unclosed PO per requisition
	if _, err := env.poSvc.CreateFromRequisition(ctx, "buyer-1", &CreatePORequest{
		RequisitionID: requisition.ID, SupplierName: "正新轮胎",
	}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("Expected Conflict for second PO, got %v", err)
	}
}

func TestAdvancePOAdjacentOnly(t *testing.T) {
	env := setupPOTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, env.db, "MIC-X-295-80", 0, 0)
	requisition := env.approvedRequisition(t, ctx, "MIC-X-295-80", 2)
	po, err := env.poSvc.CreateFromRequisition(ctx, "buyer-1", &CreatePORequest{
		RequisitionID: requisition.ID, SupplierName: "正新轮胎",
	})
	if err != nil {
		t.Fatalf("CreateFromRequisition failed: %v", err)
	}

	// created -> acknowledged skips sent
	if _, err := env.poSvc.AdvancePO(ctx, po.ID, "buyer-1", &AdvancePORequest{Status: entity.POStatusAcknowledged}); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition for skipped step, got %v", err)
	}
	// backwards is also rejected
	if _, err := env.poSvc.AdvancePO(ctx, po.ID, "buyer-1", &AdvancePORequest{Status: entity.POStatusCreated}); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition for no-op advance, got %v", err)
	}

	sent, err := env.poSvc.AdvancePO(ctx, po.ID, "buyer-1", &AdvancePORequest{Status: entity.POStatusSent})
	if err != nil {
		t.Fatalf("Advance to sent failed: %v", err)
	}
	if sent.Status != entity.POStatusSent || sent.SentAt == nil {
		t.Errorf("Expected sent with timestamp, got %s", sent.Status)
	}
}

func TestDeliveryCreatesUnitsAndClosesRequisition(t *testing.T) {
	env := setupPOTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, env.db, "MIC-X-295-80", 0, 0)
	requisition := env.approvedRequisition(t, ctx, "MIC-X-295-80", 4)
	po, err := env.poSvc.CreateFromRequisition(ctx, "buyer-1", &CreatePORequest{
		RequisitionID: requisition.ID, SupplierName: "正新轮胎",
	})
	if err != nil {
		t.Fatalf("CreateFromRequisition failed: %v", err)
	}

	for _, status := range []string{entity.POStatusSent, entity.POStatusAcknowledged} {
		if _, err := env.poSvc.AdvancePO(ctx, po.ID, "buyer-1", &AdvancePORequest{Status: status}); err != nil {
			t.Fatalf("Advance to %s failed: %v", status, err)
		}
	}

	delivered, err := env.poSvc.AdvancePO(ctx, po.ID, "buyer-1", &AdvancePORequest{Status: entity.POStatusDelivered})
	if err != nil {
		t.Fatalf("Advance to delivered failed: %v", err)
	}
	if delivered.DeliveredAt == nil {
		t.Error("Expected delivery timestamp")
	}

	// Exactly one unit per ordered tyre, with generated serials
	var units []fleetentity.Unit
	env.db.Where("source_po_code = ?", po.Code).Order("serial_no ASC").Find(&units)
	if len(units) != 4 {
		t.Fatalf("Expected 4 units, got %d", len(units))
	}
	for i, unit := range units {
		if unit.Status != fleetentity.UnitStatusInStock {
			t.Errorf("Unit %s not in stock: %s", unit.SerialNo, unit.Status)
		}
		wantSerial := po.Code + "-1-" + string(rune('1'+i))
		if unit.SerialNo != wantSerial {
			t.Errorf("Expected serial %s, got %s", wantSerial, unit.SerialNo)
		}
	}

	// Delivery closes the source requisition
	var closed entity.Requisition
	env.db.First(&closed, "id = ?", requisition.ID)
	if closed.Status != entity.RequisitionStatusClosed || closed.ClosedAt == nil {
		t.Errorf("Expected closed requisition, got %s", closed.Status)
	}
}

func TestDeliverySerialConflictRollsBack(t *testing.T) {
	env := setupPOTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, env.db, "MIC-X-295-80", 0, 0)
	requisition := env.approvedRequisition(t, ctx, "MIC-X-295-80", 3)
	po, err := env.poSvc.CreateFromRequisition(ctx, "buyer-1", &CreatePORequest{
		RequisitionID: requisition.ID, SupplierName: "正新轮胎",
	})
	if err != nil {
		t.Fatalf("CreateFromRequisition failed: %v", err)
	}
	for _, status := range []string{entity.POStatusSent, entity.POStatusAcknowledged} {
		if _, err := env.poSvc.AdvancePO(ctx, po.ID, "buyer-1", &AdvancePORequest{Status: status}); err != nil {
			t.Fatalf("Advance to %s failed: %v", status, err)
		}
	}

	// The third receipt serial collides with an existing unit
	testutil.SeedUnit(t, env.db, "SN-TAKEN", "MIC-X-295-80", fleetentity.UnitStatusInStock)
	serials := map[string][]string{po.Items[0].ID: {"SN-NEW-1", "SN-NEW-2", "SN-TAKEN"}}
	if _, err := env.poSvc.AdvancePO(ctx, po.ID, "buyer-1", &AdvancePORequest{Status: entity.POStatusDelivered, Serials: serials}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("Expected Conflict for duplicate serial, got %v", err)
	}

	// The whole receipt rolled back: no partial units, PO still acknowledged
	var count int64
	env.db.Model(&fleetentity.Unit{}).Where("source_po_code = ?", po.Code).Count(&count)
	if count != 0 {
		t.Errorf("Expected rollback to leave 0 units, got %d", count)
	}
	var reloaded entity.PurchaseOrder
	env.db.First(&reloaded, "id = ?", po.ID)
	if reloaded.Status != entity.POStatusAcknowledged {
		t.Errorf("Expected PO still acknowledged, got %s", reloaded.Status)
	}

	// Mismatched serial count is rejected before touching the ledger
	if _, err := env.poSvc.AdvancePO(ctx, po.ID, "buyer-1", &AdvancePORequest{
		Status: entity.POStatusDelivered, Serials: map[string][]string{po.Items[0].ID: {"SN-ONLY"}},
	}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected Validation for serial count mismatch, got %v", err)
	}
}
