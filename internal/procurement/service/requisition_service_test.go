package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	fleetrepo "github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/fleet/testutil"
	"github.com/bitfantasy/tyrefleet/internal/procurement/entity"
	"github.com/bitfantasy/tyrefleet/internal/procurement/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

func setupRequisitionTest(t *testing.T) (*gorm.DB, *RequisitionService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	procRepos := repository.NewRepositories(db)
	skuRepo := fleetrepo.NewSKURepository(db)
	svc := NewRequisitionService(procRepos.Requisition, skuRepo, db, zap.NewNop())
	return db, svc
}

func TestRequisitionLifecycle(t *testing.T) {
	db, svc := setupRequisitionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 10, 4)

	requisition, err := svc.CreateRequisition(ctx, "user-1", &CreateRequisitionRequest{
		Items: []RequisitionItemRequest{{SKUCode: "MIC-X-295-80", Quantity: 6}},
	})
	if err != nil {
		t.Fatalf("CreateRequisition failed: %v", err)
	}
	if requisition.Status != entity.RequisitionStatusDraft {
		t.Fatalf("Expected draft, got %s", requisition.Status)
	}
	if len(requisition.Items) != 1 || requisition.Items[0].Brand != "Michelin" {
		t.Errorf("Expected SKU snapshot on item, got %+v", requisition.Items)
	}

	// Approving a draft skips the pending step and is rejected
	if _, err := svc.Approve(ctx, requisition.ID, "mgr-1"); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition approving a draft, got %v", err)
	}

	submitted, err := svc.Submit(ctx, requisition.ID, "user-1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if submitted.Status != entity.RequisitionStatusPending || submitted.SubmittedAt == nil {
		t.Errorf("Expected pending with submit time, got %s", submitted.Status)
	}

	// Items are frozen once submitted
	if _, err := svc.UpdateItems(ctx, requisition.ID, []RequisitionItemRequest{{SKUCode: "MIC-X-295-80", Quantity: 9}}); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition editing pending items, got %v", err)
	}

	approved, err := svc.Approve(ctx, requisition.ID, "mgr-1")
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != entity.RequisitionStatusApproved {
		t.Fatalf("Expected approved, got %s", approved.Status)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != "mgr-1" {
		t.Errorf("Expected reviewer mgr-1, got %v", approved.ReviewedBy)
	}

	// Rejected is terminal on a separate requisition
	other, err := svc.CreateRequisition(ctx, "user-1", &CreateRequisitionRequest{
		Items: []RequisitionItemRequest{{SKUCode: "MIC-X-295-80", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateRequisition failed: %v", err)
	}
	if _, err := svc.Submit(ctx, other.ID, "user-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// The rejecting manager is recorded as reviewer, not approver
	rejected, err := svc.Reject(ctx, other.ID, "mgr-2")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.ReviewedBy == nil || *rejected.ReviewedBy != "mgr-2" {
		t.Errorf("Expected reviewer mgr-2 on rejection, got %v", rejected.ReviewedBy)
	}
	if rejected.ReviewedAt == nil {
		t.Errorf("Expected review time on rejection")
	}
	if _, err := svc.Submit(ctx, other.ID, "user-1"); !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Errorf("Expected InvalidTransition resubmitting rejected, got %v", err)
	}
}

func TestCreateRequisitionValidation(t *testing.T) {
	db, svc := setupRequisitionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 0, 0)

	if _, err := svc.CreateRequisition(ctx, "user-1", &CreateRequisitionRequest{}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected Validation for empty items, got %v", err)
	}
	if _, err := svc.CreateRequisition(ctx, "user-1", &CreateRequisitionRequest{
		Items: []RequisitionItemRequest{{SKUCode: "MIC-X-295-80", Quantity: 0}},
	}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("Expected Validation for zero quantity, got %v", err)
	}
	if _, err := svc.CreateRequisition(ctx, "user-1", &CreateRequisitionRequest{
		Items: []RequisitionItemRequest{{SKUCode: "NOPE", Quantity: 1}},
	}); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Expected NotFound for unknown SKU, got %v", err)
	}
}

func TestSuggestFromAlertIdempotent(t *testing.T) {
	db, svc := setupRequisitionTest(t)
	ctx := context.Background()

	testutil.SeedSKU(t, db, "MIC-X-295-80", 10, 4)

	if err := svc.SuggestFromAlert(ctx, "alert-1", "MIC-X-295-80", 3); err != nil {
		t.Fatalf("SuggestFromAlert failed: %v", err)
	}
	// A second suggestion for the same unclosed alert is a no-op
	if err := svc.SuggestFromAlert(ctx, "alert-1", "MIC-X-295-80", 3); err != nil {
		t.Fatalf("Second SuggestFromAlert failed: %v", err)
	}

	var count int64
	db.Model(&entity.Requisition{}).Where("source_alert_id = ?", "alert-1").Count(&count)
	if count != 1 {
		t.Fatalf("Expected 1 suggested requisition, got %d", count)
	}
	var suggested entity.Requisition
	db.Preload("Items").Where("source_alert_id = ?", "alert-1").First(&suggested)
	if suggested.RequestedBy != "system" || len(suggested.Items) != 1 || suggested.Items[0].Quantity != 3 {
		t.Errorf("Unexpected suggested requisition: %+v", suggested)
	}
}
