package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
	"github.com/bitfantasy/tyrefleet/internal/fleet/testutil"
)

func setupCatalogRouter(t *testing.T) *gin.Engine {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	h := NewCatalogHandler(service.NewCatalogService(repos.SKU))

	r := testutil.SetupRouter()
	api := testutil.AuthGroup(r, "/api/v1")
	skus := api.Group("/skus")
	{
		skus.GET("", h.ListSKUs)
		skus.POST("", h.CreateSKU)
		skus.GET("/:id", h.GetSKU)
	}
	return r
}

func TestCreateSKUEndpoint(t *testing.T) {
	r := setupCatalogRouter(t)
	token := testutil.DefaultTestToken()

	body := map[string]interface{}{
		"code":     "MIC-X-295-80",
		"brand":    "Michelin",
		"model":    "X Multi",
		"size":     "295/80R22.5",
		"category": "drive",
	}
	w := testutil.DoRequest(r, "POST", "/api/v1/skus", body, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	// The authenticated user is recorded as the creator
	if data["created_by"] != "test-user-001" {
		t.Errorf("Expected creator test-user-001, got %v", data["created_by"])
	}

	// Duplicate code through the HTTP surface maps to 409
	w = testutil.DoRequest(r, "POST", "/api/v1/skus", body, token)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate code, got %d", w.Code)
	}

	// Missing token is rejected before the handler runs
	w = testutil.DoRequest(r, "POST", "/api/v1/skus", body, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	w = testutil.DoRequest(r, "GET", "/api/v1/skus/MIC-X-295-80", nil, token)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 on get, got %d", w.Code)
	}
}
