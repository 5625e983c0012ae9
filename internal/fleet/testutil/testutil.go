package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	fleetentity "github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/middleware"
	procentity "github.com/bitfantasy/tyrefleet/internal/procurement/entity"
)

const (
	TestSchema = "test_fleet"
	JWTSecret  = "tyrefleet-jwt-secret-key-2025"
)

// TestEnv holds test environment resources
type TestEnv struct {
	DB     *gorm.DB
	Router *gin.Engine
	T      *testing.T
}

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "tyrefleet")
	password := getEnv("DB_PASSWORD", "tyrefleet123")
	dbname := getEnv("DB_NAME", "tyrefleet")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to database for schema setup: %v", err)
	}
	setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName))
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Migrate test tables
	err = db.AutoMigrate(
		&fleetentity.SKU{},
		&fleetentity.Vehicle{},
		&fleetentity.Unit{},
		&fleetentity.Assignment{},
		&fleetentity.Inspection{},
		&fleetentity.Alert{},
		&fleetentity.ActivityLog{},
		&procentity.Requisition{},
		&procentity.RequisitionItem{},
		&procentity.PurchaseOrder{},
		&procentity.POItem{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}

	// Partial unique indexes backing the open-assignment and alert-dedup invariants
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_assignment_unit ON fleet_assignments (unit_id) WHERE removed_at IS NULL")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_assignment_slot ON fleet_assignments (vehicle_id, position) WHERE removed_at IS NULL")
	db.Exec("CREATE UNIQUE INDEX IF NOT EXISTS uniq_unresolved_alert_key ON fleet_alerts (module, entity_ref, condition) WHERE status <> 'resolved'")

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"iss":   "tyrefleet",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken(
		"test-user-001",
		"Test Admin",
		"admin@test.com",
		[]string{"fleet_admin"},
	)
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedSKU creates a tyre SKU with stock thresholds
func SeedSKU(t *testing.T, db *gorm.DB, code string, reorderPoint, minStock int) *fleetentity.SKU {
	t.Helper()
	sku := &fleetentity.SKU{
		ID:                 "sku-" + code,
		Code:               code,
		Brand:              "Michelin",
		Model:              "X Multi",
		Size:               "295/80R22.5",
		Category:           fleetentity.SKUCategoryDrive,
		MinTreadDepth:      3,
		ReorderPoint:       reorderPoint,
		MinStockLevel:      minStock,
		PreferredWarehouse: "WH-A",
	}
	if err := db.Create(sku).Error; err != nil {
		t.Fatalf("Failed to seed SKU: %v", err)
	}
	return sku
}

// SeedVehicle creates a vehicle with the given axle positions
func SeedVehicle(t *testing.T, db *gorm.DB, plateNo string, positions ...string) *fleetentity.Vehicle {
	t.Helper()
	vehicle := &fleetentity.Vehicle{
		ID:            "veh-" + plateNo,
		PlateNo:       plateNo,
		Category:      "tractor",
		AxlePositions: fleetentity.StringArray(positions),
		Status:        fleetentity.VehicleStatusActive,
	}
	if err := db.Create(vehicle).Error; err != nil {
		t.Fatalf("Failed to seed vehicle: %v", err)
	}
	return vehicle
}

// SeedUnit creates a tyre unit in the given status
func SeedUnit(t *testing.T, db *gorm.DB, serialNo, skuCode, status string) *fleetentity.Unit {
	t.Helper()
	unit := &fleetentity.Unit{
		ID:        "unit-" + serialNo,
		SerialNo:  serialNo,
		SKUCode:   skuCode,
		Condition: fleetentity.UnitConditionGood,
		Status:    status,
		Location:  "WH-A",
	}
	if status != fleetentity.UnitStatusInStock {
		unit.Location = ""
	}
	if err := db.Create(unit).Error; err != nil {
		t.Fatalf("Failed to seed unit: %v", err)
	}
	return unit
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
