package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitfantasy/tyrefleet/internal/config"
	fleetentity "github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	fleethandler "github.com/bitfantasy/tyrefleet/internal/fleet/handler"
	fleetrepo "github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	fleetsvc "github.com/bitfantasy/tyrefleet/internal/fleet/service"
	"github.com/bitfantasy/tyrefleet/internal/middleware"
	procentity "github.com/bitfantasy/tyrefleet/internal/procurement/entity"
	prochandler "github.com/bitfantasy/tyrefleet/internal/procurement/handler"
	procrepo "github.com/bitfantasy/tyrefleet/internal/procurement/repository"
	procsvc "github.com/bitfantasy/tyrefleet/internal/procurement/service"
	"github.com/bitfantasy/tyrefleet/internal/shared/notify"
	"github.com/bitfantasy/tyrefleet/internal/shared/storage"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting tyrefleet service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := migrate(db); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Redis（库存总览与检查指标缓存）
	rdb := initRedis(cfg.Redis)

	// MinIO对象存储（检验报告附件），未配置时降级关闭
	store, err := storage.New(cfg.MinIO)
	if err != nil {
		zapLogger.Warn("MinIO init failed, report upload disabled", zap.Error(err))
	}

	// 告警webhook通知，未配置时降级关闭
	notifier := notify.NewClient(cfg.Notify.WebhookURL, cfg.Notify.Timeout)

	// Repository层
	fleetRepos := fleetrepo.NewRepositories(db)
	procRepos := procrepo.NewRepositories(db)

	// Service层
	catalogSvc := fleetsvc.NewCatalogService(fleetRepos.SKU)
	vehicleSvc := fleetsvc.NewVehicleService(fleetRepos.Vehicle, fleetRepos.Assignment, fleetRepos.ActivityLog, db)
	unitSvc := fleetsvc.NewUnitService(fleetRepos.Unit, fleetRepos.SKU, fleetRepos.Assignment, fleetRepos.ActivityLog, db)
	assignmentSvc := fleetsvc.NewAssignmentService(fleetRepos.Assignment, fleetRepos.Unit, fleetRepos.Vehicle,
		fleetRepos.SKU, fleetRepos.Inspection, fleetRepos.ActivityLog, db)
	inspectionSvc := fleetsvc.NewInspectionService(fleetRepos.Inspection, fleetRepos.Unit, fleetRepos.Vehicle,
		fleetRepos.SKU, fleetRepos.Assignment, fleetRepos.ActivityLog, db)
	inventorySvc := fleetsvc.NewInventoryService(fleetRepos.Unit, fleetRepos.Alert, zapLogger)
	alertSvc := fleetsvc.NewAlertService(fleetRepos.Alert, fleetRepos.SKU, fleetRepos.Unit, zapLogger)

	requisitionSvc := procsvc.NewRequisitionService(procRepos.Requisition, fleetRepos.SKU, db, zapLogger)
	poSvc := procsvc.NewPOService(procRepos.PO, procRepos.Requisition, db, zapLogger)

	// 跨服务装配
	assignmentSvc.SetAlertService(alertSvc)
	assignmentSvc.SetInventoryService(inventorySvc)
	unitSvc.SetAlertService(alertSvc)
	unitSvc.SetInventoryService(inventorySvc)
	inspectionSvc.SetAssignmentService(assignmentSvc)
	inspectionSvc.SetAlertService(alertSvc)
	if store != nil {
		inspectionSvc.SetObjectStore(store)
	}
	if rdb != nil {
		inventorySvc.SetCache(rdb)
		inspectionSvc.SetCache(rdb)
	}
	if notifier != nil {
		alertSvc.SetNotifier(notifier)
	}

	// fleet↔procurement 通过接口解耦
	alertSvc.SetRequisitionSuggester(requisitionSvc)
	poSvc.SetUnitCreator(unitSvc)
	poSvc.SetThresholdEvaluator(alertSvc)
	poSvc.SetCacheInvalidator(inventorySvc)

	// Handler层
	activityHandler := fleethandler.NewActivityHandler(fleetRepos.ActivityLog)
	fleetHandlers := fleethandler.NewHandlers(catalogSvc, vehicleSvc, unitSvc, assignmentSvc,
		inspectionSvc, inventorySvc, alertSvc, activityHandler)
	fleetHandlers.Unit.SetAssignmentService(assignmentSvc)
	fleetHandlers.Vehicle.SetAssignmentService(assignmentSvc)
	procHandlers := prochandler.NewHandlers(requisitionSvc, poSvc)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, cfg, fleetHandlers, procHandlers)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

// migrate 建表并补挂条件唯一索引。开放装配与未了结告警的唯一性
// 由部分索引兜底，事务内检查失效时数据库层仍然拒绝
func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
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
	); err != nil {
		return err
	}

	for _, stmt := range []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_assignment_unit
			ON fleet_assignments (unit_id) WHERE removed_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_open_assignment_slot
			ON fleet_assignments (vehicle_id, position) WHERE removed_at IS NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_unresolved_alert_key
			ON fleet_alerts (module, entity_ref, condition) WHERE status <> 'resolved'`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, cfg *config.Config, fh *fleethandler.Handlers, ph *prochandler.Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": Version})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 型号目录
		skus := api.Group("/skus")
		{
			skus.GET("", fh.Catalog.ListSKUs)
			skus.POST("", fh.Catalog.CreateSKU)
			skus.GET("/:id", fh.Catalog.GetSKU)
			skus.PUT("/:id", fh.Catalog.UpdateSKU)
			skus.DELETE("/:id", middleware.RequireRole("fleet_admin"), fh.Catalog.DeleteSKU)
		}

		// 车辆档案
		vehicles := api.Group("/vehicles")
		{
			vehicles.GET("", fh.Vehicle.ListVehicles)
			vehicles.POST("", fh.Vehicle.CreateVehicle)
			vehicles.GET("/:id", fh.Vehicle.GetVehicle)
			vehicles.PUT("/:id", fh.Vehicle.UpdateVehicle)
			vehicles.PUT("/:id/odometer", fh.Vehicle.UpdateOdometer)
			vehicles.GET("/:id/positions/:position/history", fh.Vehicle.SlotHistory)
		}

		// 轮胎单体
		units := api.Group("/units")
		{
			units.GET("", fh.Unit.ListUnits)
			units.POST("", fh.Unit.CreateUnit)
			units.GET("/:id", fh.Unit.GetUnit)
			units.POST("/:id/assign", fh.Unit.AssignUnit)
			units.POST("/:id/scrap", fh.Unit.ScrapUnit)
			units.GET("/:id/history", fh.Unit.UnitHistory)
		}

		// 装配台账
		api.POST("/assignments/:id/unassign", fh.Assignment.Unassign)

		// 检查评估
		inspections := api.Group("/inspections")
		{
			inspections.GET("", fh.Inspection.ListInspections)
			inspections.POST("", fh.Inspection.RecordInspection)
			inspections.GET("/metrics", fh.Inspection.Metrics)
			inspections.GET("/:id", fh.Inspection.GetInspection)
			inspections.POST("/:id/report", fh.Inspection.UploadReport)
		}

		// 看板
		api.GET("/dashboard/overview", fh.Dashboard.Overview)

		// 库存聚合
		inventory := api.Group("/inventory")
		{
			inventory.GET("/overview", fh.Inventory.Overview)
			inventory.GET("/stock", fh.Inventory.StockBreakdown)
			inventory.GET("/stock/export", fh.Inventory.ExportStock)
		}

		// 告警
		alerts := api.Group("/alerts")
		{
			alerts.GET("", fh.Alert.ListAlerts)
			alerts.GET("/:id", fh.Alert.GetAlert)
			alerts.POST("/:id/acknowledge", fh.Alert.Acknowledge)
			alerts.POST("/:id/resolve", fh.Alert.Resolve)
			alerts.POST("/evaluate", middleware.RequireRole("fleet_admin"), fh.Alert.Evaluate)
		}

		// 操作日志
		api.GET("/activities/:entityType/:entityId", fh.Activity.ListByEntity)

		// 采购：请购单
		requisitions := api.Group("/requisitions")
		{
			requisitions.GET("", ph.Requisition.ListRequisitions)
			requisitions.POST("", ph.Requisition.CreateRequisition)
			requisitions.GET("/:id", ph.Requisition.GetRequisition)
			requisitions.PUT("/:id/items", ph.Requisition.UpdateItems)
			requisitions.POST("/:id/submit", ph.Requisition.Submit)
			requisitions.POST("/:id/approve", middleware.RequireRole("fleet_admin"), ph.Requisition.Approve)
			requisitions.POST("/:id/reject", middleware.RequireRole("fleet_admin"), ph.Requisition.Reject)
		}

		// 采购：采购订单
		pos := api.Group("/purchase-orders")
		{
			pos.GET("", ph.PO.ListPurchaseOrders)
			pos.POST("", ph.PO.CreatePurchaseOrder)
			pos.GET("/:id", ph.PO.GetPurchaseOrder)
			pos.POST("/:id/advance", ph.PO.AdvancePO)
		}
	}
}
