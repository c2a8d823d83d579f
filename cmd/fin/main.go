package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitfantasy/nimo-fin/internal/config"
	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/handler"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/bitfantasy/nimo-fin/internal/gl/service"
	"github.com/bitfantasy/nimo-fin/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env（可选）
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
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

	zapLogger.Info("Starting nimo-fin service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 数据库迁移与种子数据
	if err := migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to migrate database", zap.Error(err))
	}
	if err := seed(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to seed database", zap.Error(err))
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

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

	// 注册路由
	registerRoutes(router, handlers, cfg)

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
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func migrate(db *gorm.DB, zapLogger *zap.Logger) error {
	err := db.AutoMigrate(
		&entity.Account{},
		&entity.DimensionType{},
		&entity.DimensionValue{},
		&entity.Invoice{},
		&entity.Purchase{},
		&entity.BankTransaction{},
		&entity.DepreciationRun{},
		&entity.TaxSettlement{},
		&entity.PostingBatch{},
		&entity.LedgerLine{},
		&entity.DimensionAssignment{},
		&entity.ReconciliationRecord{},
		&entity.ReconciliationRow{},
		&entity.SettlementRecord{},
		&entity.SettlementPayment{},
	)
	if err != nil {
		return err
	}

	// AutoMigrate 不支持部分索引，用原始 SQL 补
	migrationSQL := []string{
		// 每张源单据至多一个正向过账批次
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_gl_batches_posting ON gl_posting_batches(source_type, source_id) WHERE kind = 'posting'`,
		// 每个批次至多被红冲一次
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_gl_batches_reversal ON gl_posting_batches(reverses_batch_id) WHERE kind = 'reversal'`,
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration SQL warning", zap.String("sql", sql), zap.Error(err))
		}
	}
	return nil
}

// seed 初始化科目表与维度类型。幂等：按编码存在即跳过。
func seed(db *gorm.DB, zapLogger *zap.Logger) error {
	accounts := []entity.Account{
		{Code: "1002", Name: "银行存款", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryGroup, SortOrder: 10},
		{Code: entity.AccountCodeSettlementCash, Name: "银行存款-结算户", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryDetail, SortOrder: 11},
		{Code: "1122", Name: "应收账款", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryDetail, SortOrder: 20},
		{Code: entity.AccountCodeVATInput, Name: "待抵扣进项税额", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryDetail, SortOrder: 30},
		{Code: "1602", Name: "累计折旧", Type: entity.AccountTypeAsset, Category: entity.AccountCategoryDetail, SortOrder: 40},
		{Code: "2202", Name: "应付账款", Type: entity.AccountTypeLiability, Category: entity.AccountCategoryDetail, SortOrder: 50},
		{Code: entity.AccountCodeVATOutput, Name: "应交增值税-销项", Type: entity.AccountTypeLiability, Category: entity.AccountCategoryDetail, SortOrder: 60},
		{Code: "6001", Name: "主营业务收入", Type: entity.AccountTypeIncome, Category: entity.AccountCategoryDetail, SortOrder: 70},
		{Code: "6601", Name: "销售费用", Type: entity.AccountTypeExpense, Category: entity.AccountCategoryDetail, SortOrder: 80},
		{Code: "6602", Name: "管理费用", Type: entity.AccountTypeExpense, Category: entity.AccountCategoryDetail, SortOrder: 81},
	}
	for _, a := range accounts {
		var count int64
		if err := db.Model(&entity.Account{}).Where("code = ?", a.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		a.ID = uuid.New().String()[:32]
		a.IsActive = true
		if err := db.Create(&a).Error; err != nil {
			return err
		}
		zapLogger.Info("Seeded account", zap.String("code", a.Code), zap.String("name", a.Name))
	}

	types := []entity.DimensionType{
		{Code: entity.DimensionCostCenter, Name: "成本中心", IsRequired: true, SupportsHierarchy: true},
		{Code: entity.DimensionProject, Name: "项目", IsRequired: false},
		{Code: entity.DimensionDepartment, Name: "部门", IsRequired: false, SupportsHierarchy: true},
	}
	for _, dt := range types {
		var count int64
		if err := db.Model(&entity.DimensionType{}).Where("code = ?", dt.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		dt.ID = uuid.New().String()[:32]
		if err := db.Create(&dt).Error; err != nil {
			return err
		}
		zapLogger.Info("Seeded dimension type", zap.String("code", dt.Code))
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
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1/gl")
	v1.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 科目表
		accounts := v1.Group("/accounts")
		{
			accounts.GET("", h.Account.List)
			accounts.GET("/tree", h.Account.Tree)
			accounts.GET("/:id", h.Account.Get)
			accounts.POST("", middleware.RequirePermission("gl:accounts:write"), h.Account.Create)
			accounts.PUT("/:id", middleware.RequirePermission("gl:accounts:write"), h.Account.Update)
			accounts.POST("/:id/deactivate", middleware.RequirePermission("gl:accounts:write"), h.Account.Deactivate)
			accounts.DELETE("/:id", middleware.RequirePermission("gl:accounts:write"), h.Account.Delete)
		}

		// 维度目录
		dimensions := v1.Group("/dimensions")
		{
			dimensions.GET("/types", h.Dimension.ListTypes)
			dimensions.POST("/types", middleware.RequirePermission("gl:dimensions:write"), h.Dimension.CreateType)
			dimensions.GET("/types/:code/values", h.Dimension.ListValues)
			dimensions.POST("/types/:code/values", middleware.RequirePermission("gl:dimensions:write"), h.Dimension.CreateValue)
			dimensions.POST("/values/:id/deactivate", middleware.RequirePermission("gl:dimensions:write"), h.Dimension.DeactivateValue)
		}

		// 源单据
		invoices := v1.Group("/invoices")
		{
			invoices.GET("", h.Source.ListInvoices)
			invoices.GET("/:id", h.Source.GetInvoice)
			invoices.POST("", middleware.RequirePermission("gl:sources:write"), h.Source.CreateInvoice)
		}
		purchases := v1.Group("/purchases")
		{
			purchases.GET("", h.Source.ListPurchases)
			purchases.GET("/:id", h.Source.GetPurchase)
			purchases.POST("", middleware.RequirePermission("gl:sources:write"), h.Source.CreatePurchase)
		}
		bankTxns := v1.Group("/bank-transactions")
		{
			bankTxns.GET("", h.Source.ListBankTransactions)
			bankTxns.GET("/:id", h.Source.GetBankTransaction)
			bankTxns.POST("", middleware.RequirePermission("gl:sources:write"), h.Source.CreateBankTransaction)
		}
		depreciations := v1.Group("/depreciation-runs")
		{
			depreciations.GET("", h.Source.ListDepreciationRuns)
			depreciations.GET("/:id", h.Source.GetDepreciationRun)
			depreciations.POST("", middleware.RequirePermission("gl:sources:write"), h.Source.CreateDepreciationRun)
		}

		// 过账引擎
		postings := v1.Group("/postings")
		{
			postings.POST("", middleware.RequirePermission("gl:postings:write"), h.Posting.Post)
			postings.GET("/batches", h.Posting.ListBatches)
			postings.GET("/batches/:id", h.Posting.GetBatch)
			postings.POST("/batches/:id/reverse", middleware.RequirePermission("gl:postings:write"), h.Posting.Reverse)
		}

		// 对账引擎
		recons := v1.Group("/reconciliations")
		{
			recons.GET("/scopes", h.Reconciliation.Scopes)
			recons.POST("", middleware.RequirePermission("gl:reconciliations:write"), h.Reconciliation.Reconcile)
			recons.GET("", h.Reconciliation.List)
			recons.GET("/record", h.Reconciliation.Get)
			recons.GET("/variances", h.Reconciliation.Variances)
			recons.GET("/variances/export", h.Reconciliation.ExportVariances)
		}

		// 结算引擎
		settlements := v1.Group("/settlements")
		{
			settlements.POST("", middleware.RequirePermission("gl:settlements:write"), h.Settlement.Settle)
			settlements.GET("", h.Settlement.List)
			settlements.GET("/:id", h.Settlement.Get)
			settlements.POST("/:id/payments", middleware.RequirePermission("gl:settlements:write"), h.Settlement.RecordPayment)
		}
	}
}
