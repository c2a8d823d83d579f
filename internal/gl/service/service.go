package service

import (
	"github.com/bitfantasy/nimo-fin/internal/config"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务聚合
type Services struct {
	Account        *AccountService
	Dimension      *DimensionService
	Source         *SourceService
	Posting        *PostingService
	Reconciliation *ReconciliationService
	Settlement     *SettlementService
}

func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	posting := NewPostingService(db, repos, logger)
	return &Services{
		Account:        NewAccountService(repos),
		Dimension:      NewDimensionService(repos),
		Source:         NewSourceService(repos),
		Posting:        posting,
		Reconciliation: NewReconciliationService(db, repos, rdb, cfg.Ledger.ReconCacheTTL),
		Settlement:     NewSettlementService(db, repos, posting, logger),
	}
}
