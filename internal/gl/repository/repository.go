package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories GL仓库集合
type Repositories struct {
	Account        *AccountRepository
	Dimension      *DimensionRepository
	Source         *SourceRepository
	Posting        *PostingRepository
	Reconciliation *ReconciliationRepository
	Settlement     *SettlementRepository
}

// NewRepositories 创建GL仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account:        NewAccountRepository(db),
		Dimension:      NewDimensionRepository(db),
		Source:         NewSourceRepository(db),
		Posting:        NewPostingRepository(db),
		Reconciliation: NewReconciliationRepository(db),
		Settlement:     NewSettlementRepository(db),
	}
}
