package service

import (
	"context"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SourceService 源单据维护。单据创建即为 draft，过账由过账引擎负责。
type SourceService struct {
	repos *repository.Repositories
}

func NewSourceService(repos *repository.Repositories) *SourceService {
	return &SourceService{repos: repos}
}

// Get 按类型查询单个源单据
func (s *SourceService) Get(ctx context.Context, sourceType, id string) (entity.PostingSource, error) {
	return s.repos.Source.FindSource(ctx, sourceType, id)
}

// CreateInvoiceRequest 新建销售发票请求
type CreateInvoiceRequest struct {
	Code                string          `json:"code" binding:"required"`
	CustomerName        string          `json:"customer_name"`
	Amount              decimal.Decimal `json:"amount" binding:"required"`
	TxnDate             time.Time       `json:"txn_date" binding:"required"`
	ReceivableAccountID string          `json:"receivable_account_id"`
	RevenueAccountID    string          `json:"revenue_account_id"`
	CostCenterID        *string         `json:"cost_center_id"`
	ProjectID           *string         `json:"project_id"`
	DepartmentID        *string         `json:"department_id"`
	Notes               string          `json:"notes"`
}

func (s *SourceService) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest, userID string) (*entity.Invoice, error) {
	now := time.Now()
	m := &entity.Invoice{
		ID:                  uuid.New().String()[:32],
		Code:                req.Code,
		CustomerName:        req.CustomerName,
		Amount:              req.Amount,
		TxnDate:             req.TxnDate,
		ReceivableAccountID: req.ReceivableAccountID,
		RevenueAccountID:    req.RevenueAccountID,
		CostCenterID:        req.CostCenterID,
		ProjectID:           req.ProjectID,
		DepartmentID:        req.DepartmentID,
		PostingState:        entity.PostingState{PostingStatus: entity.PostingStatusDraft},
		Notes:               req.Notes,
		CreatedBy:           userID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repos.Source.CreateInvoice(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SourceService) ListInvoices(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Invoice, int64, error) {
	return s.repos.Source.ListInvoices(ctx, page, pageSize, filters)
}

// CreatePurchaseRequest 新建采购单请求
type CreatePurchaseRequest struct {
	Code             string          `json:"code" binding:"required"`
	SupplierName     string          `json:"supplier_name"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	TxnDate          time.Time       `json:"txn_date" binding:"required"`
	PayableAccountID string          `json:"payable_account_id"`
	ExpenseAccountID string          `json:"expense_account_id"`
	CostCenterID     *string         `json:"cost_center_id"`
	ProjectID        *string         `json:"project_id"`
	DepartmentID     *string         `json:"department_id"`
	Notes            string          `json:"notes"`
}

func (s *SourceService) CreatePurchase(ctx context.Context, req *CreatePurchaseRequest, userID string) (*entity.Purchase, error) {
	now := time.Now()
	m := &entity.Purchase{
		ID:               uuid.New().String()[:32],
		Code:             req.Code,
		SupplierName:     req.SupplierName,
		Amount:           req.Amount,
		TxnDate:          req.TxnDate,
		PayableAccountID: req.PayableAccountID,
		ExpenseAccountID: req.ExpenseAccountID,
		CostCenterID:     req.CostCenterID,
		ProjectID:        req.ProjectID,
		DepartmentID:     req.DepartmentID,
		PostingState:     entity.PostingState{PostingStatus: entity.PostingStatusDraft},
		Notes:            req.Notes,
		CreatedBy:        userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repos.Source.CreatePurchase(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SourceService) ListPurchases(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Purchase, int64, error) {
	return s.repos.Source.ListPurchases(ctx, page, pageSize, filters)
}

// CreateBankTransactionRequest 新建银行流水请求
type CreateBankTransactionRequest struct {
	Code             string          `json:"code" binding:"required"`
	Amount           decimal.Decimal `json:"amount" binding:"required"`
	Direction        string          `json:"direction" binding:"required,oneof=in out"`
	TxnDate          time.Time       `json:"txn_date" binding:"required"`
	BankAccountID    string          `json:"bank_account_id"`
	CounterAccountID string          `json:"counter_account_id"`
	CostCenterID     *string         `json:"cost_center_id"`
	ProjectID        *string         `json:"project_id"`
	DepartmentID     *string         `json:"department_id"`
	Notes            string          `json:"notes"`
}

func (s *SourceService) CreateBankTransaction(ctx context.Context, req *CreateBankTransactionRequest, userID string) (*entity.BankTransaction, error) {
	now := time.Now()
	m := &entity.BankTransaction{
		ID:               uuid.New().String()[:32],
		Code:             req.Code,
		Amount:           req.Amount,
		Direction:        req.Direction,
		TxnDate:          req.TxnDate,
		BankAccountID:    req.BankAccountID,
		CounterAccountID: req.CounterAccountID,
		CostCenterID:     req.CostCenterID,
		ProjectID:        req.ProjectID,
		DepartmentID:     req.DepartmentID,
		PostingState:     entity.PostingState{PostingStatus: entity.PostingStatusDraft},
		Notes:            req.Notes,
		CreatedBy:        userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repos.Source.CreateBankTransaction(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SourceService) ListBankTransactions(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.BankTransaction, int64, error) {
	return s.repos.Source.ListBankTransactions(ctx, page, pageSize, filters)
}

// CreateDepreciationRunRequest 新建折旧计提请求
type CreateDepreciationRunRequest struct {
	Code                 string          `json:"code" binding:"required"`
	AssetName            string          `json:"asset_name"`
	Amount               decimal.Decimal `json:"amount" binding:"required"`
	TxnDate              time.Time       `json:"txn_date" binding:"required"`
	ExpenseAccountID     string          `json:"expense_account_id"`
	AccumulatedAccountID string          `json:"accumulated_account_id"`
	CostCenterID         *string         `json:"cost_center_id"`
	ProjectID            *string         `json:"project_id"`
	DepartmentID         *string         `json:"department_id"`
	Notes                string          `json:"notes"`
}

func (s *SourceService) CreateDepreciationRun(ctx context.Context, req *CreateDepreciationRunRequest, userID string) (*entity.DepreciationRun, error) {
	now := time.Now()
	m := &entity.DepreciationRun{
		ID:                   uuid.New().String()[:32],
		Code:                 req.Code,
		AssetName:            req.AssetName,
		Amount:               req.Amount,
		TxnDate:              req.TxnDate,
		ExpenseAccountID:     req.ExpenseAccountID,
		AccumulatedAccountID: req.AccumulatedAccountID,
		CostCenterID:         req.CostCenterID,
		ProjectID:            req.ProjectID,
		DepartmentID:         req.DepartmentID,
		PostingState:         entity.PostingState{PostingStatus: entity.PostingStatusDraft},
		Notes:                req.Notes,
		CreatedBy:            userID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.repos.Source.CreateDepreciationRun(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SourceService) ListDepreciationRuns(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.DepreciationRun, int64, error) {
	return s.repos.Source.ListDepreciationRuns(ctx, page, pageSize, filters)
}
