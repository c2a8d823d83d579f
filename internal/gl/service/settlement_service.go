package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SettlementService 结算引擎。
// 每期间最多一张结算单；结算金额来自总账控制科目净额重算，不读对账缓存。
type SettlementService struct {
	db      *gorm.DB
	repos   *repository.Repositories
	posting *PostingService
	logger  *zap.Logger
}

func NewSettlementService(db *gorm.DB, repos *repository.Repositories, posting *PostingService, logger *zap.Logger) *SettlementService {
	return &SettlementService{db: db, repos: repos, posting: posting, logger: logger}
}

// Settle 结算某期间的税金控制科目，生成结算单据并过账三行分录。
// cashAccountID 为空时使用内建结算银行科目。
func (s *SettlementService) Settle(ctx context.Context, period, cashAccountID, userID string) (*entity.SettlementRecord, error) {
	from, to, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	if err := s.checkNotSettled(ctx, period); err != nil {
		return nil, err
	}

	payableAcct, err := s.repos.Account.FindByCode(ctx, entity.AccountCodeVATOutput)
	if err != nil {
		return nil, fmt.Errorf("find VAT output control account: %w", err)
	}
	receivableAcct, err := s.repos.Account.FindByCode(ctx, entity.AccountCodeVATInput)
	if err != nil {
		return nil, fmt.Errorf("find VAT input control account: %w", err)
	}

	if cashAccountID == "" {
		cashAcct, err := s.repos.Account.FindByCode(ctx, entity.AccountCodeSettlementCash)
		if err != nil {
			return nil, fmt.Errorf("find settlement cash account: %w", err)
		}
		cashAccountID = cashAcct.ID
	} else {
		cashAcct, err := s.repos.Account.FindByID(ctx, cashAccountID)
		if err != nil {
			return nil, err
		}
		if !cashAcct.Postable() {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotPostable, cashAcct.Code)
		}
	}

	// 控制科目余额按总账自然方向净额重算，负余额截断为零
	outputTotal, err := s.repos.Posting.AccountNet(ctx, payableAcct.ID, true, from, to)
	if err != nil {
		return nil, err
	}
	inputTotal, err := s.repos.Posting.AccountNet(ctx, receivableAcct.ID, false, from, to)
	if err != nil {
		return nil, err
	}
	if outputTotal.IsNegative() {
		outputTotal = decimal.Zero
	}
	if inputTotal.IsNegative() {
		inputTotal = decimal.Zero
	}
	if outputTotal.IsZero() && inputTotal.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrNothingToSettle, period)
	}

	net := outputTotal.Sub(inputTotal)
	direction := entity.SettlementDirectionPayment
	if net.IsNegative() {
		direction = entity.SettlementDirectionRefund
	}

	code, err := s.nextCode(ctx, period)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	ts := &entity.TaxSettlement{
		ID:                  uuid.New().String()[:32],
		Code:                code,
		Period:              period,
		Direction:           direction,
		TxnDate:             to.AddDate(0, 0, -1),
		OutputAmount:        outputTotal,
		InputAmount:         inputTotal,
		NetAmount:           net.Abs(),
		PayableAccountID:    payableAcct.ID,
		ReceivableAccountID: receivableAcct.ID,
		CashAccountID:       cashAccountID,
		PostingState:        entity.PostingState{PostingStatus: entity.PostingStatusDraft},
		CreatedBy:           userID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repos.Source.CreateTaxSettlement(s.db.WithContext(ctx), ts); err != nil {
		return nil, err
	}

	batch, err := s.posting.Post(ctx, entity.SourceTypeTaxSettlement, ts.ID, userID)
	if err != nil {
		s.logger.Error("结算单据过账失败",
			zap.String("period", period),
			zap.String("tax_settlement_id", ts.ID),
			zap.Error(err))
		return nil, err
	}

	// 两个控制科目持平时无需支付，结算单直接生成为已付清
	status := entity.SettlementStatusUnpaid
	if net.IsZero() {
		status = entity.SettlementStatusPaid
	}

	record := &entity.SettlementRecord{
		ID:                uuid.New().String()[:32],
		Period:            period,
		Direction:         direction,
		OutputTotal:       outputTotal,
		InputTotal:        inputTotal,
		NetAmount:         net.Abs(),
		BatchID:           batch.ID,
		SourceID:          ts.ID,
		TotalPaidToDate:   decimal.Zero,
		OutstandingAmount: net.Abs(),
		Status:            status,
		CreatedBy:         userID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repos.Settlement.Create(s.db.WithContext(ctx), record); err != nil {
		return nil, err
	}

	s.logger.Info("期间结算完成",
		zap.String("period", period),
		zap.String("direction", direction),
		zap.String("net_amount", record.NetAmount.String()),
		zap.String("batch_id", batch.ID))
	return record, nil
}

// RecordPayment 登记结算单的一笔部分支付。
// 状态单调推进 unpaid→partial→paid，尾差小于容差即视为付清。
// 结算单在事务内加行锁后重读再校验，并发支付串行化，累计金额不丢失。
func (s *SettlementService) RecordPayment(ctx context.Context, settlementID string, amount decimal.Decimal, userID, notes string) (*entity.SettlementRecord, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repos.Settlement.FindByIDForUpdate(tx, settlementID)
		if err != nil {
			return err
		}
		if record.Status == entity.SettlementStatusPaid {
			return fmt.Errorf("%w: settlement %s is already fully paid", ErrAlreadySettled, settlementID)
		}
		if amount.GreaterThan(record.OutstandingAmount) {
			return fmt.Errorf("%w: %s exceeds outstanding %s", ErrInvalidAmount, amount, record.OutstandingAmount)
		}

		now := time.Now()
		record.TotalPaidToDate = record.TotalPaidToDate.Add(amount)
		record.OutstandingAmount = record.NetAmount.Sub(record.TotalPaidToDate)
		if record.OutstandingAmount.LessThan(ReconTolerance) {
			record.Status = entity.SettlementStatusPaid
		} else {
			record.Status = entity.SettlementStatusPartial
		}
		record.UpdatedAt = now

		payment := &entity.SettlementPayment{
			ID:           uuid.New().String()[:32],
			SettlementID: record.ID,
			Amount:       amount,
			PaidAt:       now,
			RecordedBy:   userID,
			Notes:        notes,
		}
		return s.repos.Settlement.AddPayment(tx, record, payment)
	})
	if err != nil {
		return nil, err
	}
	return s.repos.Settlement.FindByID(ctx, settlementID)
}

// Get 查询结算单（含支付明细）
func (s *SettlementService) Get(ctx context.Context, id string) (*entity.SettlementRecord, error) {
	return s.repos.Settlement.FindByID(ctx, id)
}

// GetByPeriod 查询某期间的结算单
func (s *SettlementService) GetByPeriod(ctx context.Context, period string) (*entity.SettlementRecord, error) {
	if _, _, err := ParsePeriod(period); err != nil {
		return nil, err
	}
	return s.repos.Settlement.FindByPeriod(ctx, period)
}

// List 查询结算单列表
func (s *SettlementService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.SettlementRecord, int64, error) {
	return s.repos.Settlement.List(ctx, page, pageSize, filters)
}

// checkNotSettled 每期间最多一张结算单。已存在结算单或结算单据即拒绝，
// 中途失败留下的草稿需人工清理后重试。
func (s *SettlementService) checkNotSettled(ctx context.Context, period string) error {
	_, err := s.repos.Settlement.FindByPeriod(ctx, period)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadySettled, period)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	count, err := s.repos.Source.CountTaxSettlements(ctx, taxSettlementCodePrefix(period))
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrAlreadySettled, period)
	}
	return nil
}

func taxSettlementCodePrefix(period string) string {
	return "TAX-" + period
}

func (s *SettlementService) nextCode(ctx context.Context, period string) (string, error) {
	count, err := s.repos.Source.CountTaxSettlements(ctx, taxSettlementCodePrefix(period))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", taxSettlementCodePrefix(period), count+1), nil
}
