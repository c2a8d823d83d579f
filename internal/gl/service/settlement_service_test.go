package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/bitfantasy/nimo-fin/internal/gl/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type settlementTestEnv struct {
	db         *gorm.DB
	repos      *repository.Repositories
	svc        *SettlementService
	vatOutput  *entity.Account
	vatInput   *entity.Account
	cash       *entity.Account
	receivable *entity.Account
	payable    *entity.Account
}

func setupSettlementTest(t *testing.T) *settlementTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	posting := NewPostingService(db, repos, zap.NewNop())

	env := &settlementTestEnv{
		db:         db,
		repos:      repos,
		svc:        NewSettlementService(db, repos, posting, zap.NewNop()),
		vatOutput:  testutil.SeedAccount(t, db, entity.AccountCodeVATOutput, "应交增值税-销项", entity.AccountTypeLiability),
		vatInput:   testutil.SeedAccount(t, db, entity.AccountCodeVATInput, "待抵扣进项税额", entity.AccountTypeAsset),
		cash:       testutil.SeedAccount(t, db, entity.AccountCodeSettlementCash, "银行存款-结算户", entity.AccountTypeAsset),
		receivable: testutil.SeedAccount(t, db, "1122", "应收账款", entity.AccountTypeAsset),
		payable:    testutil.SeedAccount(t, db, "2202", "应付账款", entity.AccountTypeLiability),
	}

	// 与生产种子一致的维度目录：结算单据不携带维度，
	// 必填的成本中心不得阻断结算过账
	testutil.SeedDimensionType(t, db, entity.DimensionCostCenter, "成本中心", true)
	testutil.SeedDimensionType(t, db, entity.DimensionProject, "项目", false)
	testutil.SeedDimensionType(t, db, entity.DimensionDepartment, "部门", false)
	return env
}

// seedControlActivity 向控制科目写入总账净额（配平行记到往来科目）
func seedControlActivity(t *testing.T, db *gorm.DB, controlID, counterID, amount string, creditControl bool, entryDate time.Time) {
	t.Helper()
	amt := decimal.RequireFromString(amount)
	now := time.Now()

	batch := entity.PostingBatch{
		ID:         uuid.New().String()[:32],
		SourceType: entity.SourceTypeInvoice,
		SourceID:   uuid.New().String()[:32],
		Kind:       entity.BatchKindPosting,
		CreatedBy:  "test-user-001",
		CreatedAt:  now,
	}
	control := entity.LedgerLine{
		ID: uuid.New().String()[:32], BatchID: batch.ID, AccountID: controlID,
		SourceType: batch.SourceType, SourceID: batch.SourceID, EntryDate: entryDate,
		CreatedBy: "test-user-001", CreatedAt: now,
	}
	counter := entity.LedgerLine{
		ID: uuid.New().String()[:32], BatchID: batch.ID, AccountID: counterID,
		SourceType: batch.SourceType, SourceID: batch.SourceID, EntryDate: entryDate,
		CreatedBy: "test-user-001", CreatedAt: now,
	}
	if creditControl {
		control.Credit = amt
		counter.Debit = amt
	} else {
		control.Debit = amt
		counter.Credit = amt
	}
	batch.Lines = []entity.LedgerLine{control, counter}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("seed control activity: %v", err)
	}
}

func TestSettlePaymentDirection(t *testing.T) {
	env := setupSettlementTest(t)
	ctx := context.Background()
	mid := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	// 销项 15400（贷），进项 8200（借）
	seedControlActivity(t, env.db, env.vatOutput.ID, env.receivable.ID, "15400.00", true, mid)
	seedControlActivity(t, env.db, env.vatInput.ID, env.payable.ID, "8200.00", false, mid)

	record, err := env.svc.Settle(ctx, "2026-01", "", "test-user-001")
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	if record.Direction != entity.SettlementDirectionPayment {
		t.Errorf("direction = %q, want payment", record.Direction)
	}
	if !record.NetAmount.Equal(decimal.RequireFromString("7200.00")) {
		t.Errorf("NetAmount = %s, want 7200.00", record.NetAmount)
	}
	if record.Status != entity.SettlementStatusUnpaid {
		t.Errorf("status = %q, want unpaid", record.Status)
	}
	if !record.OutstandingAmount.Equal(record.NetAmount) {
		t.Errorf("OutstandingAmount = %s, want %s", record.OutstandingAmount, record.NetAmount)
	}

	// 三行分录：借销项 15400，贷进项 8200，贷现金 7200
	batch, err := env.repos.Posting.FindBatchByID(ctx, record.BatchID)
	if err != nil {
		t.Fatalf("FindBatchByID: %v", err)
	}
	if len(batch.Lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(batch.Lines))
	}
	byAccount := map[string]entity.LedgerLine{}
	for _, line := range batch.Lines {
		byAccount[line.AccountID] = line
	}
	if line := byAccount[env.vatOutput.ID]; !line.Debit.Equal(decimal.RequireFromString("15400.00")) {
		t.Errorf("payable control line debit = %s, want 15400.00", line.Debit)
	}
	if line := byAccount[env.vatInput.ID]; !line.Credit.Equal(decimal.RequireFromString("8200.00")) {
		t.Errorf("receivable control line credit = %s, want 8200.00", line.Credit)
	}
	if line := byAccount[env.cash.ID]; !line.Credit.Equal(decimal.RequireFromString("7200.00")) {
		t.Errorf("cash line credit = %s, want 7200.00", line.Credit)
	}
}

func TestSettleRefundDirection(t *testing.T) {
	env := setupSettlementTest(t)
	ctx := context.Background()
	mid := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	// 销项 3500，进项 12000：净额为负，退税
	seedControlActivity(t, env.db, env.vatOutput.ID, env.receivable.ID, "3500.00", true, mid)
	seedControlActivity(t, env.db, env.vatInput.ID, env.payable.ID, "12000.00", false, mid)

	record, err := env.svc.Settle(ctx, "2026-01", "", "test-user-001")
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	if record.Direction != entity.SettlementDirectionRefund {
		t.Errorf("direction = %q, want refund", record.Direction)
	}
	if !record.NetAmount.Equal(decimal.RequireFromString("8500.00")) {
		t.Errorf("NetAmount = %s, want 8500.00", record.NetAmount)
	}

	batch, err := env.repos.Posting.FindBatchByID(ctx, record.BatchID)
	if err != nil {
		t.Fatalf("FindBatchByID: %v", err)
	}
	byAccount := map[string]entity.LedgerLine{}
	var debit, credit decimal.Decimal
	for _, line := range batch.Lines {
		byAccount[line.AccountID] = line
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		t.Errorf("refund batch not balanced: debit=%s credit=%s", debit, credit)
	}
	if line := byAccount[env.cash.ID]; !line.Debit.Equal(decimal.RequireFromString("8500.00")) {
		t.Errorf("cash line debit = %s, want 8500.00", line.Debit)
	}
	if line := byAccount[env.vatOutput.ID]; !line.Debit.Equal(decimal.RequireFromString("3500.00")) {
		t.Errorf("payable control line debit = %s, want 3500.00", line.Debit)
	}
	if line := byAccount[env.vatInput.ID]; !line.Credit.Equal(decimal.RequireFromString("12000.00")) {
		t.Errorf("receivable control line credit = %s, want 12000.00", line.Credit)
	}
}

func TestSettleTwiceRejected(t *testing.T) {
	env := setupSettlementTest(t)
	ctx := context.Background()
	mid := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	seedControlActivity(t, env.db, env.vatOutput.ID, env.receivable.ID, "1000.00", true, mid)

	if _, err := env.svc.Settle(ctx, "2026-01", "", "test-user-001"); err != nil {
		t.Fatalf("first Settle failed: %v", err)
	}
	if _, err := env.svc.Settle(ctx, "2026-01", "", "test-user-001"); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("second Settle: expected ErrAlreadySettled, got %v", err)
	}
}

func TestSettleNothingToSettle(t *testing.T) {
	env := setupSettlementTest(t)

	_, err := env.svc.Settle(context.Background(), "2026-01", "", "test-user-001")
	if !errors.Is(err, ErrNothingToSettle) {
		t.Fatalf("expected ErrNothingToSettle, got %v", err)
	}
}

func TestRecordPaymentTransitions(t *testing.T) {
	env := setupSettlementTest(t)
	ctx := context.Background()
	mid := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	seedControlActivity(t, env.db, env.vatOutput.ID, env.receivable.ID, "15400.00", true, mid)
	seedControlActivity(t, env.db, env.vatInput.ID, env.payable.ID, "8200.00", false, mid)

	record, err := env.svc.Settle(ctx, "2026-01", "", "test-user-001")
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	// 超额支付被拒
	if _, err := env.svc.RecordPayment(ctx, record.ID, decimal.RequireFromString("8000.00"), "test-user-001", ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("overpayment: expected ErrInvalidAmount, got %v", err)
	}

	// 部分支付 → partial
	record, err = env.svc.RecordPayment(ctx, record.ID, decimal.RequireFromString("3000.00"), "test-user-001", "首期")
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if record.Status != entity.SettlementStatusPartial {
		t.Errorf("status = %q, want partial", record.Status)
	}
	if !record.OutstandingAmount.Equal(decimal.RequireFromString("4200.00")) {
		t.Errorf("OutstandingAmount = %s, want 4200.00", record.OutstandingAmount)
	}

	// 付清 → paid
	record, err = env.svc.RecordPayment(ctx, record.ID, decimal.RequireFromString("4200.00"), "test-user-001", "尾款")
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if record.Status != entity.SettlementStatusPaid {
		t.Errorf("status = %q, want paid", record.Status)
	}
	if len(record.Payments) != 2 {
		t.Errorf("expected 2 payments, got %d", len(record.Payments))
	}

	// 已付清不再接受支付
	if _, err := env.svc.RecordPayment(ctx, record.ID, decimal.RequireFromString("1.00"), "test-user-001", ""); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("payment after paid: expected ErrAlreadySettled, got %v", err)
	}

	// 非正金额被拒
	if _, err := env.svc.RecordPayment(ctx, record.ID, decimal.Zero, "test-user-001", ""); err == nil {
		t.Fatal("zero payment accepted")
	}
}

func TestSettleNetZeroSettledImmediately(t *testing.T) {
	env := setupSettlementTest(t)
	ctx := context.Background()
	mid := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	// 销项进项持平：净额为零，无现金行，结算单直接付清
	seedControlActivity(t, env.db, env.vatOutput.ID, env.receivable.ID, "5000.00", true, mid)
	seedControlActivity(t, env.db, env.vatInput.ID, env.payable.ID, "5000.00", false, mid)

	record, err := env.svc.Settle(ctx, "2026-01", "", "test-user-001")
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if !record.NetAmount.IsZero() {
		t.Errorf("NetAmount = %s, want 0", record.NetAmount)
	}
	if record.Status != entity.SettlementStatusPaid {
		t.Errorf("status = %q, want paid", record.Status)
	}

	batch, err := env.repos.Posting.FindBatchByID(ctx, record.BatchID)
	if err != nil {
		t.Fatalf("FindBatchByID: %v", err)
	}
	if len(batch.Lines) != 2 {
		t.Fatalf("expected 2 lines without a cash line, got %d", len(batch.Lines))
	}
	for _, line := range batch.Lines {
		if line.Debit.IsZero() == line.Credit.IsZero() {
			t.Errorf("line for account %s: debit=%s credit=%s, want exactly one side non-zero",
				line.AccountID, line.Debit, line.Credit)
		}
	}

	if _, err := env.svc.RecordPayment(ctx, record.ID, decimal.RequireFromString("1.00"), "test-user-001", ""); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("payment on net-zero settlement: expected ErrAlreadySettled, got %v", err)
	}
}

func TestRecordPaymentConcurrentSerialized(t *testing.T) {
	env := setupSettlementTest(t)
	ctx := context.Background()
	mid := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	seedControlActivity(t, env.db, env.vatOutput.ID, env.receivable.ID, "15400.00", true, mid)
	seedControlActivity(t, env.db, env.vatInput.ID, env.payable.ID, "8200.00", false, mid)

	record, err := env.svc.Settle(ctx, "2026-01", "", "test-user-001")
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	// 两笔并发支付各付一半，行锁串行化后累计不丢失
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.RecordPayment(ctx, record.ID, decimal.RequireFromString("3600.00"), "test-user-001", "")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent payment %d failed: %v", i, err)
		}
	}

	got, err := env.svc.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.TotalPaidToDate.Equal(decimal.RequireFromString("7200.00")) {
		t.Errorf("TotalPaidToDate = %s, want 7200.00", got.TotalPaidToDate)
	}
	if !got.OutstandingAmount.IsZero() {
		t.Errorf("OutstandingAmount = %s, want 0", got.OutstandingAmount)
	}
	if got.Status != entity.SettlementStatusPaid {
		t.Errorf("status = %q, want paid", got.Status)
	}
	if len(got.Payments) != 2 {
		t.Errorf("expected 2 payments, got %d", len(got.Payments))
	}
}
