package service

import (
	"context"
	"errors"
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

type postingTestEnv struct {
	db         *gorm.DB
	repos      *repository.Repositories
	svc        *PostingService
	receivable *entity.Account
	revenue    *entity.Account
	costCenter *entity.DimensionValue
}

func setupPostingTest(t *testing.T) *postingTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	receivable := testutil.SeedAccount(t, db, "1122", "应收账款", entity.AccountTypeAsset)
	revenue := testutil.SeedAccount(t, db, "6001", "主营业务收入", entity.AccountTypeIncome)

	ccType := testutil.SeedDimensionType(t, db, entity.DimensionCostCenter, "成本中心", true)
	cc := testutil.SeedDimensionValue(t, db, ccType.ID, "cc-001", "研发中心")

	return &postingTestEnv{
		db:         db,
		repos:      repos,
		svc:        NewPostingService(db, repos, zap.NewNop()),
		receivable: receivable,
		revenue:    revenue,
		costCenter: cc,
	}
}

func TestPostInvoiceProducesBalancedBatch(t *testing.T) {
	env := setupPostingTest(t)
	ctx := context.Background()

	inv := testutil.SeedInvoice(t, env.db, "1000.00",
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)

	batch, err := env.svc.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if len(batch.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(batch.Lines))
	}

	var debit, credit decimal.Decimal
	for _, line := range batch.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		t.Errorf("batch not balanced: debit=%s credit=%s", debit, credit)
	}
	if !debit.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("unexpected total: %s", debit)
	}

	// 源单据状态翻转
	var got entity.Invoice
	if err := env.db.First(&got, "id = ?", inv.ID).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if got.PostingStatus != entity.PostingStatusPosted {
		t.Errorf("invoice status = %q, want posted", got.PostingStatus)
	}
	if got.LastPostedAt == nil {
		t.Error("LastPostedAt not set")
	}
}

func TestPostTwiceIsAtMostOnce(t *testing.T) {
	env := setupPostingTest(t)
	ctx := context.Background()

	inv := testutil.SeedInvoice(t, env.db, "250.50",
		time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)

	if _, err := env.svc.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001"); err != nil {
		t.Fatalf("first Post failed: %v", err)
	}
	if _, err := env.svc.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001"); !errors.Is(err, ErrAlreadyPosted) {
		t.Fatalf("second Post: expected ErrAlreadyPosted, got %v", err)
	}

	count, err := env.repos.Posting.CountBatchesBySource(ctx, entity.SourceTypeInvoice, inv.ID)
	if err != nil {
		t.Fatalf("CountBatchesBySource: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly 1 batch, got %d", count)
	}
}

func TestPostMissingRequiredDimension(t *testing.T) {
	env := setupPostingTest(t)
	ctx := context.Background()

	// 成本中心为必填维度，单据未携带
	inv := testutil.SeedInvoice(t, env.db, "100.00",
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, nil)

	_, err := env.svc.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001")
	if !errors.Is(err, ErrMissingRequiredDimension) {
		t.Fatalf("expected ErrMissingRequiredDimension, got %v", err)
	}

	// 失败不得留下任何分录或状态变化
	var got entity.Invoice
	env.db.First(&got, "id = ?", inv.ID)
	if got.PostingStatus != entity.PostingStatusDraft {
		t.Errorf("invoice status = %q, want draft", got.PostingStatus)
	}
}

func TestPostMissingAccountMapping(t *testing.T) {
	env := setupPostingTest(t)
	ctx := context.Background()

	inv := testutil.SeedInvoice(t, env.db, "100.00",
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, "", &env.costCenter.ID)

	_, err := env.svc.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001")
	if !errors.Is(err, ErrMissingAccountMapping) {
		t.Fatalf("expected ErrMissingAccountMapping, got %v", err)
	}
}

func TestPostRejectsGroupAccount(t *testing.T) {
	env := setupPostingTest(t)
	ctx := context.Background()

	group := &entity.Account{
		ID: "acct-group-001", Code: "1000", Name: "资产", Type: entity.AccountTypeAsset,
		Category: entity.AccountCategoryGroup, IsActive: true,
	}
	if err := env.db.Create(group).Error; err != nil {
		t.Fatalf("seed group account: %v", err)
	}

	inv := testutil.SeedInvoice(t, env.db, "100.00",
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		group.ID, env.revenue.ID, &env.costCenter.ID)

	_, err := env.svc.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001")
	if !errors.Is(err, ErrAccountNotPostable) {
		t.Fatalf("expected ErrAccountNotPostable, got %v", err)
	}
}

func TestPostPropagatesDimensionsToAllLines(t *testing.T) {
	env := setupPostingTest(t)
	ctx := context.Background()

	inv := testutil.SeedInvoice(t, env.db, "800.00",
		time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)

	batch, err := env.svc.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	for _, line := range batch.Lines {
		found := false
		for _, a := range line.Assignments {
			if a.TypeCode == entity.DimensionCostCenter && a.ValueID == env.costCenter.ID {
				found = true
			}
		}
		if !found {
			t.Errorf("line %s missing cost_center assignment", line.ID)
		}
	}
}

func TestReverseBatch(t *testing.T) {
	env := setupPostingTest(t)
	ctx := context.Background()

	inv := testutil.SeedInvoice(t, env.db, "600.00",
		time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)

	batch, err := env.svc.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	rev, err := env.svc.Reverse(ctx, batch.ID, "test-user-001")
	if err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}
	if rev.Kind != entity.BatchKindReversal {
		t.Errorf("kind = %q, want reversal", rev.Kind)
	}
	if rev.ReversesBatchID == nil || *rev.ReversesBatchID != batch.ID {
		t.Error("reversal does not reference original batch")
	}

	// 借贷互换
	origByAccount := map[string]entity.LedgerLine{}
	for _, line := range batch.Lines {
		origByAccount[line.AccountID] = line
	}
	for _, line := range rev.Lines {
		orig := origByAccount[line.AccountID]
		if !line.Debit.Equal(orig.Credit) || !line.Credit.Equal(orig.Debit) {
			t.Errorf("line for account %s not swapped: debit=%s credit=%s", line.AccountID, line.Debit, line.Credit)
		}
	}

	// 重复冲销被拒
	if _, err := env.svc.Reverse(ctx, batch.ID, "test-user-001"); !errors.Is(err, ErrAlreadyReversed) {
		t.Fatalf("second Reverse: expected ErrAlreadyReversed, got %v", err)
	}
}

func TestPostUnknownSourceType(t *testing.T) {
	env := setupPostingTest(t)

	_, err := env.svc.Post(context.Background(), "payroll", "whatever", "test-user-001")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListBatchesDateFilter(t *testing.T) {
	env := setupPostingTest(t)
	ctx := context.Background()

	makeBatch := func(createdAt time.Time) string {
		t.Helper()
		batch := entity.PostingBatch{
			ID:         uuid.New().String()[:32],
			SourceType: entity.SourceTypeInvoice,
			SourceID:   uuid.New().String()[:32],
			Kind:       entity.BatchKindPosting,
			CreatedBy:  "test-user-001",
			CreatedAt:  createdAt,
		}
		if err := env.db.Create(&batch).Error; err != nil {
			t.Fatalf("create batch: %v", err)
		}
		return batch.ID
	}
	early := makeBatch(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	late := makeBatch(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))

	items, total, err := env.repos.Posting.ListBatches(ctx, 1, 20, map[string]string{
		"date_from": "2026-02-01",
		"date_to":   "2026-04-01",
	})
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected 1 batch in range, got total=%d len=%d", total, len(items))
	}
	if items[0].ID != late {
		t.Errorf("expected batch %s, got %s", late, items[0].ID)
	}

	// 上界为开区间
	items, _, err = env.repos.Posting.ListBatches(ctx, 1, 20, map[string]string{
		"date_to": "2026-02-01",
	})
	if err != nil {
		t.Fatalf("ListBatches: %v", err)
	}
	if len(items) != 1 || items[0].ID != early {
		t.Fatalf("expected only batch %s before 2026-02-01, got %d items", early, len(items))
	}
}
