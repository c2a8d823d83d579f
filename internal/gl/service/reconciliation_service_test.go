package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/bitfantasy/nimo-fin/internal/gl/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type reconTestEnv struct {
	db         *gorm.DB
	repos      *repository.Repositories
	posting    *PostingService
	recon      *ReconciliationService
	receivable *entity.Account
	revenue    *entity.Account
	costCenter *entity.DimensionValue
}

func setupReconTest(t *testing.T) *reconTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	receivable := testutil.SeedAccount(t, db, "1122", "应收账款", entity.AccountTypeAsset)
	revenue := testutil.SeedAccount(t, db, "6001", "主营业务收入", entity.AccountTypeIncome)

	ccType := testutil.SeedDimensionType(t, db, entity.DimensionCostCenter, "成本中心", false)
	cc := testutil.SeedDimensionValue(t, db, ccType.ID, "cc-001", "研发中心")

	return &reconTestEnv{
		db:         db,
		repos:      repos,
		posting:    NewPostingService(db, repos, zap.NewNop()),
		recon:      NewReconciliationService(db, repos, nil, 10*time.Minute),
		receivable: receivable,
		revenue:    revenue,
		costCenter: cc,
	}
}

func TestReconcileSalesRevenueClean(t *testing.T) {
	env := setupReconTest(t)
	ctx := context.Background()

	inv := testutil.SeedInvoice(t, env.db, "1000.00",
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)
	if _, err := env.posting.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001"); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	record, err := env.recon.Reconcile(ctx, "2026-01", "sales_revenue", "test-user-001")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if !record.SourceTotal.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("SourceTotal = %s, want 1000.00", record.SourceTotal)
	}
	if !record.LedgerTotal.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("LedgerTotal = %s, want 1000.00", record.LedgerTotal)
	}
	if !record.Variance.IsZero() {
		t.Errorf("Variance = %s, want 0", record.Variance)
	}
	if !record.IsReconciled {
		t.Error("expected record to be reconciled")
	}

	// 成本中心维度行存在且匹配
	foundCC := false
	for _, row := range record.Rows {
		if row.DimensionTypeCode == entity.DimensionCostCenter && row.DimensionValueID == env.costCenter.ID {
			foundCC = true
			if row.MatchStatus != entity.ReconRowMatched {
				t.Errorf("cost_center row status = %q, want matched", row.MatchStatus)
			}
			if !row.IsReconciled {
				t.Error("cost_center row not reconciled")
			}
		}
	}
	if !foundCC {
		t.Error("missing cost_center dimension row")
	}
}

func TestReconcileDraftShowsVariance(t *testing.T) {
	env := setupReconTest(t)
	ctx := context.Background()

	posted := testutil.SeedInvoice(t, env.db, "1000.00",
		time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)
	if _, err := env.posting.Post(ctx, entity.SourceTypeInvoice, posted.ID, "test-user-001"); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	// 草稿单据计入源合计但没有分录
	testutil.SeedInvoice(t, env.db, "500.00",
		time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)

	record, err := env.recon.Reconcile(ctx, "2026-01", "sales_revenue", "test-user-001")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if !record.SourceTotal.Equal(decimal.RequireFromString("1500.00")) {
		t.Errorf("SourceTotal = %s, want 1500.00", record.SourceTotal)
	}
	if !record.LedgerTotal.Equal(decimal.RequireFromString("1000.00")) {
		t.Errorf("LedgerTotal = %s, want 1000.00", record.LedgerTotal)
	}
	if !record.Variance.Equal(decimal.RequireFromString("500.00")) {
		t.Errorf("Variance = %s, want 500.00", record.Variance)
	}
	if record.IsReconciled {
		t.Error("expected record to be unreconciled")
	}
}

func TestReconcileOutsidePeriodExcluded(t *testing.T) {
	env := setupReconTest(t)
	ctx := context.Background()

	inv := testutil.SeedInvoice(t, env.db, "1000.00",
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)
	if _, err := env.posting.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001"); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	record, err := env.recon.Reconcile(ctx, "2026-01", "sales_revenue", "test-user-001")
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !record.SourceTotal.IsZero() || !record.LedgerTotal.IsZero() {
		t.Errorf("February activity leaked into January: src=%s led=%s", record.SourceTotal, record.LedgerTotal)
	}
	if !record.IsReconciled {
		t.Error("empty period should reconcile")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	env := setupReconTest(t)
	ctx := context.Background()

	inv := testutil.SeedInvoice(t, env.db, "750.00",
		time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)
	if _, err := env.posting.Post(ctx, entity.SourceTypeInvoice, inv.ID, "test-user-001"); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	first, err := env.recon.Reconcile(ctx, "2026-01", "sales_revenue", "test-user-001")
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	second, err := env.recon.Reconcile(ctx, "2026-01", "sales_revenue", "test-user-001")
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}

	if !first.SourceTotal.Equal(second.SourceTotal) || !first.Variance.Equal(second.Variance) {
		t.Error("repeated reconcile produced different results on unchanged data")
	}

	// 同 (period, scope) 只保留最新记录
	var count int64
	env.db.Model(&entity.ReconciliationRecord{}).
		Where("period = ? AND scope = ?", "2026-01", "sales_revenue").
		Count(&count)
	if count != 1 {
		t.Errorf("expected 1 record, got %d", count)
	}
}

func TestReconcileUnknownScope(t *testing.T) {
	env := setupReconTest(t)

	_, err := env.recon.Reconcile(context.Background(), "2026-01", "payroll", "test-user-001")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVariancesRejectsNegativeThreshold(t *testing.T) {
	env := setupReconTest(t)

	_, err := env.recon.Variances(context.Background(), "2026-01", decimal.RequireFromString("-1"))
	if !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestVariancesFiltersByThreshold(t *testing.T) {
	env := setupReconTest(t)
	ctx := context.Background()

	posted := testutil.SeedInvoice(t, env.db, "1000.00",
		time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)
	if _, err := env.posting.Post(ctx, entity.SourceTypeInvoice, posted.ID, "test-user-001"); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	testutil.SeedInvoice(t, env.db, "500.00",
		time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC),
		env.receivable.ID, env.revenue.ID, &env.costCenter.ID)

	if _, err := env.recon.Reconcile(ctx, "2026-01", "sales_revenue", "test-user-001"); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	items, err := env.recon.Variances(ctx, "2026-01", decimal.RequireFromString("100.00"))
	if err != nil {
		t.Fatalf("Variances failed: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected variance items above threshold")
	}
	for _, item := range items {
		if item.Variance.LessThan(decimal.RequireFromString("100.00")) {
			t.Errorf("item below threshold leaked: %s", item.Variance)
		}
	}

	// 高阈值过滤掉全部差异
	items, err = env.recon.Variances(ctx, "2026-01", decimal.RequireFromString("10000.00"))
	if err != nil {
		t.Fatalf("Variances failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}
