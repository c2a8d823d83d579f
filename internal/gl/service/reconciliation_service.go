package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// 对账口径的总账取数方式
const (
	ledgerByAccountType = "account_type" // 按源类型+科目大类取自然方向净额
	ledgerByBankAccount = "bank_account" // 回连银行流水表取银行科目侧
)

// ReconScope 对账口径：源单据侧与总账侧的取数规则
type ReconScope struct {
	Code          string
	SourceType    string
	SourceFilters map[string]string
	LedgerQuery   string
	AccountType   string
	CreditNatural bool
	Direction     string
}

// reconScopes 对账口径表
var reconScopes = map[string]ReconScope{
	"sales_revenue": {
		Code:          "sales_revenue",
		SourceType:    entity.SourceTypeInvoice,
		LedgerQuery:   ledgerByAccountType,
		AccountType:   entity.AccountTypeIncome,
		CreditNatural: true,
	},
	"purchase_expense": {
		Code:        "purchase_expense",
		SourceType:  entity.SourceTypePurchase,
		LedgerQuery: ledgerByAccountType,
		AccountType: entity.AccountTypeExpense,
	},
	"depreciation": {
		Code:        "depreciation",
		SourceType:  entity.SourceTypeDepreciationRun,
		LedgerQuery: ledgerByAccountType,
		AccountType: entity.AccountTypeExpense,
	},
	"bank_in": {
		Code:          "bank_in",
		SourceType:    entity.SourceTypeBankTransaction,
		SourceFilters: map[string]string{"direction": entity.BankDirectionIn},
		LedgerQuery:   ledgerByBankAccount,
		Direction:     entity.BankDirectionIn,
	},
	"bank_out": {
		Code:          "bank_out",
		SourceType:    entity.SourceTypeBankTransaction,
		SourceFilters: map[string]string{"direction": entity.BankDirectionOut},
		LedgerQuery:   ledgerByBankAccount,
		Direction:     entity.BankDirectionOut,
	},
}

// ScopeCodes 已注册的对账口径编码
func ScopeCodes() []string {
	codes := make([]string, 0, len(reconScopes))
	for code := range reconScopes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ReconciliationService 对账引擎。只读比对，不修改任何分录或源单据。
type ReconciliationService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	rdb      *redis.Client
	cacheTTL time.Duration
}

func NewReconciliationService(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cacheTTL time.Duration) *ReconciliationService {
	return &ReconciliationService{db: db, repos: repos, rdb: rdb, cacheTTL: cacheTTL}
}

// Reconcile 重算某期间某口径的对账记录，覆盖旧记录。
// 幂等：同一数据状态下重复执行产生相同结果。
// draft 单据计入源合计但无分录，其差异是信号而非错误。
func (s *ReconciliationService) Reconcile(ctx context.Context, period, scope, userID string) (*entity.ReconciliationRecord, error) {
	from, to, err := ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	sc, ok := reconScopes[scope]
	if !ok {
		return nil, fmt.Errorf("%w: unknown reconciliation scope %q", ErrNotFound, scope)
	}

	sourceTotal, sourceDims, err := s.repos.Source.SourceTotals(ctx, sc.SourceType, sc.SourceFilters, from, to)
	if err != nil {
		return nil, err
	}

	var ledgerTotal decimal.Decimal
	var ledgerDims map[repository.DimKey]decimal.Decimal
	switch sc.LedgerQuery {
	case ledgerByBankAccount:
		ledgerTotal, ledgerDims, err = s.repos.Posting.BankLedgerTotals(ctx, sc.Direction, from, to)
	default:
		ledgerTotal, ledgerDims, err = s.repos.Posting.LedgerTotals(ctx, sc.SourceType, sc.AccountType, sc.CreditNatural, from, to)
	}
	if err != nil {
		return nil, err
	}

	record := buildRecord(period, scope, userID, sourceTotal, ledgerTotal, sourceDims, ledgerDims)
	if err := s.repos.Reconciliation.Replace(ctx, record); err != nil {
		return nil, err
	}

	s.cacheRecord(ctx, record)
	return record, nil
}

// Get 查询对账记录，优先命中缓存
func (s *ReconciliationService) Get(ctx context.Context, period, scope string) (*entity.ReconciliationRecord, error) {
	if _, _, err := ParsePeriod(period); err != nil {
		return nil, err
	}

	if s.rdb != nil {
		cached, err := s.rdb.Get(ctx, reconCacheKey(period, scope)).Result()
		if err == nil {
			var record entity.ReconciliationRecord
			if json.Unmarshal([]byte(cached), &record) == nil {
				return &record, nil
			}
		}
	}

	record, err := s.repos.Reconciliation.FindByPeriodScope(ctx, period, scope)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, record)
	return record, nil
}

// GetByID 根据ID查询对账记录
func (s *ReconciliationService) GetByID(ctx context.Context, id string) (*entity.ReconciliationRecord, error) {
	return s.repos.Reconciliation.FindByID(ctx, id)
}

// List 查询对账记录列表
func (s *ReconciliationService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ReconciliationRecord, int64, error) {
	return s.repos.Reconciliation.List(ctx, page, pageSize, filters)
}

// VarianceItem 差异报表行
type VarianceItem struct {
	Scope             string          `json:"scope"`
	DimensionTypeCode string          `json:"dimension_type_code,omitempty"`
	DimensionValueID  string          `json:"dimension_value_id,omitempty"`
	SourceTotal       decimal.Decimal `json:"source_total"`
	LedgerTotal       decimal.Decimal `json:"ledger_total"`
	Variance          decimal.Decimal `json:"variance"`
	MatchStatus       string          `json:"match_status"`
}

// Variances 某期间内差异不小于阈值的对账行（含口径总差异行）
func (s *ReconciliationService) Variances(ctx context.Context, period string, threshold decimal.Decimal) ([]VarianceItem, error) {
	if _, _, err := ParsePeriod(period); err != nil {
		return nil, err
	}
	if threshold.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidThreshold, threshold)
	}

	records, _, err := s.repos.Reconciliation.List(ctx, 1, len(reconScopes), map[string]string{"period": period})
	if err != nil {
		return nil, err
	}

	var items []VarianceItem
	for _, record := range records {
		if record.Variance.GreaterThanOrEqual(threshold) {
			items = append(items, VarianceItem{
				Scope:       record.Scope,
				SourceTotal: record.SourceTotal,
				LedgerTotal: record.LedgerTotal,
				Variance:    record.Variance,
				MatchStatus: entity.ReconRowMatched,
			})
		}
		for _, row := range record.Rows {
			if row.Variance.GreaterThanOrEqual(threshold) {
				items = append(items, VarianceItem{
					Scope:             record.Scope,
					DimensionTypeCode: row.DimensionTypeCode,
					DimensionValueID:  row.DimensionValueID,
					SourceTotal:       row.SourceTotal,
					LedgerTotal:       row.LedgerTotal,
					Variance:          row.Variance,
					MatchStatus:       row.MatchStatus,
				})
			}
		}
	}
	return items, nil
}

// VarianceWorkbook 导出差异报表为 Excel 工作簿
func (s *ReconciliationService) VarianceWorkbook(ctx context.Context, period string, threshold decimal.Decimal) (*excelize.File, error) {
	items, err := s.Variances(ctx, period, threshold)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "差异报表"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"口径", "维度类型", "维度值", "源单据合计", "总账合计", "差异", "匹配状态"}
	for i, title := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, title)
	}

	for row, item := range items {
		values := []interface{}{
			item.Scope,
			item.DimensionTypeCode,
			item.DimensionValueID,
			item.SourceTotal.String(),
			item.LedgerTotal.String(),
			item.Variance.String(),
			item.MatchStatus,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	return f, nil
}

// buildRecord 由两侧合计构造对账记录。
// 两侧都出现的维度键比差额；只出现在一侧的键显式报告为未匹配，不并入未知桶。
func buildRecord(period, scope, userID string, sourceTotal, ledgerTotal decimal.Decimal, sourceDims, ledgerDims map[repository.DimKey]decimal.Decimal) *entity.ReconciliationRecord {
	now := time.Now()
	record := &entity.ReconciliationRecord{
		ID:          uuid.New().String()[:32],
		Period:      period,
		Scope:       scope,
		SourceTotal: sourceTotal,
		LedgerTotal: ledgerTotal,
		Variance:    sourceTotal.Sub(ledgerTotal).Abs(),
		ComputedAt:  now,
		ComputedBy:  userID,
	}

	keys := make([]repository.DimKey, 0, len(sourceDims)+len(ledgerDims))
	seen := make(map[repository.DimKey]bool)
	for k := range sourceDims {
		keys = append(keys, k)
		seen[k] = true
	}
	for k := range ledgerDims {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TypeCode != keys[j].TypeCode {
			return keys[i].TypeCode < keys[j].TypeCode
		}
		return keys[i].ValueID < keys[j].ValueID
	})

	allReconciled := record.Variance.LessThan(ReconTolerance)
	for _, k := range keys {
		src, inSource := sourceDims[k]
		led, inLedger := ledgerDims[k]

		status := entity.ReconRowMatched
		if !inSource {
			status = entity.ReconRowLedgerOnly
		} else if !inLedger {
			status = entity.ReconRowSourceOnly
		}

		variance := src.Sub(led).Abs()
		reconciled := variance.LessThan(ReconTolerance)
		if !reconciled {
			allReconciled = false
		}

		record.Rows = append(record.Rows, entity.ReconciliationRow{
			ID:                uuid.New().String()[:32],
			RecordID:          record.ID,
			DimensionTypeCode: k.TypeCode,
			DimensionValueID:  k.ValueID,
			SourceTotal:       src,
			LedgerTotal:       led,
			Variance:          variance,
			MatchStatus:       status,
			IsReconciled:      reconciled,
		})
	}
	record.IsReconciled = allReconciled

	return record
}

func reconCacheKey(period, scope string) string {
	return "gl:recon:" + period + ":" + scope
}

func (s *ReconciliationService) cacheRecord(ctx context.Context, record *entity.ReconciliationRecord) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	s.rdb.Set(ctx, reconCacheKey(record.Period, record.Scope), data, s.cacheTTL)
}
