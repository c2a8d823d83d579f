package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SourceRepository 源单据仓库：统一访问各业务模块的单据表
type SourceRepository struct {
	db *gorm.DB
}

func NewSourceRepository(db *gorm.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// sourceTables 源单据类型 → 表名
var sourceTables = map[string]string{
	entity.SourceTypeInvoice:         "gl_invoices",
	entity.SourceTypePurchase:        "gl_purchases",
	entity.SourceTypeBankTransaction: "gl_bank_transactions",
	entity.SourceTypeDepreciationRun: "gl_depreciation_runs",
	entity.SourceTypeTaxSettlement:   "gl_tax_settlements",
}

// FindSource 按类型查找源单据
func (r *SourceRepository) FindSource(ctx context.Context, sourceType, id string) (entity.PostingSource, error) {
	var src entity.PostingSource
	var err error

	switch sourceType {
	case entity.SourceTypeInvoice:
		var m entity.Invoice
		err = r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
		src = &m
	case entity.SourceTypePurchase:
		var m entity.Purchase
		err = r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
		src = &m
	case entity.SourceTypeBankTransaction:
		var m entity.BankTransaction
		err = r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
		src = &m
	case entity.SourceTypeDepreciationRun:
		var m entity.DepreciationRun
		err = r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
		src = &m
	case entity.SourceTypeTaxSettlement:
		var m entity.TaxSettlement
		err = r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
		src = &m
	default:
		return nil, fmt.Errorf("unknown source type: %s", sourceType)
	}

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

// MarkPosted 在事务内对源单据做 draft→posted 的 compare-and-set。
// 返回 false 表示状态已不是 draft（并发过账或重复调用）。
func (r *SourceRepository) MarkPosted(tx *gorm.DB, sourceType, id, userID string, now time.Time) (bool, error) {
	table, ok := sourceTables[sourceType]
	if !ok {
		return false, fmt.Errorf("unknown source type: %s", sourceType)
	}

	result := tx.Table(table).
		Where("id = ? AND posting_status = ?", id, entity.PostingStatusDraft).
		Updates(map[string]interface{}{
			"posting_status": entity.PostingStatusPosted,
			"last_posted_at": now,
			"posted_by":      userID,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CreateInvoice 创建销售发票
func (r *SourceRepository) CreateInvoice(ctx context.Context, m *entity.Invoice) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListInvoices 查询发票列表
func (r *SourceRepository) ListInvoices(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Invoice, int64, error) {
	var items []entity.Invoice
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Invoice{})
	query = applySourceFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("txn_date DESC, code DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// CreatePurchase 创建采购单
func (r *SourceRepository) CreatePurchase(ctx context.Context, m *entity.Purchase) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListPurchases 查询采购单列表
func (r *SourceRepository) ListPurchases(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Purchase, int64, error) {
	var items []entity.Purchase
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Purchase{})
	query = applySourceFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("txn_date DESC, code DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// CreateBankTransaction 创建银行流水
func (r *SourceRepository) CreateBankTransaction(ctx context.Context, m *entity.BankTransaction) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListBankTransactions 查询银行流水列表
func (r *SourceRepository) ListBankTransactions(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.BankTransaction, int64, error) {
	var items []entity.BankTransaction
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.BankTransaction{})
	query = applySourceFilters(query, filters)
	if direction := filters["direction"]; direction != "" {
		query = query.Where("direction = ?", direction)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("txn_date DESC, code DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// CreateDepreciationRun 创建折旧计提批次
func (r *SourceRepository) CreateDepreciationRun(ctx context.Context, m *entity.DepreciationRun) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListDepreciationRuns 查询折旧批次列表
func (r *SourceRepository) ListDepreciationRuns(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.DepreciationRun, int64, error) {
	var items []entity.DepreciationRun
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.DepreciationRun{})
	query = applySourceFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("txn_date DESC, code DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// CreateTaxSettlement 在事务内创建税金结算单据
func (r *SourceRepository) CreateTaxSettlement(tx *gorm.DB, m *entity.TaxSettlement) error {
	return tx.Create(m).Error
}

// CountTaxSettlements 统计某前缀下的结算单据数（编码生成用）
func (r *SourceRepository) CountTaxSettlements(ctx context.Context, codePrefix string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.TaxSettlement{}).
		Where("code LIKE ?", codePrefix+"%").
		Count(&count).Error
	return count, err
}

// DimKey 维度聚合键
type DimKey struct {
	TypeCode string
	ValueID  string
}

// dimensionColumns 源单据表上的维度引用列
var dimensionColumns = map[string]string{
	entity.DimensionCostCenter: "cost_center_id",
	entity.DimensionProject:    "project_id",
	entity.DimensionDepartment: "department_id",
}

// SourceTotals 汇总某类型源单据在期间内的金额：总计 + 按维度值分组。
// 不论过账状态（draft 也计入）；draft 造成的差异正是对账要暴露的信号。
func (r *SourceRepository) SourceTotals(ctx context.Context, sourceType string, filters map[string]string, from, to time.Time) (decimal.Decimal, map[DimKey]decimal.Decimal, error) {
	table, ok := sourceTables[sourceType]
	if !ok {
		return decimal.Zero, nil, fmt.Errorf("unknown source type: %s", sourceType)
	}

	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Table(table).
			Where("txn_date >= ? AND txn_date < ?", from, to)
		for col, val := range filters {
			q = q.Where(col+" = ?", val)
		}
		return q
	}

	var total decimal.Decimal
	row := base().Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, nil, err
	}

	byDim := make(map[DimKey]decimal.Decimal)
	for typeCode, col := range dimensionColumns {
		var rows []struct {
			ValueID string
			Total   decimal.Decimal
		}
		err := base().
			Select(col+" AS value_id, COALESCE(SUM(amount), 0) AS total").
			Where(col + " IS NOT NULL").
			Group(col).
			Scan(&rows).Error
		if err != nil {
			return decimal.Zero, nil, err
		}
		for _, g := range rows {
			byDim[DimKey{TypeCode: typeCode, ValueID: g.ValueID}] = g.Total
		}
	}

	return total, byDim, nil
}

func applySourceFilters(query *gorm.DB, filters map[string]string) *gorm.DB {
	if status := filters["posting_status"]; status != "" {
		query = query.Where("posting_status = ?", status)
	}
	if from := filters["from"]; from != "" {
		query = query.Where("txn_date >= ?", from)
	}
	if to := filters["to"]; to != "" {
		query = query.Where("txn_date < ?", to)
	}
	return query
}
