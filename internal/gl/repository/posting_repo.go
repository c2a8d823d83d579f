package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PostingRepository 过账批次与总账分录仓库
type PostingRepository struct {
	db *gorm.DB
}

func NewPostingRepository(db *gorm.DB) *PostingRepository {
	return &PostingRepository{db: db}
}

// CreateBatch 在事务内创建批次及其分录行（分录行随批次级联写入）
func (r *PostingRepository) CreateBatch(tx *gorm.DB, batch *entity.PostingBatch) error {
	return tx.Create(batch).Error
}

// CreateAssignments 在事务内创建维度分配
func (r *PostingRepository) CreateAssignments(tx *gorm.DB, assignments []entity.DimensionAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	return tx.Create(&assignments).Error
}

// FindBatchByID 查找批次（含分录行与维度分配）
func (r *PostingRepository) FindBatchByID(ctx context.Context, id string) (*entity.PostingBatch, error) {
	var b entity.PostingBatch
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Lines.Account").
		Preload("Lines.Assignments").
		Where("id = ?", id).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// FindPostingBatchBySource 查找某源单据的原始过账批次（不含冲销批次）
func (r *PostingRepository) FindPostingBatchBySource(ctx context.Context, sourceType, sourceID string) (*entity.PostingBatch, error) {
	var b entity.PostingBatch
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Lines.Assignments").
		Where("source_type = ? AND source_id = ? AND kind = ?", sourceType, sourceID, entity.BatchKindPosting).
		First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListBatches 查询批次列表
func (r *PostingRepository) ListBatches(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PostingBatch, int64, error) {
	var items []entity.PostingBatch
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PostingBatch{})

	if sourceType := filters["source_type"]; sourceType != "" {
		query = query.Where("source_type = ?", sourceType)
	}
	if sourceID := filters["source_id"]; sourceID != "" {
		query = query.Where("source_id = ?", sourceID)
	}
	if kind := filters["kind"]; kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if from := filters["date_from"]; from != "" {
		query = query.Where("created_at >= ?", from)
	}
	if to := filters["date_to"]; to != "" {
		query = query.Where("created_at < ?", to)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Lines").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// CountBatchesBySource 某源单据的原始过账批次数
func (r *PostingRepository) CountBatchesBySource(ctx context.Context, sourceType, sourceID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.PostingBatch{}).
		Where("source_type = ? AND source_id = ? AND kind = ?", sourceType, sourceID, entity.BatchKindPosting).
		Count(&count).Error
	return count, err
}

// AccountNet 某科目在期间内已过账分录的净额。
// creditNatural=true 返回 贷-借（负债/收入类），否则返回 借-贷。
func (r *PostingRepository) AccountNet(ctx context.Context, accountID string, creditNatural bool, from, to time.Time) (decimal.Decimal, error) {
	expr := "COALESCE(SUM(debit - credit), 0)"
	if creditNatural {
		expr = "COALESCE(SUM(credit - debit), 0)"
	}

	var net decimal.Decimal
	row := r.db.WithContext(ctx).
		Model(&entity.LedgerLine{}).
		Select(expr).
		Where("account_id = ? AND entry_date >= ? AND entry_date < ?", accountID, from, to).
		Row()
	if err := row.Scan(&net); err != nil {
		return decimal.Zero, err
	}
	return net, nil
}

// LedgerTotals 汇总某源类型在期间内已过账的金额：按科目大类取自然方向净额，
// 总计 + 按维度值分组。冲销批次自然抵减。
func (r *PostingRepository) LedgerTotals(ctx context.Context, sourceType, accountType string, creditNatural bool, from, to time.Time) (decimal.Decimal, map[DimKey]decimal.Decimal, error) {
	expr := "COALESCE(SUM(l.debit - l.credit), 0)"
	if creditNatural {
		expr = "COALESCE(SUM(l.credit - l.debit), 0)"
	}

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Table("gl_ledger_lines l").
			Joins("JOIN gl_accounts a ON a.id = l.account_id").
			Where("l.source_type = ? AND a.type = ? AND l.entry_date >= ? AND l.entry_date < ?",
				sourceType, accountType, from, to)
	}

	var total decimal.Decimal
	row := base().Select(expr).Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, nil, err
	}

	var rows []struct {
		TypeCode string
		ValueID  string
		Total    decimal.Decimal
	}
	err := base().
		Select("d.type_code AS type_code, d.value_id AS value_id, " + expr + " AS total").
		Joins("JOIN gl_dimension_assignments d ON d.line_id = l.id").
		Group("d.type_code, d.value_id").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, nil, err
	}

	byDim := make(map[DimKey]decimal.Decimal, len(rows))
	for _, g := range rows {
		byDim[DimKey{TypeCode: g.TypeCode, ValueID: g.ValueID}] = g.Total
	}

	return total, byDim, nil
}

// BankLedgerTotals 汇总银行流水在期间内过账到其银行科目一侧的金额。
// 通过回连源单据表精确取银行账户侧的分录行。
func (r *PostingRepository) BankLedgerTotals(ctx context.Context, direction string, from, to time.Time) (decimal.Decimal, map[DimKey]decimal.Decimal, error) {
	expr := "COALESCE(SUM(l.debit - l.credit), 0)"
	if direction == entity.BankDirectionOut {
		expr = "COALESCE(SUM(l.credit - l.debit), 0)"
	}

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Table("gl_ledger_lines l").
			Joins("JOIN gl_bank_transactions b ON b.id = l.source_id AND l.account_id = b.bank_account_id").
			Where("l.source_type = ? AND b.direction = ? AND l.entry_date >= ? AND l.entry_date < ?",
				entity.SourceTypeBankTransaction, direction, from, to)
	}

	var total decimal.Decimal
	row := base().Select(expr).Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, nil, err
	}

	var rows []struct {
		TypeCode string
		ValueID  string
		Total    decimal.Decimal
	}
	err := base().
		Select("d.type_code AS type_code, d.value_id AS value_id, " + expr + " AS total").
		Joins("JOIN gl_dimension_assignments d ON d.line_id = l.id").
		Group("d.type_code, d.value_id").
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, nil, err
	}

	byDim := make(map[DimKey]decimal.Decimal, len(rows))
	for _, g := range rows {
		byDim[DimKey{TypeCode: g.TypeCode, ValueID: g.ValueID}] = g.Total
	}

	return total, byDim, nil
}
