package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettlementRepository 结算单仓库
type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

// Create 在事务内创建结算单
func (r *SettlementRepository) Create(tx *gorm.DB, s *entity.SettlementRecord) error {
	return tx.Create(s).Error
}

// FindByID 根据ID查找结算单
func (r *SettlementRepository) FindByID(ctx context.Context, id string) (*entity.SettlementRecord, error) {
	var s entity.SettlementRecord
	err := r.db.WithContext(ctx).
		Preload("Payments").
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByIDForUpdate 在事务内加行锁读取结算单，支付登记的读改写依赖该锁串行化
func (r *SettlementRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*entity.SettlementRecord, error) {
	var s entity.SettlementRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// FindByPeriod 查找某期间的结算单（每期间至多一张活动结算单）
func (r *SettlementRepository) FindByPeriod(ctx context.Context, period string) (*entity.SettlementRecord, error) {
	var s entity.SettlementRecord
	err := r.db.WithContext(ctx).
		Preload("Payments").
		Where("period = ?", period).
		Order("created_at DESC").
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List 查询结算单列表
func (r *SettlementRepository) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.SettlementRecord, int64, error) {
	var items []entity.SettlementRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.SettlementRecord{})

	if period := filters["period"]; period != "" {
		query = query.Where("period = ?", period)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if direction := filters["direction"]; direction != "" {
		query = query.Where("direction = ?", direction)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Payments").
		Order("period DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// Update 更新结算单
func (r *SettlementRepository) Update(ctx context.Context, s *entity.SettlementRecord) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// AddPayment 在事务内登记一笔支付并保存结算单的累计字段
func (r *SettlementRepository) AddPayment(tx *gorm.DB, s *entity.SettlementRecord, p *entity.SettlementPayment) error {
	if err := tx.Create(p).Error; err != nil {
		return err
	}
	return tx.Model(&entity.SettlementRecord{}).
		Where("id = ?", s.ID).
		Updates(map[string]interface{}{
			"total_paid_to_date": s.TotalPaidToDate,
			"outstanding_amount": s.OutstandingAmount,
			"status":             s.Status,
			"updated_at":         s.UpdatedAt,
		}).Error
}
