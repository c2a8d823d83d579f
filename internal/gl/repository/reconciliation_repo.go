package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"gorm.io/gorm"
)

// ReconciliationRepository 对账记录仓库
type ReconciliationRepository struct {
	db *gorm.DB
}

func NewReconciliationRepository(db *gorm.DB) *ReconciliationRepository {
	return &ReconciliationRepository{db: db}
}

// Replace 覆盖写入对账记录：同 (period, scope) 的旧记录连同明细行一并删除后重建
func (r *ReconciliationRepository) Replace(ctx context.Context, record *entity.ReconciliationRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old entity.ReconciliationRecord
		err := tx.Where("period = ? AND scope = ?", record.Period, record.Scope).First(&old).Error
		if err == nil {
			if err := tx.Where("record_id = ?", old.ID).Delete(&entity.ReconciliationRow{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&old).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(record).Error
	})
}

// FindByPeriodScope 查找对账记录
func (r *ReconciliationRepository) FindByPeriodScope(ctx context.Context, period, scope string) (*entity.ReconciliationRecord, error) {
	var rec entity.ReconciliationRecord
	err := r.db.WithContext(ctx).
		Preload("Rows").
		Where("period = ? AND scope = ?", period, scope).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindByID 根据ID查找对账记录
func (r *ReconciliationRepository) FindByID(ctx context.Context, id string) (*entity.ReconciliationRecord, error) {
	var rec entity.ReconciliationRecord
	err := r.db.WithContext(ctx).
		Preload("Rows").
		Where("id = ?", id).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// List 查询对账记录列表
func (r *ReconciliationRepository) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.ReconciliationRecord, int64, error) {
	var items []entity.ReconciliationRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.ReconciliationRecord{})

	if period := filters["period"]; period != "" {
		query = query.Where("period = ?", period)
	}
	if scope := filters["scope"]; scope != "" {
		query = query.Where("scope = ?", scope)
	}
	if reconciled := filters["is_reconciled"]; reconciled != "" {
		query = query.Where("is_reconciled = ?", reconciled == "true")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Rows").
		Order("period DESC, scope ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}
