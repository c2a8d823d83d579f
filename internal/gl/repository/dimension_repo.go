package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"gorm.io/gorm"
)

// DimensionRepository 维度目录仓库
type DimensionRepository struct {
	db *gorm.DB
}

func NewDimensionRepository(db *gorm.DB) *DimensionRepository {
	return &DimensionRepository{db: db}
}

// FindTypes 查询维度类型列表
func (r *DimensionRepository) FindTypes(ctx context.Context) ([]entity.DimensionType, error) {
	var items []entity.DimensionType
	err := r.db.WithContext(ctx).Order("code ASC").Find(&items).Error
	return items, err
}

// FindTypeByCode 根据编码查找维度类型
func (r *DimensionRepository) FindTypeByCode(ctx context.Context, code string) (*entity.DimensionType, error) {
	var dt entity.DimensionType
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&dt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &dt, nil
}

// CreateType 创建维度类型
func (r *DimensionRepository) CreateType(ctx context.Context, dt *entity.DimensionType) error {
	return r.db.WithContext(ctx).Create(dt).Error
}

// FindValues 查询某维度类型下的维度值
func (r *DimensionRepository) FindValues(ctx context.Context, typeID string, activeOnly bool) ([]entity.DimensionValue, error) {
	var items []entity.DimensionValue
	query := r.db.WithContext(ctx).Where("type_id = ?", typeID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("code ASC").Find(&items).Error
	return items, err
}

// FindValueByID 根据ID查找维度值
func (r *DimensionRepository) FindValueByID(ctx context.Context, id string) (*entity.DimensionValue, error) {
	var dv entity.DimensionValue
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&dv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &dv, nil
}

// FindValuesByIDs 批量查找维度值
func (r *DimensionRepository) FindValuesByIDs(ctx context.Context, ids []string) (map[string]*entity.DimensionValue, error) {
	var items []entity.DimensionValue
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*entity.DimensionValue, len(items))
	for i := range items {
		result[items[i].ID] = &items[i]
	}
	return result, nil
}

// CreateValue 创建维度值
func (r *DimensionRepository) CreateValue(ctx context.Context, dv *entity.DimensionValue) error {
	return r.db.WithContext(ctx).Create(dv).Error
}

// DeactivateValue 停用维度值（历史分配保留，指向停用值）
func (r *DimensionRepository) DeactivateValue(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&entity.DimensionValue{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ValueInUse 维度值是否被分录行引用
func (r *DimensionRepository) ValueInUse(ctx context.Context, valueID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.DimensionAssignment{}).
		Where("value_id = ?", valueID).
		Count(&count).Error
	return count > 0, err
}
