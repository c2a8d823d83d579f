package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"gorm.io/gorm"
)

// AccountRepository 科目表仓库
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// FindAll 查询科目列表
func (r *AccountRepository) FindAll(ctx context.Context, filters map[string]string) ([]entity.Account, error) {
	var items []entity.Account

	query := r.db.WithContext(ctx).Model(&entity.Account{})

	if accountType := filters["type"]; accountType != "" {
		query = query.Where("type = ?", accountType)
	}
	if category := filters["category"]; category != "" {
		query = query.Where("category = ?", category)
	}
	if active := filters["is_active"]; active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	err := query.Order("code ASC").Find(&items).Error
	return items, err
}

// FindByID 根据ID查找科目
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*entity.Account, error) {
	var a entity.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindByCode 根据编码查找科目
func (r *AccountRepository) FindByCode(ctx context.Context, code string) (*entity.Account, error) {
	var a entity.Account
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindByIDs 批量查找科目
func (r *AccountRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Account, error) {
	var items []entity.Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	result := make(map[string]*entity.Account, len(items))
	for i := range items {
		result[items[i].ID] = &items[i]
	}
	return result, nil
}

// Create 创建科目
func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// Update 更新科目
func (r *AccountRepository) Update(ctx context.Context, a *entity.Account) error {
	return r.db.WithContext(ctx).Save(a).Error
}

// Deactivate 停用科目（不删除，保留历史分录完整性）
func (r *AccountRepository) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Account{}).
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

// Delete 删除科目。调用方必须先确认科目无分录、无下级。
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Account{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// HasLines 科目下是否存在分录行
func (r *AccountRepository) HasLines(ctx context.Context, accountID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.LedgerLine{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count > 0, err
}

// HasChildren 科目下是否存在子科目
func (r *AccountRepository) HasChildren(ctx context.Context, accountID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Account{}).
		Where("parent_id = ?", accountID).
		Count(&count).Error
	return count > 0, err
}
