package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/bitfantasy/nimo-fin/internal/gl/repository"
	"github.com/google/uuid"
)

// DimensionService 维度目录维护
type DimensionService struct {
	repos *repository.Repositories
}

func NewDimensionService(repos *repository.Repositories) *DimensionService {
	return &DimensionService{repos: repos}
}

// ListTypes 查询维度类型列表
func (s *DimensionService) ListTypes(ctx context.Context) ([]entity.DimensionType, error) {
	return s.repos.Dimension.FindTypes(ctx)
}

// GetTypeByCode 按编码查询维度类型
func (s *DimensionService) GetTypeByCode(ctx context.Context, code string) (*entity.DimensionType, error) {
	return s.repos.Dimension.FindTypeByCode(ctx, code)
}

// CreateTypeRequest 新建维度类型请求
type CreateTypeRequest struct {
	Code                string `json:"code" binding:"required"`
	Name                string `json:"name" binding:"required"`
	IsRequired          bool   `json:"is_required"`
	AllowMultipleValues bool   `json:"allow_multiple_values"`
	SupportsHierarchy   bool   `json:"supports_hierarchy"`
}

// CreateType 新建维度类型
func (s *DimensionService) CreateType(ctx context.Context, req *CreateTypeRequest) (*entity.DimensionType, error) {
	now := time.Now()
	dt := &entity.DimensionType{
		ID:                  uuid.New().String()[:32],
		Code:                req.Code,
		Name:                req.Name,
		IsRequired:          req.IsRequired,
		AllowMultipleValues: req.AllowMultipleValues,
		SupportsHierarchy:   req.SupportsHierarchy,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repos.Dimension.CreateType(ctx, dt); err != nil {
		return nil, err
	}
	return dt, nil
}

// ListValues 查询某类型下的维度值列表
func (s *DimensionService) ListValues(ctx context.Context, typeCode string, activeOnly bool) ([]entity.DimensionValue, error) {
	dt, err := s.repos.Dimension.FindTypeByCode(ctx, typeCode)
	if err != nil {
		return nil, err
	}
	return s.repos.Dimension.FindValues(ctx, dt.ID, activeOnly)
}

// CreateValueRequest 新建维度值请求
type CreateValueRequest struct {
	Code     string  `json:"code" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// CreateValue 新建维度值。层级上级只允许同类型，且类型须支持层级。
func (s *DimensionService) CreateValue(ctx context.Context, typeCode string, req *CreateValueRequest) (*entity.DimensionValue, error) {
	dt, err := s.repos.Dimension.FindTypeByCode(ctx, typeCode)
	if err != nil {
		return nil, err
	}

	if req.ParentID != nil && *req.ParentID != "" {
		if !dt.SupportsHierarchy {
			return nil, fmt.Errorf("dimension type %s does not support hierarchy", dt.Code)
		}
		parent, err := s.repos.Dimension.FindValueByID(ctx, *req.ParentID)
		if err != nil {
			return nil, fmt.Errorf("find parent dimension value: %w", err)
		}
		if parent.TypeID != dt.ID {
			return nil, fmt.Errorf("parent value %s belongs to another dimension type", parent.Code)
		}
	}

	now := time.Now()
	dv := &entity.DimensionValue{
		ID:        uuid.New().String()[:32],
		TypeID:    dt.ID,
		Code:      req.Code,
		Name:      req.Name,
		ParentID:  req.ParentID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Dimension.CreateValue(ctx, dv); err != nil {
		return nil, err
	}
	return dv, nil
}

// DeactivateValue 停用维度值。被分配引用过的值只能停用，历史分配保持有效。
func (s *DimensionService) DeactivateValue(ctx context.Context, id string) error {
	if _, err := s.repos.Dimension.FindValueByID(ctx, id); err != nil {
		return err
	}
	return s.repos.Dimension.DeactivateValue(ctx, id)
}

// GetValue 查询维度值
func (s *DimensionService) GetValue(ctx context.Context, id string) (*entity.DimensionValue, error) {
	return s.repos.Dimension.FindValueByID(ctx, id)
}
