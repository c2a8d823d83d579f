package entity

import "time"

// 内置维度类型编码
const (
	DimensionCostCenter = "cost_center"
	DimensionProject    = "project"
	DimensionDepartment = "department"
)

// DimensionType 分析维度类型（成本中心/项目/部门等）
// 由管理端维护，核心引擎只读。
type DimensionType struct {
	ID                  string `json:"id" gorm:"primaryKey;size:32"`
	Code                string `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name                string `json:"name" gorm:"size:64;not null"`
	IsRequired          bool   `json:"is_required" gorm:"default:false"`
	AllowMultipleValues bool   `json:"allow_multiple_values" gorm:"default:false"`
	SupportsHierarchy   bool   `json:"supports_hierarchy" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Values []DimensionValue `json:"values,omitempty" gorm:"foreignKey:TypeID"`
}

func (DimensionType) TableName() string {
	return "gl_dimension_types"
}

// DimensionValue 维度值。停用而不删除：历史分配指向停用值仍然有效。
type DimensionValue struct {
	ID       string  `json:"id" gorm:"primaryKey;size:32"`
	TypeID   string  `json:"type_id" gorm:"size:32;not null;index"`
	Code     string  `json:"code" gorm:"size:32;not null;index"`
	Name     string  `json:"name" gorm:"size:128;not null"`
	ParentID *string `json:"parent_id" gorm:"size:32;index"` // 层级维度的上级值
	IsActive bool    `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Type *DimensionType `json:"type,omitempty" gorm:"foreignKey:TypeID"`
}

func (DimensionValue) TableName() string {
	return "gl_dimension_values"
}
