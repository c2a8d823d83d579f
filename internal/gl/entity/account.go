package entity

import "time"

// 科目类型
const (
	AccountTypeAsset     = "asset"
	AccountTypeLiability = "liability"
	AccountTypeIncome    = "income"
	AccountTypeExpense   = "expense"
	AccountTypeEquity    = "equity"
)

// 科目分类：group 为汇总节点，detail 为可过账叶子
const (
	AccountCategoryGroup  = "group"
	AccountCategoryDetail = "detail"
)

// 内建控制科目编码。启动时种子写入，结算引擎按编码定位，
// 不允许停用或删除。
const (
	AccountCodeVATOutput      = "2221.01" // 应交增值税-销项（负债，贷方自然方向）
	AccountCodeVATInput       = "1221.01" // 待抵扣进项税额（资产，借方自然方向）
	AccountCodeSettlementCash = "1002.01" // 结算银行存款
)

// Account 会计科目（树形科目表节点）
type Account struct {
	ID       string  `json:"id" gorm:"primaryKey;size:32"`
	Code     string  `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Name     string  `json:"name" gorm:"size:128;not null"`
	Type     string  `json:"type" gorm:"size:16;not null"`                    // asset/liability/income/expense/equity
	Category string  `json:"category" gorm:"size:16;not null;default:detail"` // group/detail
	ParentID *string `json:"parent_id" gorm:"size:32;index"`
	IsActive bool    `json:"is_active" gorm:"default:true"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联（父节点仅决定展示层级，不拥有子节点生命周期）
	Children []Account `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}

func (Account) TableName() string {
	return "gl_accounts"
}

// Postable 是否允许过账（仅 detail 且启用的科目可过账）
func (a *Account) Postable() bool {
	return a.Category == AccountCategoryDetail && a.IsActive
}
