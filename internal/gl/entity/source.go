package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 源单据类型编码
const (
	SourceTypeInvoice         = "invoice"
	SourceTypePurchase        = "purchase"
	SourceTypeBankTransaction = "bank_transaction"
	SourceTypeDepreciationRun = "depreciation_run"
	SourceTypeTaxSettlement   = "tax_settlement"
)

// 过账状态
const (
	PostingStatusDraft  = "draft"
	PostingStatusPosted = "posted"
	PostingStatusError  = "error"
)

// PostingState 源单据的过账状态字段（嵌入各业务单据）
// 状态只经过账引擎以 draft→posted 的 compare-and-set 推进，业务模块不改写。
type PostingState struct {
	PostingStatus string     `json:"posting_status" gorm:"size:16;not null;default:draft;index"`
	LastPostedAt  *time.Time `json:"last_posted_at"`
	PostedBy      string     `json:"posted_by" gorm:"size:32"`
}

// DimensionRef 源单据上的一个维度引用
type DimensionRef struct {
	TypeCode string
	ValueID  string
}

// PostingSource 过账引擎接受的源单据能力接口
// 各业务单据类型实现该接口，引擎不依赖具体类型。
type PostingSource interface {
	SourceType() string
	SourceID() string
	PostingAmount() decimal.Decimal
	EntryDate() time.Time
	DimensionRefs() []DimensionRef
	Status() string
}

// 银行流水方向
const (
	BankDirectionIn  = "in"
	BankDirectionOut = "out"
)

// Invoice 销售发票（应收 + 收入）
type Invoice struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	Code         string          `json:"code" gorm:"size:32;uniqueIndex;not null"`
	CustomerName string          `json:"customer_name" gorm:"size:128"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	TxnDate      time.Time       `json:"txn_date" gorm:"not null;index"`

	// 过账科目映射
	ReceivableAccountID string `json:"receivable_account_id" gorm:"size:32"`
	RevenueAccountID    string `json:"revenue_account_id" gorm:"size:32"`

	// 维度引用
	CostCenterID *string `json:"cost_center_id" gorm:"size:32;index"`
	ProjectID    *string `json:"project_id" gorm:"size:32;index"`
	DepartmentID *string `json:"department_id" gorm:"size:32;index"`

	PostingState

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Invoice) TableName() string { return "gl_invoices" }

func (i *Invoice) SourceType() string             { return SourceTypeInvoice }
func (i *Invoice) SourceID() string               { return i.ID }
func (i *Invoice) PostingAmount() decimal.Decimal { return i.Amount }
func (i *Invoice) EntryDate() time.Time           { return i.TxnDate }
func (i *Invoice) Status() string                 { return i.PostingStatus }
func (i *Invoice) DimensionRefs() []DimensionRef {
	return dimensionRefs(i.CostCenterID, i.ProjectID, i.DepartmentID)
}

// Purchase 采购单（费用 + 应付）
type Purchase struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	Code         string          `json:"code" gorm:"size:32;uniqueIndex;not null"`
	SupplierName string          `json:"supplier_name" gorm:"size:128"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	TxnDate      time.Time       `json:"txn_date" gorm:"not null;index"`

	PayableAccountID string `json:"payable_account_id" gorm:"size:32"`
	ExpenseAccountID string `json:"expense_account_id" gorm:"size:32"`

	CostCenterID *string `json:"cost_center_id" gorm:"size:32;index"`
	ProjectID    *string `json:"project_id" gorm:"size:32;index"`
	DepartmentID *string `json:"department_id" gorm:"size:32;index"`

	PostingState

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Purchase) TableName() string { return "gl_purchases" }

func (p *Purchase) SourceType() string             { return SourceTypePurchase }
func (p *Purchase) SourceID() string               { return p.ID }
func (p *Purchase) PostingAmount() decimal.Decimal { return p.Amount }
func (p *Purchase) EntryDate() time.Time           { return p.TxnDate }
func (p *Purchase) Status() string                 { return p.PostingStatus }
func (p *Purchase) DimensionRefs() []DimensionRef {
	return dimensionRefs(p.CostCenterID, p.ProjectID, p.DepartmentID)
}

// BankTransaction 银行流水。direction=in 借银行贷对方科目，out 反之。
type BankTransaction struct {
	ID        string          `json:"id" gorm:"primaryKey;size:32"`
	Code      string          `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	Direction string          `json:"direction" gorm:"size:8;not null"` // in/out
	TxnDate   time.Time       `json:"txn_date" gorm:"not null;index"`

	BankAccountID    string `json:"bank_account_id" gorm:"size:32"`
	CounterAccountID string `json:"counter_account_id" gorm:"size:32"`

	CostCenterID *string `json:"cost_center_id" gorm:"size:32;index"`
	ProjectID    *string `json:"project_id" gorm:"size:32;index"`
	DepartmentID *string `json:"department_id" gorm:"size:32;index"`

	PostingState

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BankTransaction) TableName() string { return "gl_bank_transactions" }

func (b *BankTransaction) SourceType() string             { return SourceTypeBankTransaction }
func (b *BankTransaction) SourceID() string               { return b.ID }
func (b *BankTransaction) PostingAmount() decimal.Decimal { return b.Amount }
func (b *BankTransaction) EntryDate() time.Time           { return b.TxnDate }
func (b *BankTransaction) Status() string                 { return b.PostingStatus }
func (b *BankTransaction) DimensionRefs() []DimensionRef {
	return dimensionRefs(b.CostCenterID, b.ProjectID, b.DepartmentID)
}

// DepreciationRun 固定资产折旧计提批次
type DepreciationRun struct {
	ID        string          `json:"id" gorm:"primaryKey;size:32"`
	Code      string          `json:"code" gorm:"size:32;uniqueIndex;not null"`
	AssetName string          `json:"asset_name" gorm:"size:128"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	TxnDate   time.Time       `json:"txn_date" gorm:"not null;index"`

	ExpenseAccountID     string `json:"expense_account_id" gorm:"size:32"`     // 折旧费用（借）
	AccumulatedAccountID string `json:"accumulated_account_id" gorm:"size:32"` // 累计折旧（贷）

	CostCenterID *string `json:"cost_center_id" gorm:"size:32;index"`
	ProjectID    *string `json:"project_id" gorm:"size:32;index"`
	DepartmentID *string `json:"department_id" gorm:"size:32;index"`

	PostingState

	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DepreciationRun) TableName() string { return "gl_depreciation_runs" }

func (d *DepreciationRun) SourceType() string             { return SourceTypeDepreciationRun }
func (d *DepreciationRun) SourceID() string               { return d.ID }
func (d *DepreciationRun) PostingAmount() decimal.Decimal { return d.Amount }
func (d *DepreciationRun) EntryDate() time.Time           { return d.TxnDate }
func (d *DepreciationRun) Status() string                 { return d.PostingStatus }
func (d *DepreciationRun) DimensionRefs() []DimensionRef {
	return dimensionRefs(d.CostCenterID, d.ProjectID, d.DepartmentID)
}

// 结算方向
const (
	SettlementDirectionPayment = "payment"
	SettlementDirectionRefund  = "refund"
)

// TaxSettlement 税金结算单据。由结算引擎创建，过账产生三行分录。
type TaxSettlement struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	Code      string    `json:"code" gorm:"size:32;uniqueIndex;not null"`
	Period    string    `json:"period" gorm:"size:7;not null;index"` // YYYY-MM
	Direction string    `json:"direction" gorm:"size:8;not null"`    // payment/refund
	TxnDate   time.Time `json:"txn_date" gorm:"not null;index"`

	// 两个独立输入金额，净额为其差，三行分录由此构造
	OutputAmount decimal.Decimal `json:"output_amount" gorm:"type:decimal(15,2);not null"` // 销项（应付控制科目余额）
	InputAmount  decimal.Decimal `json:"input_amount" gorm:"type:decimal(15,2);not null"`  // 进项（应收控制科目余额）
	NetAmount    decimal.Decimal `json:"net_amount" gorm:"type:decimal(15,2);not null"`    // |output - input|

	PayableAccountID    string `json:"payable_account_id" gorm:"size:32"`
	ReceivableAccountID string `json:"receivable_account_id" gorm:"size:32"`
	CashAccountID       string `json:"cash_account_id" gorm:"size:32"`

	CostCenterID *string `json:"cost_center_id" gorm:"size:32;index"`
	ProjectID    *string `json:"project_id" gorm:"size:32;index"`
	DepartmentID *string `json:"department_id" gorm:"size:32;index"`

	PostingState

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TaxSettlement) TableName() string { return "gl_tax_settlements" }

func (t *TaxSettlement) SourceType() string             { return SourceTypeTaxSettlement }
func (t *TaxSettlement) SourceID() string               { return t.ID }
func (t *TaxSettlement) PostingAmount() decimal.Decimal { return t.NetAmount }
func (t *TaxSettlement) EntryDate() time.Time           { return t.TxnDate }
func (t *TaxSettlement) Status() string                 { return t.PostingStatus }
func (t *TaxSettlement) DimensionRefs() []DimensionRef {
	return dimensionRefs(t.CostCenterID, t.ProjectID, t.DepartmentID)
}

func dimensionRefs(costCenterID, projectID, departmentID *string) []DimensionRef {
	refs := make([]DimensionRef, 0, 3)
	if costCenterID != nil && *costCenterID != "" {
		refs = append(refs, DimensionRef{TypeCode: DimensionCostCenter, ValueID: *costCenterID})
	}
	if projectID != nil && *projectID != "" {
		refs = append(refs, DimensionRef{TypeCode: DimensionProject, ValueID: *projectID})
	}
	if departmentID != nil && *departmentID != "" {
		refs = append(refs, DimensionRef{TypeCode: DimensionDepartment, ValueID: *departmentID})
	}
	return refs
}
