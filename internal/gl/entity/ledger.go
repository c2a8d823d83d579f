package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 批次种类
const (
	BatchKindPosting  = "posting"
	BatchKindReversal = "reversal"
)

// PostingBatch 过账批次：一张源单据产生的一组平衡分录
// 同一源单据最多存在一个 kind=posting 的批次（部分唯一索引保证）。
type PostingBatch struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	SourceType string `json:"source_type" gorm:"size:32;not null;index:idx_gl_batches_source"`
	SourceID   string `json:"source_id" gorm:"size:32;not null;index:idx_gl_batches_source"`
	Kind       string `json:"kind" gorm:"size:16;not null;default:posting"` // posting/reversal

	// 冲销批次回指原批次
	ReversesBatchID *string `json:"reverses_batch_id" gorm:"size:32;index"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`

	Lines []LedgerLine `json:"lines,omitempty" gorm:"foreignKey:BatchID"`
}

func (PostingBatch) TableName() string {
	return "gl_posting_batches"
}

// LedgerLine 总账分录行。创建后不可变：更正以新批次新行表达。
// Debit 与 Credit 恰有一个非零。
type LedgerLine struct {
	ID        string          `json:"id" gorm:"primaryKey;size:32"`
	BatchID   string          `json:"batch_id" gorm:"size:32;not null;index"`
	AccountID string          `json:"account_id" gorm:"size:32;not null;index"`
	Debit     decimal.Decimal `json:"debit" gorm:"type:decimal(15,2);not null;default:0"`
	Credit    decimal.Decimal `json:"credit" gorm:"type:decimal(15,2);not null;default:0"`

	// 冗余源单据信息，供按期间/类型聚合
	SourceType string    `json:"source_type" gorm:"size:32;not null;index"`
	SourceID   string    `json:"source_id" gorm:"size:32;not null;index"`
	EntryDate  time.Time `json:"entry_date" gorm:"not null;index"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`

	Account     *Account              `json:"account,omitempty" gorm:"foreignKey:AccountID"`
	Assignments []DimensionAssignment `json:"assignments,omitempty" gorm:"foreignKey:LineID"`
}

func (LedgerLine) TableName() string {
	return "gl_ledger_lines"
}

// DimensionAssignment 分录行与维度值的关联。
// 每行每维度类型最多一条（唯一索引）；值被停用后关联仍保留。
type DimensionAssignment struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	LineID   string `json:"line_id" gorm:"size:32;not null;uniqueIndex:uq_gl_dim_assign_line_type"`
	TypeCode string `json:"type_code" gorm:"size:32;not null;uniqueIndex:uq_gl_dim_assign_line_type"`
	ValueID  string `json:"value_id" gorm:"size:32;not null;index"`

	CreatedAt time.Time `json:"created_at"`

	Value *DimensionValue `json:"value,omitempty" gorm:"foreignKey:ValueID"`
}

func (DimensionAssignment) TableName() string {
	return "gl_dimension_assignments"
}
