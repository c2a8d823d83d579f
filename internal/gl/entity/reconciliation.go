package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 对账行匹配状态
const (
	ReconRowMatched    = "matched"
	ReconRowSourceOnly = "source_only" // 维度键只出现在源单据侧
	ReconRowLedgerOnly = "ledger_only" // 维度键只出现在总账侧
)

// ReconciliationRecord 对账记录：某期间某口径下源单据合计与总账合计的比对
// 永远是派生数据，重算覆盖同 (period, scope) 的旧记录。
type ReconciliationRecord struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	Period string `json:"period" gorm:"size:7;not null;uniqueIndex:uq_gl_recon_period_scope"` // YYYY-MM
	Scope  string `json:"scope" gorm:"size:32;not null;uniqueIndex:uq_gl_recon_period_scope"`

	SourceTotal  decimal.Decimal `json:"source_total" gorm:"type:decimal(15,2);not null;default:0"`
	LedgerTotal  decimal.Decimal `json:"ledger_total" gorm:"type:decimal(15,2);not null;default:0"`
	Variance     decimal.Decimal `json:"variance" gorm:"type:decimal(15,2);not null;default:0"`
	IsReconciled bool            `json:"is_reconciled" gorm:"default:false"`

	ComputedAt time.Time `json:"computed_at"`
	ComputedBy string    `json:"computed_by" gorm:"size:32"`

	Rows []ReconciliationRow `json:"rows,omitempty" gorm:"foreignKey:RecordID"`
}

func (ReconciliationRecord) TableName() string {
	return "gl_reconciliation_records"
}

// ReconciliationRow 对账记录的单个维度键比对行
type ReconciliationRow struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	RecordID string `json:"record_id" gorm:"size:32;not null;index"`

	DimensionTypeCode string `json:"dimension_type_code" gorm:"size:32;not null"`
	DimensionValueID  string `json:"dimension_value_id" gorm:"size:32;not null"`

	SourceTotal decimal.Decimal `json:"source_total" gorm:"type:decimal(15,2);not null;default:0"`
	LedgerTotal decimal.Decimal `json:"ledger_total" gorm:"type:decimal(15,2);not null;default:0"`
	Variance    decimal.Decimal `json:"variance" gorm:"type:decimal(15,2);not null;default:0"`

	MatchStatus  string `json:"match_status" gorm:"size:16;not null;default:matched"` // matched/source_only/ledger_only
	IsReconciled bool   `json:"is_reconciled" gorm:"default:false"`
}

func (ReconciliationRow) TableName() string {
	return "gl_reconciliation_rows"
}
