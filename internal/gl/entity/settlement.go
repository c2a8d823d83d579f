package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 结算单支付状态
const (
	SettlementStatusUnpaid  = "unpaid"
	SettlementStatusPartial = "partial"
	SettlementStatusPaid    = "paid"
)

// SettlementRecord 期间税金结算单
// 由结算引擎创建，随部分支付增量更新；状态单调推进 unpaid→partial→paid。
type SettlementRecord struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	Period    string `json:"period" gorm:"size:7;not null;index"` // YYYY-MM
	Direction string `json:"direction" gorm:"size:8;not null"`    // payment/refund

	OutputTotal decimal.Decimal `json:"output_total" gorm:"type:decimal(15,2);not null"`
	InputTotal  decimal.Decimal `json:"input_total" gorm:"type:decimal(15,2);not null"`
	NetAmount   decimal.Decimal `json:"net_amount" gorm:"type:decimal(15,2);not null"`

	BatchID  string `json:"batch_id" gorm:"size:32;not null"`
	SourceID string `json:"source_id" gorm:"size:32;not null"` // 关联的税金结算单据

	TotalPaidToDate   decimal.Decimal `json:"total_paid_to_date" gorm:"type:decimal(15,2);not null;default:0"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount" gorm:"type:decimal(15,2);not null"`
	Status            string          `json:"status" gorm:"size:16;not null;default:unpaid"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Payments []SettlementPayment `json:"payments,omitempty" gorm:"foreignKey:SettlementID"`
}

func (SettlementRecord) TableName() string {
	return "gl_settlement_records"
}

// SettlementPayment 结算单的一笔部分支付
type SettlementPayment struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	SettlementID string          `json:"settlement_id" gorm:"size:32;not null;index"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	PaidAt       time.Time       `json:"paid_at"`
	RecordedBy   string          `json:"recorded_by" gorm:"size:32"`
	Notes        string          `json:"notes" gorm:"type:text"`
}

func (SettlementPayment) TableName() string {
	return "gl_settlement_payments"
}
