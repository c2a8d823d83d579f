package service

import (
	"fmt"

	"github.com/bitfantasy/nimo-fin/internal/gl/entity"
	"github.com/shopspring/decimal"
)

// LineSpec 待生成的一行分录。Debit/Credit 恰有一个非零。
type LineSpec struct {
	AccountID string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// PostingRule 过账规则：单据类型 → 分录构造方式。
// 所有类型的规则集中在一张表里，不散落在过账流程中。
type PostingRule struct {
	// DeclaredDimensions 该单据类型声明参与必填校验的维度类型编码
	DeclaredDimensions []string
	// BuildLines 由源单据构造分录行。借贷双方取自同一个金额变量，
	// 平衡由构造保证，而非事后累加校验。
	BuildLines func(src entity.PostingSource) ([]LineSpec, error)
}

var allDimensions = []string{
	entity.DimensionCostCenter,
	entity.DimensionProject,
	entity.DimensionDepartment,
}

// postingRules 过账规则表
var postingRules = map[string]PostingRule{
	entity.SourceTypeInvoice: {
		DeclaredDimensions: allDimensions,
		BuildLines: func(src entity.PostingSource) ([]LineSpec, error) {
			inv := src.(*entity.Invoice)
			// 借应收，贷收入
			return pairLines(inv.ReceivableAccountID, "receivable_account",
				inv.RevenueAccountID, "revenue_account", inv.Amount)
		},
	},
	entity.SourceTypePurchase: {
		DeclaredDimensions: allDimensions,
		BuildLines: func(src entity.PostingSource) ([]LineSpec, error) {
			p := src.(*entity.Purchase)
			// 借费用，贷应付
			return pairLines(p.ExpenseAccountID, "expense_account",
				p.PayableAccountID, "payable_account", p.Amount)
		},
	},
	entity.SourceTypeBankTransaction: {
		DeclaredDimensions: allDimensions,
		BuildLines: func(src entity.PostingSource) ([]LineSpec, error) {
			b := src.(*entity.BankTransaction)
			if b.Direction == entity.BankDirectionIn {
				// 入账：借银行，贷对方科目
				return pairLines(b.BankAccountID, "bank_account",
					b.CounterAccountID, "counter_account", b.Amount)
			}
			// 出账：借对方科目，贷银行
			return pairLines(b.CounterAccountID, "counter_account",
				b.BankAccountID, "bank_account", b.Amount)
		},
	},
	entity.SourceTypeDepreciationRun: {
		DeclaredDimensions: allDimensions,
		BuildLines: func(src entity.PostingSource) ([]LineSpec, error) {
			d := src.(*entity.DepreciationRun)
			// 借折旧费用，贷累计折旧
			return pairLines(d.ExpenseAccountID, "expense_account",
				d.AccumulatedAccountID, "accumulated_account", d.Amount)
		},
	},
	entity.SourceTypeTaxSettlement: {
		// 结算单据由引擎生成，不携带维度，不参与必填维度校验
		DeclaredDimensions: nil,
		BuildLines: func(src entity.PostingSource) ([]LineSpec, error) {
			return settlementLines(src.(*entity.TaxSettlement))
		},
	},
}

// pairLines 构造一借一贷两行。两行金额取自同一个变量，天然平衡。
func pairLines(debitAccountID, debitRole, creditAccountID, creditRole string, amount decimal.Decimal) ([]LineSpec, error) {
	if debitAccountID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAccountMapping, debitRole)
	}
	if creditAccountID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAccountMapping, creditRole)
	}
	return []LineSpec{
		{AccountID: debitAccountID, Debit: amount},
		{AccountID: creditAccountID, Credit: amount},
	}, nil
}

// settlementLines 构造结算单据的分录。
// 各行金额由两个独立输入及其差构成，平衡由算术保证。
func settlementLines(ts *entity.TaxSettlement) ([]LineSpec, error) {
	for role, id := range map[string]string{
		"payable_account":    ts.PayableAccountID,
		"receivable_account": ts.ReceivableAccountID,
		"cash_account":       ts.CashAccountID,
	} {
		if id == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingAccountMapping, role)
		}
	}

	// 借销项控制，贷进项控制；净额记入现金：
	// 应付大于应收贷现金，应收大于应付借现金。
	// 两者持平时净额为零，不生成现金行（每行恰有一边非零）。
	lines := []LineSpec{
		{AccountID: ts.PayableAccountID, Debit: ts.OutputAmount},
		{AccountID: ts.ReceivableAccountID, Credit: ts.InputAmount},
	}
	net := ts.OutputAmount.Sub(ts.InputAmount)
	switch {
	case net.IsPositive():
		lines = append(lines, LineSpec{AccountID: ts.CashAccountID, Credit: net})
	case net.IsNegative():
		lines = append(lines, LineSpec{AccountID: ts.CashAccountID, Debit: net.Neg()})
	}
	return lines, nil
}
