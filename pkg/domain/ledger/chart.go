package ledger

// Well-known chart codes the settlement flow posts to.
const (
	CodeCash               = "1.1.01"
	CodeBanks              = "1.1.02"
	CodeAccountsReceivable = "1.1.03"
	CodeAccountsPayable    = "2.1.01"
	CodeSalesIncome        = "4.1.01"
	CodeFXGain             = "4.2.01"
	CodeOperatorCost       = "5.1.01"
	CodeGeneralExpense     = "6.1.01"
	CodeFXLoss             = "6.2.01"
)

// DefaultChart is the taxonomy seeded on a fresh store.
var DefaultChart = []ChartAccount{
	{Code: "1", Name: "Assets", Category: CategoryAsset, Active: true},
	{Code: "1.1", Name: "Current assets", Category: CategoryAsset, Subcategory: SubcategoryCurrent, ParentCode: "1", Active: true},
	{Code: CodeCash, Name: "Cash", Category: CategoryAsset, Subcategory: SubcategoryCurrent, ParentCode: "1.1", Leaf: true, Active: true},
	{Code: CodeBanks, Name: "Banks", Category: CategoryAsset, Subcategory: SubcategoryCurrent, ParentCode: "1.1", Leaf: true, Active: true},
	{Code: CodeAccountsReceivable, Name: "Accounts receivable", Category: CategoryAsset, Subcategory: SubcategoryCurrent, ParentCode: "1.1", Leaf: true, Active: true},
	{Code: "1.1.04", Name: "Card processor receivables", Category: CategoryAsset, Subcategory: SubcategoryCurrent, ParentCode: "1.1", Leaf: true, Active: true},
	{Code: "1.2", Name: "Non-current assets", Category: CategoryAsset, Subcategory: SubcategoryNonCurrent, ParentCode: "1", Active: true},
	{Code: "1.2.01", Name: "Fixed assets", Category: CategoryAsset, Subcategory: SubcategoryNonCurrent, ParentCode: "1.2", Leaf: true, Active: true},

	{Code: "2", Name: "Liabilities", Category: CategoryLiability, Active: true},
	{Code: "2.1", Name: "Current liabilities", Category: CategoryLiability, Subcategory: SubcategoryCurrent, ParentCode: "2", Active: true},
	{Code: CodeAccountsPayable, Name: "Accounts payable to operators", Category: CategoryLiability, Subcategory: SubcategoryCurrent, ParentCode: "2.1", Leaf: true, Active: true},
	{Code: "2.1.02", Name: "Taxes payable", Category: CategoryLiability, Subcategory: SubcategoryCurrent, ParentCode: "2.1", Leaf: true, Active: true},
	{Code: "2.2", Name: "Non-current liabilities", Category: CategoryLiability, Subcategory: SubcategoryNonCurrent, ParentCode: "2", Active: true},
	{Code: "2.2.01", Name: "Long-term loans", Category: CategoryLiability, Subcategory: SubcategoryNonCurrent, ParentCode: "2.2", Leaf: true, Active: true},

	{Code: "3", Name: "Equity", Category: CategoryEquity, Active: true},
	{Code: "3.1.01", Name: "Capital", Category: CategoryEquity, ParentCode: "3", Leaf: true, Active: true},
	{Code: "3.2.01", Name: "Retained earnings", Category: CategoryEquity, ParentCode: "3", Leaf: true, Active: true},

	{Code: "4", Name: "Income", Category: CategoryIncome, Active: true},
	{Code: CodeSalesIncome, Name: "Tourism sales", Category: CategoryIncome, ParentCode: "4", Leaf: true, Active: true},
	{Code: CodeFXGain, Name: "Exchange differences (gain)", Category: CategoryIncome, ParentCode: "4", Leaf: true, Active: true},

	{Code: "5", Name: "Costs", Category: CategoryCost, Active: true},
	{Code: CodeOperatorCost, Name: "Operator costs", Category: CategoryCost, ParentCode: "5", Leaf: true, Active: true},

	{Code: "6", Name: "Expenses", Category: CategoryExpense, Active: true},
	{Code: CodeGeneralExpense, Name: "General expenses", Category: CategoryExpense, ParentCode: "6", Leaf: true, Active: true},
	{Code: CodeFXLoss, Name: "Exchange differences (loss)", Category: CategoryExpense, ParentCode: "6", Leaf: true, Active: true},
}

// ResultLeafCode is the RESULTADO leaf a payment's result is recognized on.
func ResultLeafCode(p *Payment) string {
	switch {
	case p.IsCustomerCollection():
		return CodeSalesIncome
	case p.PayerType == PayerOperator:
		return CodeOperatorCost
	default:
		return CodeGeneralExpense
	}
}

// DefaultSettlementLeafCode is the chart leaf used when a payment was
// scheduled without a settlement account. Empty means no default exists.
func DefaultSettlementLeafCode(p *Payment) string {
	switch {
	case p.IsCustomerCollection():
		return CodeSalesIncome
	case p.IsOperatorPayment():
		return CodeOperatorCost
	case p.Direction == DirectionExpense:
		return CodeGeneralExpense
	}
	return ""
}

// CounterpartLeafCode is the receivable/payable leaf reduced on settlement,
// empty when the payment has no counterpart balance.
func CounterpartLeafCode(p *Payment) string {
	switch {
	case p.IsCustomerCollection():
		return CodeAccountsReceivable
	case p.IsOperatorPayment():
		return CodeAccountsPayable
	}
	return ""
}
