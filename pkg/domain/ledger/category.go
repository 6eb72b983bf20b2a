package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Category is the closed set of chart-of-accounts categories. The zero value
// is invalid so an unmapped row can never be mistaken for an asset.
type Category uint8

const (
	CategoryAsset Category = iota + 1
	CategoryLiability
	CategoryEquity
	CategoryIncome
	CategoryCost
	CategoryExpense
)

// Normal is the side on which a category's balance grows.
type Normal int8

const (
	// NormalStandard: INCOME and FX_GAIN add, everything else subtracts.
	NormalStandard Normal = 1
	// NormalInverted: the amount owed grows with outflows and shrinks with inflows.
	NormalInverted Normal = -1
)

type categoryInfo struct {
	name   string
	normal Normal
	result bool
}

var categories = [...]categoryInfo{
	CategoryAsset:     {name: "ASSET", normal: NormalStandard},
	CategoryLiability: {name: "LIABILITY", normal: NormalInverted},
	CategoryEquity:    {name: "EQUITY", normal: NormalInverted},
	CategoryIncome:    {name: "INCOME", normal: NormalStandard, result: true},
	CategoryCost:      {name: "COST", normal: NormalStandard, result: true},
	CategoryExpense:   {name: "EXPENSE", normal: NormalStandard, result: true},
}

// Categories lists every valid category in chart order.
func Categories() []Category {
	return []Category{CategoryAsset, CategoryLiability, CategoryEquity, CategoryIncome, CategoryCost, CategoryExpense}
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool { return c >= CategoryAsset && c <= CategoryExpense }

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("Category(%d)", uint8(c))
	}
	return categories[c].name
}

// Normal returns the sign rule attached to the category.
func (c Category) Normal() Normal {
	if !c.Valid() {
		return NormalStandard
	}
	return categories[c].normal
}

// IsResult reports whether the category belongs to the income statement
// (RESULTADO in the agency's chart).
func (c Category) IsResult() bool { return c.Valid() && categories[c].result }

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCategory parses the English category names.
func ParseCategory(s string) (Category, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for _, c := range Categories() {
		if categories[c].name == name {
			return c, nil
		}
	}
	return 0, NewValidationError("category", fmt.Sprintf("unknown category %q", s))
}

// ParseLegacyCategory maps the agency's original Spanish taxonomy, where the
// income statement is a single RESULTADO category split by subcategory.
func ParseLegacyCategory(category, subcategory string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(category)) {
	case "ACTIVO":
		return CategoryAsset, nil
	case "PASIVO":
		return CategoryLiability, nil
	case "PATRIMONIO_NETO":
		return CategoryEquity, nil
	case "RESULTADO":
		switch strings.ToUpper(strings.TrimSpace(subcategory)) {
		case "INGRESOS":
			return CategoryIncome, nil
		case "COSTOS":
			return CategoryCost, nil
		case "GASTOS":
			return CategoryExpense, nil
		}
		return 0, NewValidationError("subcategory", fmt.Sprintf("unknown RESULTADO subcategory %q", subcategory))
	}
	return ParseCategory(category)
}

// Subcategory is the liquidity horizon of balance-sheet accounts.
type Subcategory string

const (
	SubcategoryNone       Subcategory = ""
	SubcategoryCurrent    Subcategory = "CURRENT"
	SubcategoryNonCurrent Subcategory = "NON_CURRENT"
)

// ParseSubcategory accepts English and legacy Spanish spellings.
func ParseSubcategory(s string) Subcategory {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CURRENT", "CORRIENTE":
		return SubcategoryCurrent
	case "NON_CURRENT", "NO_CORRIENTE":
		return SubcategoryNonCurrent
	}
	return SubcategoryNone
}

// SignedDelta is the effect of a movement of the given kind and amount on an
// account of category c.
func SignedDelta(c Category, kind MovementKind, amount decimal.Decimal) decimal.Decimal {
	d := amount
	if !kind.increases() {
		d = d.Neg()
	}
	if c.Normal() == NormalInverted {
		d = d.Neg()
	}
	return d
}
