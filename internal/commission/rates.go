package commission

import (
	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/shopspring/decimal"
)

type RateSource string

const (
	SourceAffiliate RateSource = "affiliate"
	SourceItem      RateSource = "item"
	SourceProgram   RateSource = "program"
	SourceDefault   RateSource = "default"
)

var hundred = decimal.NewFromInt(100)

// Rate is a resolved commission rule. Value is a percentage for
// CommissionPercentage and a Rupiah amount for CommissionFlat. A flat amount
// never exceeds Ceiling percent of the sale when Ceiling is set.
type Rate struct {
	Type    model.CommissionType
	Value   decimal.Decimal
	Source  RateSource
	Ceiling decimal.Decimal
}

// RateTable is the single source of commission rates.
type RateTable struct {
	Default decimal.Decimal
	Ceiling decimal.Decimal
	ByType  map[model.TransactionType]decimal.Decimal
}

func NewRateTable(cfg config.LedgerConfig) RateTable {
	return RateTable{
		Default: cfg.DefaultCommissionRate,
		Ceiling: cfg.MaxCommissionRate,
		ByType: map[model.TransactionType]decimal.Decimal{
			model.TransactionMembership: cfg.MembershipRate,
			model.TransactionProduct:    cfg.ProductRate,
			model.TransactionCourse:     cfg.CourseRate,
		},
	}
}

// Resolve picks the rate for a sale: affiliate override, then the item's own
// commission, then the program rate for the transaction type, then the default.
// Percentages are clamped to [0, Ceiling] and flat amounts to Ceiling percent of the sale.
func (t RateTable) Resolve(affiliate *model.AffiliateProfile, txnType model.TransactionType, item *model.ItemCommission) Rate {
	switch {
	case affiliate != nil && affiliate.CommissionRate != nil:
		return t.percentage(*affiliate.CommissionRate, SourceAffiliate)
	case item != nil && item.Type == model.CommissionFlat:
		v := item.Value
		if v.IsNegative() {
			v = decimal.Zero
		}
		return Rate{Type: model.CommissionFlat, Value: v, Source: SourceItem, Ceiling: t.Ceiling}
	case item != nil:
		return t.percentage(item.Value, SourceItem)
	}
	if r, ok := t.ByType[txnType]; ok {
		return t.percentage(r, SourceProgram)
	}
	return t.percentage(t.Default, SourceDefault)
}

func (t RateTable) percentage(v decimal.Decimal, src RateSource) Rate {
	if v.IsNegative() {
		v = decimal.Zero
	}
	if !t.Ceiling.IsZero() && v.GreaterThan(t.Ceiling) {
		v = t.Ceiling
	}
	return Rate{Type: model.CommissionPercentage, Value: v, Source: src}
}

// Apply returns the commission for amount and the effective percentage.
func (r Rate) Apply(amount int64) (int64, decimal.Decimal) {
	if amount <= 0 {
		return 0, decimal.Zero
	}
	total := decimal.NewFromInt(amount)
	if r.Type == model.CommissionFlat {
		c := decimal.Min(r.Value.Round(0), total)
		if !r.Ceiling.IsZero() {
			c = decimal.Min(c, decimal.NewFromInt(Percent(amount, r.Ceiling)))
		}
		return c.IntPart(), c.Mul(hundred).Div(total).Round(4)
	}
	return Percent(amount, r.Value), r.Value
}

// Percent is round(amount * pct / 100), half away from zero.
func Percent(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Round(0).IntPart()
}

// ItemRates holds the commissions configured on catalog items, keyed by type and item id.
type ItemRates map[string]model.ItemCommission

func NewItemRates(cfg config.LedgerConfig) ItemRates {
	rates := make(ItemRates, len(cfg.ItemCommissions))
	for key, ic := range cfg.ItemCommissions {
		rates[key] = model.ItemCommission{Type: model.CommissionType(ic.Type), Value: ic.Value}
	}
	return rates
}

// Lookup returns the item's commission, or nil when the item has none.
func (r ItemRates) Lookup(txnType model.TransactionType, itemID string) *model.ItemCommission {
	ic, ok := r[string(txnType)+":"+itemID]
	if !ok {
		return nil
	}
	return &ic
}
