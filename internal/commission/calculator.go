package commission

import (
	"time"

	"github.com/eksporyuk/affiliate-ledger/internal/config"
	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Commission struct {
	Amount     int64
	Percentage decimal.Decimal
	Rate       Rate
}

// Split sends the remainder after the affiliate commission to internal wallets:
// AdminPct of it to the admin, then FounderPct of what is left to the founder
// and the rest to the co-founder.
type Split struct {
	AdminUserID     uuid.UUID
	FounderUserID   uuid.UUID
	CofounderUserID uuid.UUID
	AdminPct        decimal.Decimal
	FounderPct      decimal.Decimal
}

type Calculator struct {
	rates RateTable
	split *Split
	hold  time.Duration
}

func NewCalculator(rates RateTable, split *Split, hold time.Duration) *Calculator {
	return &Calculator{rates: rates, split: split, hold: hold}
}

// NewCalculatorFromConfig enables the revenue split only when all three internal wallets are set.
func NewCalculatorFromConfig(cfg config.LedgerConfig) *Calculator {
	var split *Split
	admin, errA := uuid.Parse(cfg.AdminUserID)
	founder, errF := uuid.Parse(cfg.FounderUserID)
	cofounder, errC := uuid.Parse(cfg.CofounderUserID)
	if errA == nil && errF == nil && errC == nil {
		split = &Split{
			AdminUserID:     admin,
			FounderUserID:   founder,
			CofounderUserID: cofounder,
			AdminPct:        decimal.NewFromInt(15),
			FounderPct:      decimal.NewFromInt(60),
		}
	}
	return NewCalculator(NewRateTable(cfg), split, time.Duration(cfg.CommissionHoldDays)*24*time.Hour)
}

func (c *Calculator) Rates() RateTable {
	return c.rates
}

// Compute returns the affiliate commission for a settled sale. ok is false when
// the sale earns nothing: not SUCCESS, no affiliate, self-referral, or an
// affiliate that is not approved and active.
func (c *Calculator) Compute(txn *model.Transaction, affiliate *model.AffiliateProfile) (Commission, bool) {
	if txn == nil || txn.Status != model.TransactionSuccess || txn.AffiliateID == nil {
		return Commission{}, false
	}
	if !affiliate.CanEarn() || affiliate.UserID != *txn.AffiliateID || affiliate.UserID == txn.UserID {
		return Commission{}, false
	}

	var item *model.ItemCommission
	if txn.Metadata != nil {
		item = txn.Metadata.Commission()
	}
	rate := c.rates.Resolve(affiliate, txn.Type, item)
	amount, pct := rate.Apply(txn.Amount)
	if amount <= 0 {
		return Commission{}, false
	}
	return Commission{Amount: amount, Percentage: pct, Rate: rate}, true
}

// Drafts turns a settled sale into ledger entries. The calculator never touches wallets.
func (c *Calculator) Drafts(txn *model.Transaction, affiliate *model.AffiliateProfile, now time.Time) []model.RevenueDraft {
	if txn == nil || txn.Status != model.TransactionSuccess {
		return nil
	}
	matureAfter := now.Add(c.hold)
	var drafts []model.RevenueDraft

	remaining := txn.Amount
	if com, ok := c.Compute(txn, affiliate); ok {
		drafts = append(drafts, model.RevenueDraft{
			UserID:        affiliate.UserID,
			TransactionID: txn.ID,
			Amount:        com.Amount,
			Type:          model.RevenueAffiliateCommission,
			Percentage:    com.Percentage,
			MatureAfter:   matureAfter,
		})
		remaining -= com.Amount
	}

	if c.split == nil || remaining <= 0 {
		return drafts
	}

	adminFee := Percent(remaining, c.split.AdminPct)
	forFounders := remaining - adminFee
	founder := Percent(forFounders, c.split.FounderPct)
	cofounder := forFounders - founder

	shares := []struct {
		user   uuid.UUID
		amount int64
		typ    model.RevenueType
		pct    decimal.Decimal
	}{
		{c.split.AdminUserID, adminFee, model.RevenueAdminFee, c.split.AdminPct},
		{c.split.FounderUserID, founder, model.RevenueFounderShare, c.split.FounderPct},
		{c.split.CofounderUserID, cofounder, model.RevenueCofounderShare, hundred.Sub(c.split.FounderPct)},
	}
	for _, s := range shares {
		if s.amount <= 0 {
			continue
		}
		drafts = append(drafts, model.RevenueDraft{
			UserID:        s.user,
			TransactionID: txn.ID,
			Amount:        s.amount,
			Type:          s.typ,
			Percentage:    s.pct,
			MatureAfter:   matureAfter,
		})
	}
	return drafts
}
