package wallet

import (
	"testing"

	"github.com/eksporyuk/affiliate-ledger/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCheckBalancedWallet(t *testing.T) {
	w := model.Wallet{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Balance:        300000,
		LockedBalance:  100000,
		PendingBalance: 90000,
		TotalEarnings:  500000,
		TotalPayout:    100000,
	}
	rev := model.RevenueTotals{Pending: 90000, Credited: 500000, Rejected: 20000}
	pay := model.PayoutTotals{Pending: 50000, Approved: 100000, Paid: 100000}

	r := Check(w, rev, pay)
	assert.True(t, r.Balanced)
	assert.Empty(t, r.Issues)
	assert.Equal(t, int64(300000), r.Expected.Balance)
}

func TestCheckReportsEveryDrift(t *testing.T) {
	w := model.Wallet{Balance: 1, LockedBalance: 2, PendingBalance: 3, TotalEarnings: 4, TotalPayout: 5}

	r := Check(w, model.RevenueTotals{}, model.PayoutTotals{})
	assert.False(t, r.Balanced)
	assert.Equal(t, []string{"balance", "locked_balance", "pending_balance", "total_earnings", "total_payout"}, r.Issues)
}
