package services

import (
	"event-marketplace/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferencedTransactionIDs(t *testing.T) {
	payouts := []models.Payout{
		{Status: models.PayoutCompleted, TransactionIDs: []string{"t1", "t2"}},
		{Status: models.PayoutPending, TransactionIDs: []string{"t3"}},
		{Status: models.PayoutFailed, TransactionIDs: []string{"t4"}},
	}

	paid := referencedTransactionIDs(payouts)

	assert.True(t, paid["t1"])
	assert.True(t, paid["t2"])
	assert.True(t, paid["t3"], "pending payouts hold their transactions")
	assert.False(t, paid["t4"], "failed payouts release their transactions")
}

func TestSelectPayoutTransactions(t *testing.T) {
	transactions := []models.Transaction{
		{ID: "t1", OrganizerRevenue: 4000},
		{ID: "t2", OrganizerRevenue: 3000},
		{ID: "t3", OrganizerRevenue: 5000},
	}

	t.Run("stops once the amount is covered", func(t *testing.T) {
		selected, covered := selectPayoutTransactions(transactions, map[string]bool{}, 6000)

		assert.Equal(t, []string{"t1", "t2"}, selected)
		assert.Equal(t, int64(7000), covered)
	})

	t.Run("skips already referenced transactions", func(t *testing.T) {
		selected, covered := selectPayoutTransactions(transactions, map[string]bool{"t1": true}, 6000)

		assert.Equal(t, []string{"t2", "t3"}, selected)
		assert.Equal(t, int64(8000), covered)
	})

	t.Run("reports a shortfall", func(t *testing.T) {
		_, covered := selectPayoutTransactions(transactions, map[string]bool{}, 20000)

		assert.Equal(t, int64(12000), covered)
	})
}
