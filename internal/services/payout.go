package services

import (
	"context"
	"event-marketplace/internal/ledger"
	"event-marketplace/internal/status"
	"event-marketplace/models"
	"fmt"
	"log/slog"
)

// PayoutService aggregates organizer earnings and turns them into payout
// requests. The "unpaid" set is completed transactions minus everything
// already referenced by a live payout, so a transaction can back at most
// one payout.
type PayoutService struct {
	ledger    *ledger.Store
	minAmount int64
	logger    *slog.Logger
}

func NewPayoutService(l *ledger.Store, minAmount int64, logger *slog.Logger) *PayoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PayoutService{ledger: l, minAmount: minAmount, logger: logger}
}

type BalanceSummary struct {
	AvailableBalance   int64           `json:"availableBalance"`
	PendingPayouts     int64           `json:"pendingPayouts"`
	TotalPaidOut       int64           `json:"totalPaidOut"`
	UnpaidTransactions int             `json:"unpaidTransactions"`
	Payouts            []models.Payout `json:"payouts"`
}

// Balance summarizes what the organizer can withdraw right now plus
// their payout history.
func (p *PayoutService) Balance(ctx context.Context, organizerID string) (*BalanceSummary, error) {
	transactions, err := p.ledger.CompletedTransactionsForOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("Balance: %w", err)
	}
	payouts, err := p.ledger.PayoutsByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("Balance: %w", err)
	}

	summary := &BalanceSummary{Payouts: payouts}
	paid := referencedTransactionIDs(payouts)

	for _, t := range transactions {
		if paid[t.ID] {
			continue
		}
		summary.AvailableBalance += t.OrganizerRevenue
		summary.UnpaidTransactions++
	}
	for _, po := range payouts {
		switch po.Status {
		case models.PayoutPending, models.PayoutProcessing:
			summary.PendingPayouts += po.Amount
		case models.PayoutCompleted:
			summary.TotalPaidOut += po.Amount
		}
	}
	return summary, nil
}

// RequestPayout validates the requested amount against the available
// balance and locks enough unpaid transactions behind a pending payout.
func (p *PayoutService) RequestPayout(ctx context.Context, organizerID string, amount int64, paymentMethod string) (*models.Payout, error) {
	if amount < p.minAmount {
		return nil, fmt.Errorf("RequestPayout: amount below minimum %d: %w", p.minAmount, status.ErrInvalidInput)
	}

	transactions, err := p.ledger.CompletedTransactionsForOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("RequestPayout: %w", err)
	}
	payouts, err := p.ledger.PayoutsByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, fmt.Errorf("RequestPayout: %w", err)
	}

	selected, covered := selectPayoutTransactions(transactions, referencedTransactionIDs(payouts), amount)
	if covered < amount {
		return nil, fmt.Errorf("RequestPayout: amount exceeds available balance %d: %w", covered, status.ErrInvalidInput)
	}

	payout := &models.Payout{
		OrganizerID:    organizerID,
		Amount:         amount,
		Currency:       "PHP",
		Status:         models.PayoutPending,
		PaymentMethod:  paymentMethod,
		TransactionIDs: selected,
	}
	id, err := p.ledger.CreatePayout(ctx, payout)
	if err != nil {
		return nil, fmt.Errorf("RequestPayout: %w", err)
	}
	payout.ID = id

	p.logger.Info("payout requested",
		"payoutId", id, "organizerId", organizerID, "amount", amount, "transactions", len(selected))
	return payout, nil
}

// referencedTransactionIDs collects transaction ids held by payouts that
// are still live. A failed payout releases its transactions back into
// the unpaid pool.
func referencedTransactionIDs(payouts []models.Payout) map[string]bool {
	paid := make(map[string]bool)
	for _, po := range payouts {
		if po.Status == models.PayoutFailed {
			continue
		}
		for _, id := range po.TransactionIDs {
			paid[id] = true
		}
	}
	return paid
}

// selectPayoutTransactions greedily picks unpaid transactions until
// their organizer revenue covers the requested amount. Returns what it
// picked and the total covered, which may fall short.
func selectPayoutTransactions(transactions []models.Transaction, paid map[string]bool, amount int64) ([]string, int64) {
	var selected []string
	var covered int64
	for _, t := range transactions {
		if paid[t.ID] {
			continue
		}
		selected = append(selected, t.ID)
		covered += t.OrganizerRevenue
		if covered >= amount {
			break
		}
	}
	return selected, covered
}
