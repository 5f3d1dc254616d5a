package services

import (
	"github.com/shopspring/decimal"
)

// RevenueSplit is the division of a gross payment between the platform
// and the event organizer. Amounts are centavos.
type RevenueSplit struct {
	Amount           int64 `json:"amount"`
	PlatformFee      int64 `json:"platformFee"`
	OrganizerRevenue int64 `json:"organizerRevenue"`
}

// SplitRevenue computes the platform fee as a percentage of the gross
// amount, rounded half-up to the centavo, with the organizer getting the
// remainder. The two parts always sum back to the gross amount; the fee
// absorbs the rounding.
func SplitRevenue(amount int64, feePercent float64) RevenueSplit {
	fee := decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(feePercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	if fee < 0 {
		fee = 0
	}
	if fee > amount {
		fee = amount
	}

	return RevenueSplit{
		Amount:           amount,
		PlatformFee:      fee,
		OrganizerRevenue: amount - fee,
	}
}
