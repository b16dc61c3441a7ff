package service

import (
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/google/uuid"
)

// DefaultPendingEstimate is the placeholder credit value of one unassessed submission
const DefaultPendingEstimate = 5

// LedgerPolicy holds the heuristics the credit ledger applies
type LedgerPolicy struct {
	PendingEstimate  int
	MinPayoutCredits int
}

// DefaultLedgerPolicy returns the standard ledger heuristics
func DefaultLedgerPolicy() LedgerPolicy {
	return LedgerPolicy{
		PendingEstimate:  DefaultPendingEstimate,
		MinPayoutCredits: 100,
	}
}

// Project computes the credit ledger of userID. Records owned by other users are
// ignored; deliveries are expected to be pre-filtered to the user's marshals.
//
// total counts every non-pending record, available only recycled ones, and
// pending is a per-submission estimate for records still awaiting assessment.
func (p LedgerPolicy) Project(userID uuid.UUID, records []models.WasteRecord, deliveries []models.MarshalDelivery) models.CreditLedger {
	var ledger models.CreditLedger

	for i := range records {
		rec := &records[i]
		if rec.GeneratorID != userID {
			continue
		}
		switch {
		case rec.Status == models.StatusPending && !rec.Assessed():
			ledger.PendingCredits += p.PendingEstimate
		case rec.Status != models.StatusPending:
			ledger.TotalCredits += rec.Credits()
			if rec.Status == models.StatusRecycled {
				ledger.AvailableCredits += rec.Credits()
			}
		}
	}

	for i := range deliveries {
		if deliveries[i].Assessed() {
			ledger.TotalCredits += deliveries[i].Credits()
		}
	}

	ledger.TotalNaira = models.CreditsToNaira(ledger.TotalCredits)
	ledger.PendingNaira = models.CreditsToNaira(ledger.PendingCredits)
	ledger.AvailableNaira = models.CreditsToNaira(ledger.AvailableCredits)
	ledger.PayoutEligible = ledger.AvailableCredits > 0 && ledger.AvailableCredits >= p.MinPayoutCredits

	return ledger
}
