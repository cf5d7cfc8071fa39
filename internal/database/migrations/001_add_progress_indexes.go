package migrations

import (
	"gorm.io/gorm"
)

// AddProgressIndexes creates the indexes backing the batched progress
// aggregation and the allocation ledger. Raw SQL is used for control over
// the composite indexes.
func AddProgressIndexes(db *gorm.DB) error {
	indexes := []string{
		// The aggregator filters needs by status before joining
		`CREATE INDEX IF NOT EXISTS idx_needs_status
		 ON needs(status)`,

		// Composite index for the fulfillment window report filter
		`CREATE INDEX IF NOT EXISTS idx_needs_fulfillment_window
		 ON needs(fulfillment_start_date, fulfillment_end_date)`,

		// Join path: requests by need, contracts by request, vessels by contract
		`CREATE INDEX IF NOT EXISTS idx_requests_need_id
		 ON requests(need_id)`,

		`CREATE INDEX IF NOT EXISTS idx_contracts_request_status
		 ON contracts(request_id, status)`,

		`CREATE INDEX IF NOT EXISTS idx_vessels_contract_status
		 ON vessels(contract_id, status)`,

		// Discharge window lookups
		`CREATE INDEX IF NOT EXISTS idx_vessels_discharge_end_date
		 ON vessels(discharge_end_date)`,

		// Allocated quantity is summed per LC on every read
		`CREATE INDEX IF NOT EXISTS idx_vessel_letter_of_credits_lc_id
		 ON vessel_letter_of_credits(letter_of_credit_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
