package needs

import (
	"errors"
	"fmt"
	"time"

	"github.com/cargoflow/tradeops-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateNeed(need *types.Need) error {
	return d.db.Create(need).Error
}

func (d *Database) GetNeed(needID string) (*types.Need, error) {
	var need types.Need
	if err := d.db.Where("need_id = ?", needID).First(&need).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("need %s: %w", needID, types.ErrNotFound)
		}
		return nil, err
	}
	return &need, nil
}

func (d *Database) ListNeeds() ([]types.Need, error) {
	var needs []types.Need
	if err := d.db.Order("created_at DESC").Find(&needs).Error; err != nil {
		return nil, fmt.Errorf("failed to list needs: %w", err)
	}
	return needs, nil
}

func (d *Database) DeleteNeed(needID string) error {
	result := d.db.Where("need_id = ?", needID).Delete(&types.Need{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("need %s: %w", needID, types.ErrNotFound)
	}
	return nil
}

// UpdateNeedProgress persists the aggregated quantity, the derived
// percentage and status, and the update timestamp as a single UPDATE.
func (d *Database) UpdateNeedProgress(needID string, actualQuantity int64, progressPercentage float64, status string) error {
	result := d.db.Model(&types.Need{}).
		Where("need_id = ?", needID).
		Updates(map[string]interface{}{
			"actual_quantity_received": actualQuantity,
			"progress_percentage":      progressPercentage,
			"status":                   status,
			"updated_at":               time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update need progress: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("need %s: %w", needID, types.ErrNotFound)
	}
	return nil
}

// GetActiveNeedTotals computes, in one query, the discharged tonnage
// counting toward every active need: requests linked to the need,
// approved contracts under those requests, discharged vessels under those
// contracts, with the vessel's discharge end date inside the need's
// fulfillment window (inclusive on both ends). Needs with no qualifying
// vessels appear with a zero total.
func (d *Database) GetActiveNeedTotals() ([]NeedTotal, error) {
	query := `
		SELECT needs.need_id AS need_id,
		       COALESCE(SUM(CASE
		           WHEN vessels.actual_quantity IS NOT NULL
		            AND vessels.discharge_end_date IS NOT NULL
		            AND vessels.discharge_end_date >= needs.fulfillment_start_date
		            AND vessels.discharge_end_date <= needs.fulfillment_end_date
		           THEN vessels.actual_quantity
		           ELSE 0
		       END), 0) AS total
		FROM needs
		LEFT JOIN requests
		       ON requests.need_id = needs.need_id
		      AND requests.deleted_at IS NULL
		LEFT JOIN contracts
		       ON contracts.request_id = requests.request_id
		      AND contracts.status = ?
		      AND contracts.deleted_at IS NULL
		LEFT JOIN vessels
		       ON vessels.contract_id = contracts.contract_id
		      AND vessels.status = ?
		      AND vessels.deleted_at IS NULL
		WHERE needs.status = ?
		  AND needs.deleted_at IS NULL
		GROUP BY needs.need_id`

	var totals []NeedTotal
	err := d.db.Raw(query,
		types.ContractStatusApproved,
		types.VesselStatusDischarged,
		types.NeedStatusActive,
	).Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate need totals: %w", err)
	}
	return totals, nil
}

// GetNeedsInWindow lists needs whose fulfillment window falls fully
// within the query range. Each bound is applied only when given.
func (d *Database) GetNeedsInWindow(startDate, endDate *time.Time) ([]types.Need, error) {
	query := d.db.Model(&types.Need{})
	if startDate != nil {
		query = query.Where("fulfillment_start_date >= ?", *startDate)
	}
	if endDate != nil {
		query = query.Where("fulfillment_end_date <= ?", *endDate)
	}

	var needs []types.Need
	if err := query.Order("fulfillment_end_date ASC").Find(&needs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch needs for report: %w", err)
	}
	return needs, nil
}

// GetRequestsByNeedIDs fetches all requests linked to the given needs in
// a single query.
func (d *Database) GetRequestsByNeedIDs(needIDs []string) ([]types.Request, error) {
	if len(needIDs) == 0 {
		return nil, nil
	}
	var requests []types.Request
	if err := d.db.Where("need_id IN ?", needIDs).Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch requests: %w", err)
	}
	return requests, nil
}

// GetContractsByRequestIDs fetches all contracts under the given requests
// in a single query, regardless of contract status.
func (d *Database) GetContractsByRequestIDs(requestIDs []string) ([]types.Contract, error) {
	if len(requestIDs) == 0 {
		return nil, nil
	}
	var contracts []types.Contract
	if err := d.db.Where("request_id IN ?", requestIDs).Find(&contracts).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch contracts: %w", err)
	}
	return contracts, nil
}

// GetVesselsByContractIDs fetches all vessels under the given contracts in
// a single query, regardless of vessel status.
func (d *Database) GetVesselsByContractIDs(contractIDs []string) ([]types.Vessel, error) {
	if len(contractIDs) == 0 {
		return nil, nil
	}
	var vessels []types.Vessel
	if err := d.db.Where("contract_id IN ?", contractIDs).Find(&vessels).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch vessels: %w", err)
	}
	return vessels, nil
}
