package letters

import (
	"errors"
	"fmt"

	"github.com/cargoflow/tradeops-api/internal/types"
	"gorm.io/gorm"
)

// ErrOverAllocated is returned when the reject policy blocks an
// allocation that would push the LC past its face quantity.
var ErrOverAllocated = errors.New("allocation exceeds letter of credit face quantity")

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateLetterOfCredit(lc *types.LetterOfCredit) error {
	return d.db.Create(lc).Error
}

func (d *Database) GetLetterOfCredit(lcID string) (*types.LetterOfCredit, error) {
	var lc types.LetterOfCredit
	if err := d.db.Where("letter_of_credit_id = ?", lcID).First(&lc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("letter of credit %s: %w", lcID, types.ErrNotFound)
		}
		return nil, err
	}
	return &lc, nil
}

func (d *Database) GetVessel(vesselID string) (*types.Vessel, error) {
	var vessel types.Vessel
	if err := d.db.Where("vessel_id = ?", vesselID).First(&vessel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("vessel %s: %w", vesselID, types.ErrNotFound)
		}
		return nil, err
	}
	return &vessel, nil
}

// SumAllocations recomputes an LC's allocated quantity from the junction
// rows. Zero rows sum to zero.
func (d *Database) SumAllocations(lcID string) (int64, error) {
	var allocated int64
	err := d.db.Model(&types.VesselLetterOfCredit{}).
		Where("letter_of_credit_id = ?", lcID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&allocated).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum allocations for %s: %w", lcID, err)
	}
	return allocated, nil
}

// CreateAllocation inserts the allocation row. The allocated total is
// recomputed inside the same transaction so the reject policy cannot be
// raced past by a concurrent allocation against the same LC. Returns the
// total allocated quantity including the new row.
func (d *Database) CreateAllocation(allocation *types.VesselLetterOfCredit, faceQuantity int64, reject bool) (int64, error) {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return 0, err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var allocated int64
	err := tx.Model(&types.VesselLetterOfCredit{}).
		Where("letter_of_credit_id = ?", allocation.LetterOfCreditID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&allocated).Error
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to sum allocations: %w", err)
	}

	if reject && allocated+allocation.Quantity > faceQuantity {
		tx.Rollback()
		return allocated, ErrOverAllocated
	}

	if err := tx.Create(allocation).Error; err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("failed to create allocation: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return allocated + allocation.Quantity, nil
}

// DeleteAllocation removes an allocation row by its external id and
// returns the LC id it pointed at, so callers can refresh cached
// remaining-quantity views. Deleting a missing allocation is an error,
// not a silent success.
func (d *Database) DeleteAllocation(allocationID string) (string, error) {
	var allocation types.VesselLetterOfCredit
	if err := d.db.Where("allocation_id = ?", allocationID).First(&allocation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("allocation %s: %w", allocationID, types.ErrNotFound)
		}
		return "", err
	}

	if err := d.db.Delete(&allocation).Error; err != nil {
		return "", fmt.Errorf("failed to delete allocation: %w", err)
	}

	return allocation.LetterOfCreditID, nil
}

// GetAllocationsForLC lists the allocation rows for one LC.
func (d *Database) GetAllocationsForLC(lcID string) ([]types.VesselLetterOfCredit, error) {
	var allocations []types.VesselLetterOfCredit
	if err := d.db.Where("letter_of_credit_id = ?", lcID).Find(&allocations).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch allocations for %s: %w", lcID, err)
	}
	return allocations, nil
}
