package vessels

import (
	"errors"
	"fmt"

	"github.com/cargoflow/tradeops-api/internal/events"
	"github.com/cargoflow/tradeops-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateVessel(vessel *types.Vessel) error {
	return d.db.Create(vessel).Error
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

func (d *Database) ListVessels() ([]types.Vessel, error) {
	var vessels []types.Vessel
	if err := d.db.Order("created_at DESC").Find(&vessels).Error; err != nil {
		return nil, fmt.Errorf("failed to list vessels: %w", err)
	}
	return vessels, nil
}

func (d *Database) ContractExists(contractID string) (bool, error) {
	var count int64
	if err := d.db.Model(&types.Contract{}).Where("contract_id = ?", contractID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateVesselWithCascade applies the field updates and, when a
// customs-release file is part of the write, dispatches the customs event
// in the same transaction. The vessel update and the cascaded completion
// commit or roll back together.
func (d *Database) UpdateVesselWithCascade(vesselID string, updates map[string]interface{}, customsFile string, dispatcher *events.Dispatcher) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if len(updates) > 0 {
		result := tx.Model(&types.Vessel{}).Where("vessel_id = ?", vesselID).Updates(updates)
		if result.Error != nil {
			tx.Rollback()
			return fmt.Errorf("failed to update vessel: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			tx.Rollback()
			return fmt.Errorf("vessel %s: %w", vesselID, types.ErrNotFound)
		}
	}

	if customsFile != "" {
		err := dispatcher.Dispatch(tx, events.CustomsReleaseReceived{
			VesselID: vesselID,
			FileName: customsFile,
		})
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}
