package contracts

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

func (d *Database) GetContract(contractID string) (*types.Contract, error) {
	var contract types.Contract
	if err := d.db.Where("contract_id = ?", contractID).First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("contract %s: %w", contractID, types.ErrNotFound)
		}
		return nil, err
	}
	return &contract, nil
}

func (d *Database) ListContracts() ([]types.Contract, error) {
	var contracts []types.Contract
	if err := d.db.Order("created_at DESC").Find(&contracts).Error; err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	return contracts, nil
}

func (d *Database) RequestExists(requestID string) (bool, error) {
	var count int64
	if err := d.db.Model(&types.Request{}).Where("request_id = ?", requestID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateContractWithCascade inserts the contract and dispatches the
// created event in one transaction. If any cascade handler fails, the
// contract insert is rolled back with it.
func (d *Database) CreateContractWithCascade(contract *types.Contract, dispatcher *events.Dispatcher) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(contract).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to create contract: %w", err)
	}

	err := dispatcher.Dispatch(tx, events.ContractCreated{
		ContractID: contract.ContractID,
		RequestID:  contract.RequestID,
	})
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// ApproveContractWithCascade sets the contract to approved and dispatches
// the approved event in one transaction. A reader never observes an
// approved contract whose request was left behind.
func (d *Database) ApproveContractWithCascade(contract *types.Contract, dispatcher *events.Dispatcher) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Save(contract).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to update contract: %w", err)
	}

	err := dispatcher.Dispatch(tx, events.ContractApproved{
		ContractID: contract.ContractID,
		RequestID:  contract.RequestID,
	})
	if err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
