package requests

import (
	"errors"
	"fmt"

	"github.com/cargoflow/tradeops-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateRequest(request *types.Request) error {
	return d.db.Create(request).Error
}

func (d *Database) GetRequest(requestID string) (*types.Request, error) {
	var request types.Request
	if err := d.db.Where("request_id = ?", requestID).First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("request %s: %w", requestID, types.ErrNotFound)
		}
		return nil, err
	}
	return &request, nil
}

func (d *Database) ListRequests() ([]types.Request, error) {
	var requests []types.Request
	if err := d.db.Order("created_at DESC").Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return requests, nil
}

func (d *Database) NeedExists(needID string) (bool, error) {
	var count int64
	if err := d.db.Model(&types.Need{}).Where("need_id = ?", needID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
