package requests

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/cargoflow/tradeops-api/internal/events"
	"github.com/cargoflow/tradeops-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "requests_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&types.Need{}, &types.Request{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestCreateRequestLinkedToNeed(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	need := &types.Need{NeedID: "NEED_1", Title: "Rice import", RequiredQuantity: 2000, Status: types.NeedStatusActive}
	if err := db.Create(need).Error; err != nil {
		t.Fatalf("failed to seed need: %v", err)
	}

	needID := "NEED_1"
	request, err := service.CreateRequest(CreateRequestPayload{
		NeedID:   &needID,
		Title:    "Rice purchase",
		Quantity: 2000,
	})
	if err != nil {
		t.Fatalf("CreateRequest returned error: %v", err)
	}

	if request.Status != types.RequestStatusPending {
		t.Errorf("status = %q, want %q", request.Status, types.RequestStatusPending)
	}
	if request.NeedID == nil || *request.NeedID != "NEED_1" {
		t.Errorf("need id = %v, want NEED_1", request.NeedID)
	}
}

func TestCreateRequestWithoutNeed(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	request, err := service.CreateRequest(CreateRequestPayload{
		Title:    "Spot purchase",
		Quantity: 100,
	})
	if err != nil {
		t.Fatalf("CreateRequest returned error: %v", err)
	}
	if request.NeedID != nil {
		t.Errorf("need id = %v, want nil", request.NeedID)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	missing := "NEED_missing"
	tests := []struct {
		name    string
		payload CreateRequestPayload
	}{
		{"zero quantity", CreateRequestPayload{Title: "x", Quantity: 0}},
		{"unknown need", CreateRequestPayload{NeedID: &missing, Title: "x", Quantity: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateRequest(tt.payload)
			var validationErr *types.ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestCascadeTransitionsRequestStatus(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	request, err := service.CreateRequest(CreateRequestPayload{Title: "Sugar purchase", Quantity: 300})
	if err != nil {
		t.Fatalf("CreateRequest returned error: %v", err)
	}

	dispatcher := events.NewDispatcher()
	RegisterCascades(dispatcher)

	err = dispatcher.Dispatch(db, events.ContractCreated{ContractID: "CON_1", RequestID: request.RequestID})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	got, err := service.GetRequest(request.RequestID)
	if err != nil {
		t.Fatalf("GetRequest returned error: %v", err)
	}
	if got.Status != types.RequestStatusContracted {
		t.Errorf("status = %q, want %q", got.Status, types.RequestStatusContracted)
	}

	err = dispatcher.Dispatch(db, events.ContractApproved{ContractID: "CON_1", RequestID: request.RequestID})
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	got, err = service.GetRequest(request.RequestID)
	if err != nil {
		t.Fatalf("GetRequest returned error: %v", err)
	}
	if got.Status != types.RequestStatusApplied {
		t.Errorf("status = %q, want %q", got.Status, types.RequestStatusApplied)
	}
}

func TestCascadeUnknownRequest(t *testing.T) {
	db := newTestDB(t)

	dispatcher := events.NewDispatcher()
	RegisterCascades(dispatcher)

	err := dispatcher.Dispatch(db, events.ContractCreated{ContractID: "CON_1", RequestID: "REQ_missing"})
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("error = %v, want wrapped ErrNotFound", err)
	}
}
