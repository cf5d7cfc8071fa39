package contracts

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/cargoflow/tradeops-api/internal/events"
	"github.com/cargoflow/tradeops-api/internal/requests"
	"github.com/cargoflow/tradeops-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *events.Dispatcher) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "contracts_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&types.Request{}, &types.Contract{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	dispatcher := events.NewDispatcher()
	requests.RegisterCascades(dispatcher)

	return NewService(db, dispatcher), db, dispatcher
}

func seedRequest(t *testing.T, db *gorm.DB, requestID string) {
	t.Helper()
	request := &types.Request{
		RequestID: requestID,
		Title:     "Corn purchase",
		Quantity:  500,
		Status:    types.RequestStatusPending,
	}
	if err := db.Create(request).Error; err != nil {
		t.Fatalf("failed to seed request: %v", err)
	}
}

func requestStatus(t *testing.T, db *gorm.DB, requestID string) string {
	t.Helper()
	var request types.Request
	if err := db.Where("request_id = ?", requestID).First(&request).Error; err != nil {
		t.Fatalf("failed to load request: %v", err)
	}
	return request.Status
}

func contractStatus(t *testing.T, db *gorm.DB, contractID string) string {
	t.Helper()
	var contract types.Contract
	if err := db.Where("contract_id = ?", contractID).First(&contract).Error; err != nil {
		t.Fatalf("failed to load contract: %v", err)
	}
	return contract.Status
}

func TestCreateContractMovesRequestToContracted(t *testing.T) {
	service, db, _ := newTestService(t)
	seedRequest(t, db, "REQ_1")

	contract, err := service.CreateContract(CreateContractPayload{
		RequestID: "REQ_1",
		Supplier:  "SUPPLIER_A",
		Quantity:  500,
	})
	if err != nil {
		t.Fatalf("CreateContract returned error: %v", err)
	}

	if contract.Status != types.ContractStatusDraft {
		t.Errorf("contract status = %q, want %q", contract.Status, types.ContractStatusDraft)
	}
	if got := requestStatus(t, db, "REQ_1"); got != types.RequestStatusContracted {
		t.Errorf("request status = %q, want %q", got, types.RequestStatusContracted)
	}
}

func TestCreateContractValidation(t *testing.T) {
	service, db, _ := newTestService(t)
	seedRequest(t, db, "REQ_ok")

	tests := []struct {
		name    string
		payload CreateContractPayload
	}{
		{"zero quantity", CreateContractPayload{RequestID: "REQ_ok", Quantity: 0}},
		{"negative quantity", CreateContractPayload{RequestID: "REQ_ok", Quantity: -3}},
		{"unknown request", CreateContractPayload{RequestID: "REQ_missing", Quantity: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateContract(tt.payload)
			var validationErr *types.ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}

	// No cascade fired for the failed creations
	if got := requestStatus(t, db, "REQ_ok"); got != types.RequestStatusPending {
		t.Errorf("request status = %q, want %q", got, types.RequestStatusPending)
	}
}

func TestApproveContractMovesRequestToApplied(t *testing.T) {
	service, db, _ := newTestService(t)
	seedRequest(t, db, "REQ_2")

	contract, err := service.CreateContract(CreateContractPayload{
		RequestID: "REQ_2",
		Supplier:  "SUPPLIER_B",
		Quantity:  250,
	})
	if err != nil {
		t.Fatalf("CreateContract returned error: %v", err)
	}

	approved, err := service.ApproveContract(contract.ContractID)
	if err != nil {
		t.Fatalf("ApproveContract returned error: %v", err)
	}

	if approved.Status != types.ContractStatusApproved {
		t.Errorf("contract status = %q, want %q", approved.Status, types.ContractStatusApproved)
	}
	if got := requestStatus(t, db, "REQ_2"); got != types.RequestStatusApplied {
		t.Errorf("request status = %q, want %q", got, types.RequestStatusApplied)
	}
}

func TestApproveContractUnknownContract(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.ApproveContract("CON_missing")
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("error = %v, want wrapped ErrNotFound", err)
	}
}

func TestApproveCascadeFailureRollsBackContract(t *testing.T) {
	service, db, dispatcher := newTestService(t)
	seedRequest(t, db, "REQ_3")

	contract, err := service.CreateContract(CreateContractPayload{
		RequestID: "REQ_3",
		Supplier:  "SUPPLIER_C",
		Quantity:  100,
	})
	if err != nil {
		t.Fatalf("CreateContract returned error: %v", err)
	}

	// A failing handler anywhere in the chain must abort the whole write
	cascadeErr := errors.New("downstream rejected the approval")
	dispatcher.Register(events.ContractApprovedEvent, func(tx *gorm.DB, event events.Event) error {
		return cascadeErr
	})

	_, err = service.ApproveContract(contract.ContractID)
	if !errors.Is(err, cascadeErr) {
		t.Fatalf("ApproveContract error = %v, want wrapped %v", err, cascadeErr)
	}

	if got := contractStatus(t, db, contract.ContractID); got != types.ContractStatusDraft {
		t.Errorf("contract status after failed approval = %q, want %q", got, types.ContractStatusDraft)
	}
	if got := requestStatus(t, db, "REQ_3"); got != types.RequestStatusContracted {
		t.Errorf("request status after failed approval = %q, want %q", got, types.RequestStatusContracted)
	}
}

func TestCreateCascadeFailureRollsBackContract(t *testing.T) {
	service, db, dispatcher := newTestService(t)
	seedRequest(t, db, "REQ_4")

	cascadeErr := errors.New("cascade handler failed")
	dispatcher.Register(events.ContractCreatedEvent, func(tx *gorm.DB, event events.Event) error {
		return cascadeErr
	})

	_, err := service.CreateContract(CreateContractPayload{
		RequestID: "REQ_4",
		Supplier:  "SUPPLIER_D",
		Quantity:  100,
	})
	if !errors.Is(err, cascadeErr) {
		t.Fatalf("CreateContract error = %v, want wrapped %v", err, cascadeErr)
	}

	var count int64
	if err := db.Model(&types.Contract{}).Where("request_id = ?", "REQ_4").Count(&count).Error; err != nil {
		t.Fatalf("failed to count contracts: %v", err)
	}
	if count != 0 {
		t.Errorf("contracts persisted after failed cascade = %d, want 0", count)
	}
	if got := requestStatus(t, db, "REQ_4"); got != types.RequestStatusPending {
		t.Errorf("request status after failed create = %q, want %q", got, types.RequestStatusPending)
	}
}
