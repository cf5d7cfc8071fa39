package contracts

import (
	"time"

	"github.com/cargoflow/tradeops-api/internal/events"
	"github.com/cargoflow/tradeops-api/internal/types"
	"github.com/cargoflow/tradeops-api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service handles supplier contracts and the request-status cascades their
// lifecycle triggers.
type Service struct {
	db         *Database
	dispatcher *events.Dispatcher
}

// NewService creates a new contracts service with the given database
// connection and event dispatcher.
func NewService(gormDB *gorm.DB, dispatcher *events.Dispatcher) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		dispatcher: dispatcher,
	}
}

// CreateContractPayload is the body for recording a new contract.
type CreateContractPayload struct {
	RequestID string `json:"request_id" binding:"required"`
	Supplier  string `json:"supplier"`
	Quantity  int64  `json:"quantity"`
}

// CreateContract records a new draft contract against a request. The
// request moves to "contracted" in the same transaction.
func (s *Service) CreateContract(payload CreateContractPayload) (*types.Contract, error) {
	logger := log.With().
		Str("request_id", payload.RequestID).
		Str("service", "contracts").
		Logger()

	if payload.Quantity <= 0 {
		return nil, types.NewValidationError("contract quantity must be a positive integer, got %d", payload.Quantity)
	}

	exists, err := s.db.RequestExists(payload.RequestID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.NewValidationError("request %s does not exist", payload.RequestID)
	}

	contract := &types.Contract{
		ContractID: "CON_" + uuid.New().String(),
		RequestID:  payload.RequestID,
		Supplier:   payload.Supplier,
		Quantity:   payload.Quantity,
		Status:     types.ContractStatusDraft,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := s.db.CreateContractWithCascade(contract, s.dispatcher); err != nil {
		logger.Error().Err(err).Msg("contract creation failed")
		return nil, err
	}

	logger.Info().
		Str("contract_id", contract.ContractID).
		Int64("quantity", contract.Quantity).
		Msg("created contract, request moved to contracted")
	return contract, nil
}

// ApproveContract moves a contract to approved. The request moves to
// "applied" in the same transaction; if that cascade fails, the contract
// keeps its prior status.
func (s *Service) ApproveContract(contractID string) (*types.Contract, error) {
	logger := log.With().
		Str("contract_id", contractID).
		Str("service", "contracts").
		Logger()

	contract, err := s.db.GetContract(contractID)
	if err != nil {
		return nil, err
	}

	contract.Status = types.ContractStatusApproved
	contract.UpdatedAt = time.Now()

	if err := s.db.ApproveContractWithCascade(contract, s.dispatcher); err != nil {
		logger.Error().Err(err).Msg("contract approval failed")
		return nil, err
	}

	logger.Info().
		Str("request_id", contract.RequestID).
		Msg("approved contract, request moved to applied")
	return contract, nil
}

// GetContract retrieves a contract by its external id.
func (s *Service) GetContract(contractID string) (*types.Contract, error) {
	return s.db.GetContract(contractID)
}

// ListContracts retrieves all contracts, newest first.
func (s *Service) ListContracts() ([]types.Contract, error) {
	return s.db.ListContracts()
}

// GinHandlers contains HTTP handlers for contract endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for contract endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateContractHandler handles POST requests to record new contracts
func (h *GinHandlers) CreateContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload CreateContractPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		contract, err := h.service.CreateContract(payload)
		response.Handle(c, contract, err)
	}
}

// ApproveContractHandler handles POST requests to approve contracts
// URL parameter: contract_id
func (h *GinHandlers) ApproveContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contract, err := h.service.ApproveContract(c.Param("contract_id"))
		response.Handle(c, contract, err)
	}
}

// GetContractHandler handles GET requests for a single contract
// URL parameter: contract_id
func (h *GinHandlers) GetContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contract, err := h.service.GetContract(c.Param("contract_id"))
		response.Handle(c, contract, err)
	}
}

// ListContractsHandler handles GET requests for all contracts
func (h *GinHandlers) ListContractsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		contracts, err := h.service.ListContracts()
		response.Handle(c, contracts, err)
	}
}
