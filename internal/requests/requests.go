package requests

import (
	"fmt"
	"time"

	"github.com/cargoflow/tradeops-api/internal/events"
	"github.com/cargoflow/tradeops-api/internal/types"
	"github.com/cargoflow/tradeops-api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service handles contract requests raised against needs.
type Service struct {
	db *Database
}

// NewService creates a new requests service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateRequestPayload is the body for opening a new request.
type CreateRequestPayload struct {
	NeedID   *string `json:"need_id,omitempty"`
	Title    string  `json:"title"`
	Quantity int64   `json:"quantity"`
}

// CreateRequest opens a new request, optionally linked to a need.
func (s *Service) CreateRequest(payload CreateRequestPayload) (*types.Request, error) {
	if payload.Quantity <= 0 {
		return nil, types.NewValidationError("request quantity must be a positive integer, got %d", payload.Quantity)
	}
	if payload.NeedID != nil {
		exists, err := s.db.NeedExists(*payload.NeedID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, types.NewValidationError("need %s does not exist", *payload.NeedID)
		}
	}

	request := &types.Request{
		RequestID: "REQ_" + uuid.New().String(),
		NeedID:    payload.NeedID,
		Title:     payload.Title,
		Quantity:  payload.Quantity,
		Status:    types.RequestStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.db.CreateRequest(request); err != nil {
		return nil, err
	}
	return request, nil
}

// GetRequest retrieves a request by its external id.
func (s *Service) GetRequest(requestID string) (*types.Request, error) {
	return s.db.GetRequest(requestID)
}

// ListRequests retrieves all requests, newest first.
func (s *Service) ListRequests() ([]types.Request, error) {
	return s.db.ListRequests()
}

// RegisterCascades attaches the request-side status cascades to the
// dispatcher: a created contract moves its request to "contracted", an
// approved contract moves it to "applied". Handlers run inside the
// contract write's transaction, so a failed cascade rolls the contract
// write back too.
func RegisterCascades(dispatcher *events.Dispatcher) {
	dispatcher.Register(events.ContractCreatedEvent, func(tx *gorm.DB, event events.Event) error {
		e, ok := event.(events.ContractCreated)
		if !ok {
			return fmt.Errorf("unexpected event payload for %s", event.Type())
		}
		return transitionRequest(tx, e.RequestID, types.RequestStatusContracted)
	})

	dispatcher.Register(events.ContractApprovedEvent, func(tx *gorm.DB, event events.Event) error {
		e, ok := event.(events.ContractApproved)
		if !ok {
			return fmt.Errorf("unexpected event payload for %s", event.Type())
		}
		return transitionRequest(tx, e.RequestID, types.RequestStatusApplied)
	})
}

func transitionRequest(tx *gorm.DB, requestID, status string) error {
	result := tx.Model(&types.Request{}).
		Where("request_id = ?", requestID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("request %s: %w", requestID, types.ErrNotFound)
	}

	log.Debug().
		Str("request_id", requestID).
		Str("status", status).
		Msg("cascaded request status transition")
	return nil
}

// GinHandlers contains HTTP handlers for request endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for request endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateRequestHandler handles POST requests to open new requests
func (h *GinHandlers) CreateRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload CreateRequestPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		request, err := h.service.CreateRequest(payload)
		response.Handle(c, request, err)
	}
}

// GetRequestHandler handles GET requests for a single request
// URL parameter: request_id
func (h *GinHandlers) GetRequestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		request, err := h.service.GetRequest(c.Param("request_id"))
		response.Handle(c, request, err)
	}
}

// ListRequestsHandler handles GET requests for all requests
func (h *GinHandlers) ListRequestsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		requests, err := h.service.ListRequests()
		response.Handle(c, requests, err)
	}
}
