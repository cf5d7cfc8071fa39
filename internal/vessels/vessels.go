package vessels

import (
	"fmt"
	"time"

	"github.com/cargoflow/tradeops-api/internal/events"
	"github.com/cargoflow/tradeops-api/internal/letters"
	"github.com/cargoflow/tradeops-api/internal/types"
	"github.com/cargoflow/tradeops-api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service handles vessel nominations, discharge tracking and the customs
// release cascade.
type Service struct {
	db         *Database
	dispatcher *events.Dispatcher
}

// NewService creates a new vessels service with the given database
// connection and event dispatcher.
func NewService(gormDB *gorm.DB, dispatcher *events.Dispatcher) *Service {
	return &Service{
		db:         NewDatabase(gormDB),
		dispatcher: dispatcher,
	}
}

// CreateVesselPayload is the body for nominating a vessel.
type CreateVesselPayload struct {
	ContractID string `json:"contract_id" binding:"required"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
}

// UpdateVesselPayload carries the optional fields of a vessel update.
// Including CustomsReleaseFile triggers the customs cascade.
type UpdateVesselPayload struct {
	Name               *string    `json:"name,omitempty"`
	Quantity           *int64     `json:"quantity,omitempty"`
	ActualQuantity     *int64     `json:"actual_quantity,omitempty"`
	DischargeEndDate   *time.Time `json:"discharge_end_date,omitempty"`
	Status             *string    `json:"status,omitempty"`
	CustomsReleaseFile *string    `json:"customs_release_file,omitempty"`
}

// CustomsReleasePayload is the body for attaching a customs-release
// document. File bytes live elsewhere; only the stored filename crosses
// this boundary.
type CustomsReleasePayload struct {
	FileName string `json:"file_name" binding:"required"`
}

// CreateVessel nominates a new vessel under a contract.
func (s *Service) CreateVessel(payload CreateVesselPayload) (*types.Vessel, error) {
	if payload.Quantity <= 0 {
		return nil, types.NewValidationError("vessel quantity must be a positive integer, got %d", payload.Quantity)
	}
	exists, err := s.db.ContractExists(payload.ContractID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.NewValidationError("contract %s does not exist", payload.ContractID)
	}

	vessel := &types.Vessel{
		VesselID:             "VSL_" + uuid.New().String(),
		ContractID:           payload.ContractID,
		Name:                 payload.Name,
		Quantity:             payload.Quantity,
		Status:               types.VesselStatusNominated,
		CustomsReleaseStatus: types.CustomsStatusPending,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}

	if err := s.db.CreateVessel(vessel); err != nil {
		return nil, err
	}
	return vessel, nil
}

// GetVessel retrieves a vessel by its external id.
func (s *Service) GetVessel(vesselID string) (*types.Vessel, error) {
	return s.db.GetVessel(vesselID)
}

// ListVessels retrieves all vessels, newest first.
func (s *Service) ListVessels() ([]types.Vessel, error) {
	return s.db.ListVessels()
}

// UpdateVessel applies a partial update. When the payload carries a
// customs-release file, the customs cascade runs in the same transaction:
// the vessel completes and its customs status moves to received.
func (s *Service) UpdateVessel(vesselID string, payload UpdateVesselPayload) (*types.Vessel, error) {
	if _, err := s.db.GetVessel(vesselID); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if payload.Name != nil {
		updates["name"] = *payload.Name
	}
	if payload.Quantity != nil {
		if *payload.Quantity <= 0 {
			return nil, types.NewValidationError("vessel quantity must be a positive integer, got %d", *payload.Quantity)
		}
		updates["quantity"] = *payload.Quantity
	}
	if payload.ActualQuantity != nil {
		updates["actual_quantity"] = *payload.ActualQuantity
	}
	if payload.DischargeEndDate != nil {
		updates["discharge_end_date"] = *payload.DischargeEndDate
	}
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
	}

	var customsFile string
	if payload.CustomsReleaseFile != nil {
		customsFile = *payload.CustomsReleaseFile
	}

	if err := s.db.UpdateVesselWithCascade(vesselID, updates, customsFile, s.dispatcher); err != nil {
		return nil, err
	}

	return s.db.GetVessel(vesselID)
}

// AttachCustomsRelease records a customs-release document for a vessel.
// The cascade completes the vessel and marks customs as received, all in
// one transaction with the document write.
func (s *Service) AttachCustomsRelease(vesselID, fileName string) (*types.Vessel, error) {
	logger := log.With().
		Str("vessel_id", vesselID).
		Str("service", "vessels").
		Logger()

	if fileName == "" {
		return nil, types.NewValidationError("customs release file name is required")
	}
	if _, err := s.db.GetVessel(vesselID); err != nil {
		return nil, err
	}

	if err := s.db.UpdateVesselWithCascade(vesselID, nil, fileName, s.dispatcher); err != nil {
		logger.Error().Err(err).Msg("customs release cascade failed")
		return nil, err
	}

	logger.Info().
		Str("customs_release_file", fileName).
		Msg("customs release received, vessel completed")
	return s.db.GetVessel(vesselID)
}

// DischargeProgress reports discharged-to-date tonnage against the
// vessel's contractual quantity.
func (s *Service) DischargeProgress(vesselID string) (*letters.DischargeProgress, error) {
	vessel, err := s.db.GetVessel(vesselID)
	if err != nil {
		return nil, err
	}
	progress := letters.ComputeDischargeProgress(vessel)
	return &progress, nil
}

// RegisterCascades attaches the customs-release cascade: receiving the
// document completes the vessel, marks customs as received and stores the
// filename, as one update inside the triggering transaction.
func RegisterCascades(dispatcher *events.Dispatcher) {
	dispatcher.Register(events.CustomsReleaseReceivedEvent, func(tx *gorm.DB, event events.Event) error {
		e, ok := event.(events.CustomsReleaseReceived)
		if !ok {
			return fmt.Errorf("unexpected event payload for %s", event.Type())
		}

		result := tx.Model(&types.Vessel{}).
			Where("vessel_id = ?", e.VesselID).
			Updates(map[string]interface{}{
				"status":                 types.VesselStatusCompleted,
				"customs_release_status": types.CustomsStatusReceived,
				"customs_release_file":   e.FileName,
				"updated_at":             time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("vessel %s: %w", e.VesselID, types.ErrNotFound)
		}
		return nil
	})
}

// GinHandlers contains HTTP handlers for vessel endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for vessel endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateVesselHandler handles POST requests to nominate vessels
func (h *GinHandlers) CreateVesselHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload CreateVesselPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		vessel, err := h.service.CreateVessel(payload)
		response.Handle(c, vessel, err)
	}
}

// GetVesselHandler handles GET requests for a single vessel
// URL parameter: vessel_id
func (h *GinHandlers) GetVesselHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vessel, err := h.service.GetVessel(c.Param("vessel_id"))
		response.Handle(c, vessel, err)
	}
}

// ListVesselsHandler handles GET requests for all vessels
func (h *GinHandlers) ListVesselsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vessels, err := h.service.ListVessels()
		response.Handle(c, vessels, err)
	}
}

// UpdateVesselHandler handles PATCH requests to update vessels
// URL parameter: vessel_id
func (h *GinHandlers) UpdateVesselHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload UpdateVesselPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		vessel, err := h.service.UpdateVessel(c.Param("vessel_id"), payload)
		response.Handle(c, vessel, err)
	}
}

// CustomsReleaseHandler handles POST requests to attach customs-release
// documents
// URL parameter: vessel_id
func (h *GinHandlers) CustomsReleaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload CustomsReleasePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		vessel, err := h.service.AttachCustomsRelease(c.Param("vessel_id"), payload.FileName)
		response.Handle(c, vessel, err)
	}
}

// DischargeProgressHandler handles GET requests for a vessel's discharge
// completion
// URL parameter: vessel_id
func (h *GinHandlers) DischargeProgressHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		progress, err := h.service.DischargeProgress(c.Param("vessel_id"))
		response.Handle(c, progress, err)
	}
}
