package needs

import (
	"math"
	"time"

	"github.com/cargoflow/tradeops-api/internal/types"
	"github.com/cargoflow/tradeops-api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// onTrackThreshold classifies a need as on track when received quantity
// reaches 90% of the requirement.
var onTrackThreshold = decimal.RequireFromString("0.9")

// Service handles statements of need and their fulfillment progress.
type Service struct {
	db *Database
}

// NewService creates a new needs service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// CreateNeed records a new statement of need.
func (s *Service) CreateNeed(req CreateNeedRequest) (*types.Need, error) {
	if req.RequiredQuantity <= 0 {
		return nil, types.NewValidationError("required quantity must be a positive integer, got %d", req.RequiredQuantity)
	}
	if req.FulfillmentEndDate.Before(req.FulfillmentStartDate) {
		return nil, types.NewValidationError("fulfillment window end precedes its start")
	}

	need := &types.Need{
		NeedID:               "NEED_" + uuid.New().String(),
		Title:                req.Title,
		RequiredQuantity:     req.RequiredQuantity,
		UnitOfMeasure:        req.UnitOfMeasure,
		FulfillmentStartDate: req.FulfillmentStartDate,
		FulfillmentEndDate:   req.FulfillmentEndDate,
		Status:               types.NeedStatusActive,
		CreatedAt:            time.Now(),
		UpdatedAt:            time.Now(),
	}

	if err := s.db.CreateNeed(need); err != nil {
		return nil, err
	}
	return need, nil
}

// GetNeed retrieves a need by its external id.
func (s *Service) GetNeed(needID string) (*types.Need, error) {
	return s.db.GetNeed(needID)
}

// ListNeeds retrieves all needs, newest first.
func (s *Service) ListNeeds() ([]types.Need, error) {
	return s.db.ListNeeds()
}

// DeleteNeed removes a need. The schema permits this even with linked
// requests; it is a data-loss operation left to operator judgement.
func (s *Service) DeleteNeed(needID string) error {
	return s.db.DeleteNeed(needID)
}

// UpdateNeedsProgressFromVessels recomputes every active need's received
// quantity from discharged vessels whose discharge end date falls inside
// the need's fulfillment window, then applies each need's progress update.
// Each need's update is independent: a failure on one need does not undo
// updates already applied to others.
func (s *Service) UpdateNeedsProgressFromVessels() (int, error) {
	logger := log.With().Str("service", "needs").Logger()
	logger.Info().Msg("starting batch progress update from vessels")

	totals, err := s.db.GetActiveNeedTotals()
	if err != nil {
		logger.Error().Err(err).Msg("failed to aggregate need totals")
		return 0, err
	}

	updated := 0
	for _, total := range totals {
		if _, err := s.UpdateNeedProgress(total.NeedID, total.Total); err != nil {
			logger.Error().
				Err(err).
				Str("need_id", total.NeedID).
				Msg("failed to update need progress, continuing with remaining needs")
			continue
		}
		updated++
	}

	logger.Info().
		Int("needs_considered", len(totals)).
		Int("needs_updated", updated).
		Msg("completed batch progress update")
	return updated, nil
}

// UpdateNeedProgress sets a need's received quantity and derives its
// percentage and status. The derived status overwrites whatever status the
// need carried, terminal states included; that matches the historical
// behaviour of the progress pipeline.
func (s *Service) UpdateNeedProgress(needID string, actualQuantity int64) (*types.Need, error) {
	need, err := s.db.GetNeed(needID)
	if err != nil {
		return nil, err
	}

	progress := progressPercentage(actualQuantity, need.RequiredQuantity)
	percentage := clampPercentage(progress)

	var status string
	switch {
	case progress.GreaterThanOrEqual(decimal.NewFromInt(100)):
		status = types.NeedStatusFulfilled
	case progress.GreaterThan(decimal.Zero):
		status = types.NeedStatusInProgress
	default:
		status = types.NeedStatusActive
	}

	if err := s.db.UpdateNeedProgress(needID, actualQuantity, percentage, status); err != nil {
		return nil, err
	}

	need.ActualQuantityReceived = actualQuantity
	need.ProgressPercentage = percentage
	need.Status = status
	need.UpdatedAt = time.Now()

	log.Info().
		Str("need_id", needID).
		Int64("actual_quantity", actualQuantity).
		Float64("progress_percentage", percentage).
		Str("status", status).
		Str("service", "needs").
		Msg("updated need progress")

	return need, nil
}

// GetNeedsProgressReport builds the consolidated need-vs-delivery report.
// When date bounds are given, only needs whose fulfillment window falls
// fully within the range are included. Deliveries list every vessel under
// the need's contracts regardless of vessel status.
func (s *Service) GetNeedsProgressReport(startDate, endDate *time.Time) ([]ReportRow, error) {
	needs, err := s.db.GetNeedsInWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}

	needIDs := make([]string, 0, len(needs))
	for _, need := range needs {
		needIDs = append(needIDs, need.NeedID)
	}

	requests, err := s.db.GetRequestsByNeedIDs(needIDs)
	if err != nil {
		return nil, err
	}

	requestIDs := make([]string, 0, len(requests))
	requestsByNeed := make(map[string][]types.Request)
	requestTitles := make(map[string]string)
	requestNeed := make(map[string]string)
	for _, request := range requests {
		if request.NeedID == nil {
			continue
		}
		requestIDs = append(requestIDs, request.RequestID)
		requestsByNeed[*request.NeedID] = append(requestsByNeed[*request.NeedID], request)
		requestTitles[request.RequestID] = request.Title
		requestNeed[request.RequestID] = *request.NeedID
	}

	contracts, err := s.db.GetContractsByRequestIDs(requestIDs)
	if err != nil {
		return nil, err
	}

	contractIDs := make([]string, 0, len(contracts))
	contractRequest := make(map[string]string)
	for _, contract := range contracts {
		contractIDs = append(contractIDs, contract.ContractID)
		contractRequest[contract.ContractID] = contract.RequestID
	}

	vessels, err := s.db.GetVesselsByContractIDs(contractIDs)
	if err != nil {
		return nil, err
	}

	deliveriesByNeed := make(map[string][]Delivery)
	for _, vessel := range vessels {
		requestID := contractRequest[vessel.ContractID]
		needID, ok := requestNeed[requestID]
		if !ok {
			continue
		}
		deliveriesByNeed[needID] = append(deliveriesByNeed[needID], Delivery{
			VesselID:         vessel.VesselID,
			VesselName:       vessel.Name,
			ContractID:       vessel.ContractID,
			RequestTitle:     requestTitles[requestID],
			Status:           vessel.Status,
			Quantity:         vessel.Quantity,
			ActualQuantity:   vessel.ActualQuantity,
			DischargeEndDate: vessel.DischargeEndDate,
		})
	}

	now := time.Now()
	rows := make([]ReportRow, 0, len(needs))
	for _, need := range needs {
		row := ReportRow{
			NeedID:                 need.NeedID,
			Title:                  need.Title,
			RequiredQuantity:       need.RequiredQuantity,
			UnitOfMeasure:          need.UnitOfMeasure,
			FulfillmentStartDate:   need.FulfillmentStartDate,
			FulfillmentEndDate:     need.FulfillmentEndDate,
			ActualQuantityReceived: need.ActualQuantityReceived,
			ProgressPercentage:     need.ProgressPercentage,
			Status:                 need.Status,
			LinkedRequests:         requestsByNeed[need.NeedID],
			Deliveries:             deliveriesByNeed[need.NeedID],
			DeliveryGap:            need.RequiredQuantity - need.ActualQuantityReceived,
			IsOnTrack:              isOnTrack(need.ActualQuantityReceived, need.RequiredQuantity),
		}
		if !need.FulfillmentEndDate.IsZero() {
			days := int64(math.Ceil(need.FulfillmentEndDate.Sub(now).Hours() / 24))
			row.DaysRemaining = &days
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// progressPercentage returns the unclamped completion ratio as a
// percentage, zero when the requirement is not positive.
func progressPercentage(actual, required int64) decimal.Decimal {
	if required <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(actual).
		Div(decimal.NewFromInt(required)).
		Mul(decimal.NewFromInt(100))
}

// clampPercentage bounds the stored percentage to [0, 100] with two
// decimal places.
func clampPercentage(progress decimal.Decimal) float64 {
	if progress.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	if progress.LessThan(decimal.Zero) {
		return 0
	}
	return progress.Round(2).InexactFloat64()
}

// isOnTrack applies the fixed 90% delivery threshold.
func isOnTrack(actual, required int64) bool {
	target := decimal.NewFromInt(required).Mul(onTrackThreshold)
	return decimal.NewFromInt(actual).GreaterThanOrEqual(target)
}

// GinHandlers contains HTTP handlers for need endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for need endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateNeedHandler handles POST requests to record new needs
func (h *GinHandlers) CreateNeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateNeedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		need, err := h.service.CreateNeed(req)
		response.Handle(c, need, err)
	}
}

// GetNeedHandler handles GET requests for a single need
// URL parameter: need_id
func (h *GinHandlers) GetNeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		need, err := h.service.GetNeed(c.Param("need_id"))
		response.Handle(c, need, err)
	}
}

// ListNeedsHandler handles GET requests for all needs
func (h *GinHandlers) ListNeedsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		needs, err := h.service.ListNeeds()
		response.Handle(c, needs, err)
	}
}

// DeleteNeedHandler handles DELETE requests for needs
// URL parameter: need_id
func (h *GinHandlers) DeleteNeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.DeleteNeed(c.Param("need_id")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "need deleted"})
	}
}

// UpdateProgressHandler handles POST requests to run the batch progress
// update across all active needs
func (h *GinHandlers) UpdateProgressHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		updated, err := h.service.UpdateNeedsProgressFromVessels()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{
			"message":       "needs progress updated from vessels",
			"needs_updated": updated,
		})
	}
}

// PatchProgressHandler handles PATCH requests to set one need's received
// quantity directly
// URL parameter: need_id
func (h *GinHandlers) PatchProgressHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProgressUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		need, err := h.service.UpdateNeedProgress(c.Param("need_id"), req.ActualQuantity)
		response.Handle(c, need, err)
	}
}

// ProgressReportHandler handles GET requests for the consolidated progress
// report. Query parameters startDate and endDate are optional ISO dates.
func (h *GinHandlers) ProgressReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		startDate, err := parseDateParam(c.Query("startDate"))
		if err != nil {
			response.BadRequest(c, "invalid startDate, expected an ISO date")
			return
		}
		endDate, err := parseDateParam(c.Query("endDate"))
		if err != nil {
			response.BadRequest(c, "invalid endDate, expected an ISO date")
			return
		}

		rows, err := h.service.GetNeedsProgressReport(startDate, endDate)
		response.Handle(c, rows, err)
	}
}

// parseDateParam accepts RFC 3339 timestamps and plain ISO dates.
func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
