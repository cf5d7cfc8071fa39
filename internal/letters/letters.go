package letters

import (
	"context"
	"errors"
	"time"

	"github.com/cargoflow/tradeops-api/internal/cache"
	"github.com/cargoflow/tradeops-api/internal/config"
	"github.com/cargoflow/tradeops-api/internal/types"
	"github.com/cargoflow/tradeops-api/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service handles letter of credit bookkeeping: the allocation ledger and
// derived allocated/remaining quantities.
type Service struct {
	db     *Database
	cache  *cache.QuantityCache
	policy string
}

// NewService creates a new letters service. The quantity cache may be nil,
// in which case every read recomputes from the junction rows.
func NewService(gormDB *gorm.DB, quantityCache *cache.QuantityCache, overAllocationPolicy string) *Service {
	return &Service{
		db:     NewDatabase(gormDB),
		cache:  quantityCache,
		policy: overAllocationPolicy,
	}
}

// CreateLetterOfCredit opens a new LC with the given face quantity.
func (s *Service) CreateLetterOfCredit(req CreateLetterOfCreditRequest) (*types.LetterOfCredit, error) {
	if req.Quantity <= 0 {
		return nil, types.NewValidationError("letter of credit quantity must be a positive integer, got %d", req.Quantity)
	}

	lc := &types.LetterOfCredit{
		LetterOfCreditID: "LC_" + uuid.New().String(),
		Number:           req.Number,
		Quantity:         req.Quantity,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := s.db.CreateLetterOfCredit(lc); err != nil {
		return nil, err
	}
	return lc, nil
}

// GetLetterOfCredit retrieves an LC by its external id.
func (s *Service) GetLetterOfCredit(lcID string) (*types.LetterOfCredit, error) {
	return s.db.GetLetterOfCredit(lcID)
}

// AllocatedQuantity returns the total tonnage allocated from an LC across
// all vessels. The cached value is used when present; otherwise the sum is
// recomputed from the junction rows and cached.
func (s *Service) AllocatedQuantity(ctx context.Context, lcID string) (int64, error) {
	if _, err := s.db.GetLetterOfCredit(lcID); err != nil {
		return 0, err
	}

	if allocated, ok := s.cache.GetAllocated(ctx, lcID); ok {
		return allocated, nil
	}

	allocated, err := s.db.SumAllocations(lcID)
	if err != nil {
		return 0, err
	}
	s.cache.SetAllocated(ctx, lcID, allocated)
	return allocated, nil
}

// QuantitySummary returns face, allocated and remaining quantities for an
// LC. Remaining may be negative when the LC is over-allocated.
func (s *Service) QuantitySummary(ctx context.Context, lcID string) (*QuantitySummary, error) {
	lc, err := s.db.GetLetterOfCredit(lcID)
	if err != nil {
		return nil, err
	}

	allocated, err := s.AllocatedQuantity(ctx, lcID)
	if err != nil {
		return nil, err
	}

	return &QuantitySummary{
		LetterOfCreditID:  lc.LetterOfCreditID,
		FaceQuantity:      lc.Quantity,
		AllocatedQuantity: allocated,
		RemainingQuantity: lc.Quantity - allocated,
		Timestamp:         time.Now(),
	}, nil
}

// RecordAllocation allocates tonnage from an LC to a vessel. The
// over-allocation policy decides what happens when the new total exceeds
// the LC's face quantity: allow it silently (historical behaviour), log a
// warning, or reject the allocation.
func (s *Service) RecordAllocation(ctx context.Context, lcID string, req AllocationRequest) (*types.VesselLetterOfCredit, error) {
	logger := log.With().
		Str("lc_id", lcID).
		Str("vessel_id", req.VesselID).
		Str("service", "letters").
		Logger()

	if req.Quantity <= 0 {
		return nil, types.NewValidationError("allocation quantity must be a positive integer, got %d", req.Quantity)
	}

	lc, err := s.db.GetLetterOfCredit(lcID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.NewValidationError("letter of credit %s does not exist", lcID)
		}
		return nil, err
	}
	if _, err := s.db.GetVessel(req.VesselID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.NewValidationError("vessel %s does not exist", req.VesselID)
		}
		return nil, err
	}

	allocation := &types.VesselLetterOfCredit{
		AllocationID:     "ALC_" + uuid.New().String(),
		VesselID:         req.VesselID,
		LetterOfCreditID: lcID,
		Quantity:         req.Quantity,
		CreatedAt:        time.Now(),
	}

	reject := s.policy == config.OverAllocationReject
	total, err := s.db.CreateAllocation(allocation, lc.Quantity, reject)
	if err != nil {
		if err == ErrOverAllocated {
			return nil, types.NewValidationError(
				"allocating %d would exceed face quantity %d (already allocated %d)",
				req.Quantity, lc.Quantity, total)
		}
		return nil, err
	}

	if s.policy == config.OverAllocationWarn && total > lc.Quantity {
		logger.Warn().
			Int64("allocated_quantity", total).
			Int64("face_quantity", lc.Quantity).
			Msg("letter of credit is over-allocated")
	}

	s.cache.Invalidate(ctx, lcID)

	logger.Info().
		Str("allocation_id", allocation.AllocationID).
		Int64("quantity", req.Quantity).
		Int64("allocated_quantity", total).
		Msg("recorded allocation")

	return allocation, nil
}

// RemoveAllocation deletes an allocation by id. Repeating the call after
// success yields NotFound, not silent success.
func (s *Service) RemoveAllocation(ctx context.Context, allocationID string) error {
	lcID, err := s.db.DeleteAllocation(allocationID)
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx, lcID)

	log.Info().
		Str("allocation_id", allocationID).
		Str("lc_id", lcID).
		Str("service", "letters").
		Msg("removed allocation")
	return nil
}

// ComputeDischargeProgress derives discharge completion for a vessel. A
// nil actual quantity counts as zero; a zero planned quantity yields zero
// percent rather than dividing by zero.
func ComputeDischargeProgress(vessel *types.Vessel) DischargeProgress {
	var discharged int64
	if vessel.ActualQuantity != nil {
		discharged = *vessel.ActualQuantity
	}

	percent := decimal.Zero
	if vessel.Quantity > 0 {
		percent = decimal.NewFromInt(discharged).
			Div(decimal.NewFromInt(vessel.Quantity)).
			Mul(decimal.NewFromInt(100))
		if percent.GreaterThan(decimal.NewFromInt(100)) {
			percent = decimal.NewFromInt(100)
		}
	}

	return DischargeProgress{
		VesselID:   vessel.VesselID,
		Discharged: discharged,
		Planned:    vessel.Quantity,
		Percent:    percent.Round(2).InexactFloat64(),
		Variance:   discharged - vessel.Quantity,
	}
}

// GinHandlers contains HTTP handlers for letter of credit endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for letter of credit endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateLetterOfCreditHandler handles POST requests to open new LCs
func (h *GinHandlers) CreateLetterOfCreditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateLetterOfCreditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		lc, err := h.service.CreateLetterOfCredit(req)
		response.Handle(c, lc, err)
	}
}

// GetLetterOfCreditHandler handles GET requests for a single LC
// URL parameter: lc_id
func (h *GinHandlers) GetLetterOfCreditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lc, err := h.service.GetLetterOfCredit(c.Param("lc_id"))
		response.Handle(c, lc, err)
	}
}

// GetAllocatedQuantityHandler handles GET requests for an LC's derived
// allocated quantity
// URL parameter: lc_id
func (h *GinHandlers) GetAllocatedQuantityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		allocated, err := h.service.AllocatedQuantity(c.Request.Context(), c.Param("lc_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"allocated_quantity": allocated})
	}
}

// GetQuantitySummaryHandler handles GET requests for an LC's quantity summary
// URL parameter: lc_id
func (h *GinHandlers) GetQuantitySummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.service.QuantitySummary(c.Request.Context(), c.Param("lc_id"))
		response.Handle(c, summary, err)
	}
}

// RecordAllocationHandler handles POST requests to allocate LC tonnage to
// a vessel
// URL parameter: lc_id
func (h *GinHandlers) RecordAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AllocationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		allocation, err := h.service.RecordAllocation(c.Request.Context(), c.Param("lc_id"), req)
		response.Handle(c, allocation, err)
	}
}

// RemoveAllocationHandler handles DELETE requests for allocations
// URL parameter: allocation_id
func (h *GinHandlers) RemoveAllocationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		allocationID := c.Param("allocation_id")
		if err := h.service.RemoveAllocation(c.Request.Context(), allocationID); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"message": "allocation removed"})
	}
}
