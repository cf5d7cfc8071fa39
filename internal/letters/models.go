package letters

import (
	"time"
)

// QuantitySummary reports an LC's face quantity against its allocations.
// Remaining is not clamped at zero: a negative value signals
// over-allocation.
type QuantitySummary struct {
	LetterOfCreditID  string    `json:"letter_of_credit_id"`
	FaceQuantity      int64     `json:"face_quantity"`
	AllocatedQuantity int64     `json:"allocated_quantity"`
	RemainingQuantity int64     `json:"remaining_quantity"`
	Timestamp         time.Time `json:"timestamp"`
}

// DischargeProgress reports discharged-to-date tonnage against a vessel's
// contractual quantity. Percent is clamped to 100; Variance is signed so
// callers can classify shortfall, excess or exact match.
type DischargeProgress struct {
	VesselID   string  `json:"vessel_id"`
	Discharged int64   `json:"discharged"`
	Planned    int64   `json:"planned"`
	Percent    float64 `json:"percent"`
	Variance   int64   `json:"variance"`
}

// CreateLetterOfCreditRequest is the payload for opening a new LC.
type CreateLetterOfCreditRequest struct {
	Number   string `json:"number"`
	Quantity int64  `json:"quantity"`
}

// AllocationRequest is the payload for allocating LC tonnage to a vessel.
type AllocationRequest struct {
	VesselID string `json:"vessel_id" binding:"required"`
	Quantity int64  `json:"quantity"`
}
