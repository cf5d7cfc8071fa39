package types

import (
	"time"

	"gorm.io/gorm"
)

// Need status values
const (
	NeedStatusActive     = "active"
	NeedStatusInProgress = "in_progress"
	NeedStatusFulfilled  = "fulfilled"
	NeedStatusExpired    = "expired"
	NeedStatusCancelled  = "cancelled"
)

// Request status values
const (
	RequestStatusPending    = "pending"
	RequestStatusContracted = "contracted"
	RequestStatusApplied    = "applied"
	RequestStatusApproved   = "approved"
	RequestStatusRejected   = "rejected"
	RequestStatusInProgress = "in_progress"
	RequestStatusCompleted  = "completed"
)

// Contract status values
const (
	ContractStatusDraft       = "draft"
	ContractStatusUnderReview = "under_review"
	ContractStatusApproved    = "approved"
	ContractStatusRejected    = "rejected"
)

// Vessel status values
const (
	VesselStatusNominated   = "nominated"
	VesselStatusConfirmed   = "confirmed"
	VesselStatusInTransit   = "in_transit"
	VesselStatusArrived     = "arrived"
	VesselStatusDischarging = "discharging"
	VesselStatusDischarged  = "discharged"
	VesselStatusCompleted   = "completed"
)

// Customs release status values
const (
	CustomsStatusPending  = "pending"
	CustomsStatusReceived = "received"
	CustomsStatusVerified = "verified"
)

// Need is a demand-side requirement with a quantity target and a
// fulfillment time window. ActualQuantityReceived and ProgressPercentage
// are mutated only by the progress aggregator.
type Need struct {
	gorm.Model             `json:"-"`
	NeedID                 string    `gorm:"uniqueIndex" json:"need_id"`
	Title                  string    `json:"title"`
	RequiredQuantity       int64     `json:"required_quantity"`
	UnitOfMeasure          string    `json:"unit_of_measure"`
	FulfillmentStartDate   time.Time `json:"fulfillment_start_date"`
	FulfillmentEndDate     time.Time `json:"fulfillment_end_date"`
	ActualQuantityReceived int64     `json:"actual_quantity_received"`
	ProgressPercentage     float64   `json:"progress_percentage"`
	Status                 string    `json:"status"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Request is a contract request raised against a Need. NeedID is nullable:
// a request may exist before being linked to a need.
type Request struct {
	gorm.Model `json:"-"`
	RequestID  string    `gorm:"uniqueIndex" json:"request_id"`
	NeedID     *string   `gorm:"index" json:"need_id,omitempty"`
	Title      string    `json:"title"`
	Quantity   int64     `json:"quantity"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Contract is a supplier contract fulfilling a Request.
type Contract struct {
	gorm.Model `json:"-"`
	ContractID string    `gorm:"uniqueIndex" json:"contract_id"`
	RequestID  string    `gorm:"index" json:"request_id"`
	Supplier   string    `json:"supplier"`
	Quantity   int64     `json:"quantity"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Vessel is a nominated shipment under a Contract. Quantity is the
// contractual tonnage; ActualQuantity is discharged-to-date and stays nil
// until discharge reporting begins.
type Vessel struct {
	gorm.Model           `json:"-"`
	VesselID             string     `gorm:"uniqueIndex" json:"vessel_id"`
	ContractID           string     `gorm:"index" json:"contract_id"`
	Name                 string     `json:"name"`
	Quantity             int64      `json:"quantity"`
	ActualQuantity       *int64     `json:"actual_quantity,omitempty"`
	DischargeEndDate     *time.Time `json:"discharge_end_date,omitempty"`
	Status               string     `json:"status"`
	CustomsReleaseStatus string     `json:"customs_release_status"`
	CustomsReleaseFile   string     `json:"customs_release_file,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// LetterOfCredit carries a face quantity that gets allocated across
// vessels. Allocated and remaining quantities are always derived from the
// junction rows, never stored on this row.
type LetterOfCredit struct {
	gorm.Model       `json:"-"`
	LetterOfCreditID string    `gorm:"uniqueIndex" json:"letter_of_credit_id"`
	Number           string    `json:"number"`
	Quantity         int64     `json:"quantity"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// VesselLetterOfCredit links one Vessel to one LetterOfCredit with the
// tonnage allocated from that LC to that vessel.
type VesselLetterOfCredit struct {
	gorm.Model       `json:"-"`
	AllocationID     string    `gorm:"uniqueIndex" json:"allocation_id"`
	VesselID         string    `gorm:"index" json:"vessel_id"`
	LetterOfCreditID string    `gorm:"index" json:"letter_of_credit_id"`
	Quantity         int64     `json:"quantity"`
	CreatedAt        time.Time `json:"created_at"`
}
