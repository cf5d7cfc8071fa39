package needs

import (
	"time"

	"github.com/cargoflow/tradeops-api/internal/types"
)

// CreateNeedRequest is the payload for recording a new statement of need.
type CreateNeedRequest struct {
	Title                string    `json:"title"`
	RequiredQuantity     int64     `json:"required_quantity"`
	UnitOfMeasure        string    `json:"unit_of_measure"`
	FulfillmentStartDate time.Time `json:"fulfillment_start_date"`
	FulfillmentEndDate   time.Time `json:"fulfillment_end_date"`
}

// ProgressUpdateRequest is the payload for a manual progress update.
type ProgressUpdateRequest struct {
	ActualQuantity int64 `json:"actual_quantity"`
}

// NeedTotal is one row of the batched aggregation query: the discharged
// tonnage counting toward a need within its fulfillment window.
type NeedTotal struct {
	NeedID string `json:"need_id"`
	Total  int64  `json:"total"`
}

// Delivery is one flattened vessel row in the progress report, annotated
// with the request and contract it arrived under.
type Delivery struct {
	VesselID         string     `json:"vessel_id"`
	VesselName       string     `json:"vessel_name"`
	ContractID       string     `json:"contract_id"`
	RequestTitle     string     `json:"request_title"`
	Status           string     `json:"status"`
	Quantity         int64      `json:"quantity"`
	ActualQuantity   *int64     `json:"actual_quantity,omitempty"`
	DischargeEndDate *time.Time `json:"discharge_end_date,omitempty"`
}

// ReportRow is one need's slice of the consolidated progress report.
// DeliveryGap may be negative when over-delivered; DaysRemaining is
// negative when overdue and nil when the need has no end date.
type ReportRow struct {
	NeedID                 string          `json:"need_id"`
	Title                  string          `json:"title"`
	RequiredQuantity       int64           `json:"required_quantity"`
	UnitOfMeasure          string          `json:"unit_of_measure"`
	FulfillmentStartDate   time.Time       `json:"fulfillment_start_date"`
	FulfillmentEndDate     time.Time       `json:"fulfillment_end_date"`
	ActualQuantityReceived int64           `json:"actual_quantity_received"`
	ProgressPercentage     float64         `json:"progress_percentage"`
	Status                 string          `json:"status"`
	LinkedRequests         []types.Request `json:"linked_requests"`
	Deliveries             []Delivery      `json:"deliveries"`
	DeliveryGap            int64           `json:"delivery_gap"`
	IsOnTrack              bool            `json:"is_on_track"`
	DaysRemaining          *int64          `json:"days_remaining"`
}
