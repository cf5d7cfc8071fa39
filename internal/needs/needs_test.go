package needs

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cargoflow/tradeops-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "needs_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	err = db.AutoMigrate(
		&types.Need{},
		&types.Request{},
		&types.Contract{},
		&types.Vessel{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedNeed(t *testing.T, db *gorm.DB, needID string, required int64, start, end time.Time) {
	t.Helper()
	need := &types.Need{
		NeedID:               needID,
		Title:                "Wheat import",
		RequiredQuantity:     required,
		UnitOfMeasure:        "MT",
		FulfillmentStartDate: start,
		FulfillmentEndDate:   end,
		Status:               types.NeedStatusActive,
	}
	if err := db.Create(need).Error; err != nil {
		t.Fatalf("failed to seed need: %v", err)
	}
}

// seedFulfillmentChain creates a request under the need, an approved
// contract under the request, and a discharged vessel under the contract.
func seedFulfillmentChain(t *testing.T, db *gorm.DB, needID, suffix string, discharged int64, dischargeEnd time.Time, contractStatus, vesselStatus string) {
	t.Helper()

	requestID := "REQ_" + suffix
	request := &types.Request{
		RequestID: requestID,
		NeedID:    &needID,
		Title:     "Request " + suffix,
		Quantity:  discharged,
		Status:    types.RequestStatusApplied,
	}
	if err := db.Create(request).Error; err != nil {
		t.Fatalf("failed to seed request: %v", err)
	}

	contractID := "CON_" + suffix
	contract := &types.Contract{
		ContractID: contractID,
		RequestID:  requestID,
		Supplier:   "SUPPLIER_A",
		Quantity:   discharged,
		Status:     contractStatus,
	}
	if err := db.Create(contract).Error; err != nil {
		t.Fatalf("failed to seed contract: %v", err)
	}

	vessel := &types.Vessel{
		VesselID:             "VSL_" + suffix,
		ContractID:           contractID,
		Name:                 "MV " + suffix,
		Quantity:             discharged,
		ActualQuantity:       &discharged,
		DischargeEndDate:     &dischargeEnd,
		Status:               vesselStatus,
		CustomsReleaseStatus: types.CustomsStatusPending,
	}
	if err := db.Create(vessel).Error; err != nil {
		t.Fatalf("failed to seed vessel: %v", err)
	}
}

func TestUpdateNeedsProgressFromVessels(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	windowStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	seedNeed(t, db, "NEED_1", 1000, windowStart, windowEnd)

	// Counts: approved contract, discharged vessel, inside the window
	seedFulfillmentChain(t, db, "NEED_1", "in", 400,
		time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		types.ContractStatusApproved, types.VesselStatusDischarged)

	// Outside the window: must not count
	seedFulfillmentChain(t, db, "NEED_1", "late", 700,
		time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC),
		types.ContractStatusApproved, types.VesselStatusDischarged)

	// Unapproved contract: must not count
	seedFulfillmentChain(t, db, "NEED_1", "draft", 300,
		time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		types.ContractStatusDraft, types.VesselStatusDischarged)

	// Vessel still in transit: must not count
	seedFulfillmentChain(t, db, "NEED_1", "transit", 200,
		time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC),
		types.ContractStatusApproved, types.VesselStatusInTransit)

	updated, err := service.UpdateNeedsProgressFromVessels()
	if err != nil {
		t.Fatalf("UpdateNeedsProgressFromVessels returned error: %v", err)
	}
	if updated != 1 {
		t.Errorf("needs updated = %d, want 1", updated)
	}

	need, err := service.GetNeed("NEED_1")
	if err != nil {
		t.Fatalf("GetNeed returned error: %v", err)
	}
	if need.ActualQuantityReceived != 400 {
		t.Errorf("actual quantity = %d, want 400", need.ActualQuantityReceived)
	}
	if need.ProgressPercentage != 40 {
		t.Errorf("progress = %v, want 40", need.ProgressPercentage)
	}
	if need.Status != types.NeedStatusInProgress {
		t.Errorf("status = %q, want %q", need.Status, types.NeedStatusInProgress)
	}
}

func TestUpdateNeedsProgressIncludesWindowBoundaries(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	windowStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	seedNeed(t, db, "NEED_edge", 1000, windowStart, windowEnd)

	// Discharges on the exact window bounds count on both ends
	seedFulfillmentChain(t, db, "NEED_edge", "first", 100, windowStart,
		types.ContractStatusApproved, types.VesselStatusDischarged)
	seedFulfillmentChain(t, db, "NEED_edge", "last", 200, windowEnd,
		types.ContractStatusApproved, types.VesselStatusDischarged)

	if _, err := service.UpdateNeedsProgressFromVessels(); err != nil {
		t.Fatalf("UpdateNeedsProgressFromVessels returned error: %v", err)
	}

	need, err := service.GetNeed("NEED_edge")
	if err != nil {
		t.Fatalf("GetNeed returned error: %v", err)
	}
	if need.ActualQuantityReceived != 300 {
		t.Errorf("actual quantity = %d, want 300", need.ActualQuantityReceived)
	}
}

func TestUpdateNeedsProgressResetsNeedWithNoDeliveries(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	seedNeed(t, db, "NEED_zero", 500,
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))

	// Simulate a stale value from an earlier run
	err := db.Model(&types.Need{}).Where("need_id = ?", "NEED_zero").
		Updates(map[string]interface{}{"actual_quantity_received": 250, "progress_percentage": 50.0}).Error
	if err != nil {
		t.Fatalf("failed to set stale progress: %v", err)
	}

	updated, err := service.UpdateNeedsProgressFromVessels()
	if err != nil {
		t.Fatalf("UpdateNeedsProgressFromVessels returned error: %v", err)
	}
	if updated != 1 {
		t.Errorf("needs updated = %d, want 1", updated)
	}

	need, err := service.GetNeed("NEED_zero")
	if err != nil {
		t.Fatalf("GetNeed returned error: %v", err)
	}
	if need.ActualQuantityReceived != 0 {
		t.Errorf("actual quantity = %d, want 0 after recompute", need.ActualQuantityReceived)
	}
	if need.Status != types.NeedStatusActive {
		t.Errorf("status = %q, want %q", need.Status, types.NeedStatusActive)
	}
}

func TestUpdateNeedProgressStatusDerivation(t *testing.T) {
	tests := []struct {
		name       string
		required   int64
		actual     int64
		wantPct    float64
		wantStatus string
	}{
		{"nothing received", 1000, 0, 0, types.NeedStatusActive},
		{"partial", 1000, 500, 50, types.NeedStatusInProgress},
		{"exactly fulfilled", 1000, 1000, 100, types.NeedStatusFulfilled},
		{"over-delivered clamps percentage", 1000, 1500, 100, types.NeedStatusFulfilled},
		{"fractional percentage", 3000, 1000, 33.33, types.NeedStatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			service := NewService(db)
			seedNeed(t, db, "NEED_st", tt.required,
				time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))

			need, err := service.UpdateNeedProgress("NEED_st", tt.actual)
			if err != nil {
				t.Fatalf("UpdateNeedProgress returned error: %v", err)
			}
			if need.ProgressPercentage != tt.wantPct {
				t.Errorf("percentage = %v, want %v", need.ProgressPercentage, tt.wantPct)
			}
			if need.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", need.Status, tt.wantStatus)
			}
		})
	}
}

func TestUpdateNeedProgressOverwritesTerminalStatus(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	seedNeed(t, db, "NEED_term", 1000,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC))

	err := db.Model(&types.Need{}).Where("need_id = ?", "NEED_term").
		Update("status", types.NeedStatusCancelled).Error
	if err != nil {
		t.Fatalf("failed to cancel need: %v", err)
	}

	// The derived status replaces the cancelled one unconditionally
	need, err := service.UpdateNeedProgress("NEED_term", 400)
	if err != nil {
		t.Fatalf("UpdateNeedProgress returned error: %v", err)
	}
	if need.Status != types.NeedStatusInProgress {
		t.Errorf("status = %q, want %q", need.Status, types.NeedStatusInProgress)
	}
}

func TestUpdateNeedProgressUnknownNeed(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	_, err := service.UpdateNeedProgress("NEED_missing", 100)
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("error = %v, want wrapped ErrNotFound", err)
	}
}

func TestCreateNeedValidation(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		req  CreateNeedRequest
	}{
		{"zero quantity", CreateNeedRequest{Title: "x", RequiredQuantity: 0, FulfillmentStartDate: start, FulfillmentEndDate: end}},
		{"negative quantity", CreateNeedRequest{Title: "x", RequiredQuantity: -10, FulfillmentStartDate: start, FulfillmentEndDate: end}},
		{"inverted window", CreateNeedRequest{Title: "x", RequiredQuantity: 100, FulfillmentStartDate: end, FulfillmentEndDate: start}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateNeed(tt.req)
			var validationErr *types.ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestProgressReportWindowFilter(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	// Fully inside the queried range
	seedNeed(t, db, "NEED_inside", 1000,
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	// Starts before the range: excluded
	seedNeed(t, db, "NEED_straddle", 1000,
		time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	rows, err := service.GetNeedsProgressReport(&start, &end)
	if err != nil {
		t.Fatalf("GetNeedsProgressReport returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("report rows = %d, want 1", len(rows))
	}
	if rows[0].NeedID != "NEED_inside" {
		t.Errorf("reported need = %q, want NEED_inside", rows[0].NeedID)
	}

	// No bounds: everything appears
	rows, err = service.GetNeedsProgressReport(nil, nil)
	if err != nil {
		t.Fatalf("GetNeedsProgressReport returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("unbounded report rows = %d, want 2", len(rows))
	}
}

func TestProgressReportRowContents(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	windowStart := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Now().AddDate(0, 0, 10)
	seedNeed(t, db, "NEED_rep", 1000, windowStart, windowEnd)
	seedFulfillmentChain(t, db, "NEED_rep", "rep", 400,
		time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		types.ContractStatusApproved, types.VesselStatusDischarged)

	if _, err := service.UpdateNeedProgress("NEED_rep", 400); err != nil {
		t.Fatalf("UpdateNeedProgress returned error: %v", err)
	}

	rows, err := service.GetNeedsProgressReport(nil, nil)
	if err != nil {
		t.Fatalf("GetNeedsProgressReport returned error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("report rows = %d, want 1", len(rows))
	}

	row := rows[0]
	if row.DeliveryGap != 600 {
		t.Errorf("delivery gap = %d, want 600", row.DeliveryGap)
	}
	if row.IsOnTrack {
		t.Error("need at 40% marked on track")
	}
	if len(row.LinkedRequests) != 1 {
		t.Errorf("linked requests = %d, want 1", len(row.LinkedRequests))
	}
	if len(row.Deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(row.Deliveries))
	}
	if row.Deliveries[0].VesselID != "VSL_rep" {
		t.Errorf("delivery vessel = %q, want VSL_rep", row.Deliveries[0].VesselID)
	}
	if row.Deliveries[0].RequestTitle != "Request rep" {
		t.Errorf("delivery request title = %q, want \"Request rep\"", row.Deliveries[0].RequestTitle)
	}
	if row.DaysRemaining == nil {
		t.Fatal("days remaining is nil for a need with an end date")
	}
	if *row.DaysRemaining < 9 || *row.DaysRemaining > 11 {
		t.Errorf("days remaining = %d, want about 10", *row.DaysRemaining)
	}
}

func TestIsOnTrackThreshold(t *testing.T) {
	tests := []struct {
		name     string
		actual   int64
		required int64
		want     bool
	}{
		{"exactly ninety percent", 900, 1000, true},
		{"just under ninety percent", 899, 1000, false},
		{"fully delivered", 1000, 1000, true},
		{"over-delivered", 1200, 1000, true},
		{"nothing delivered", 0, 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isOnTrack(tt.actual, tt.required); got != tt.want {
				t.Errorf("isOnTrack(%d, %d) = %v, want %v", tt.actual, tt.required, got, tt.want)
			}
		})
	}
}

func TestDeleteNeed(t *testing.T) {
	db := newTestDB(t)
	service := NewService(db)

	seedNeed(t, db, "NEED_gone", 100,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC))

	if err := service.DeleteNeed("NEED_gone"); err != nil {
		t.Fatalf("DeleteNeed returned error: %v", err)
	}

	if _, err := service.GetNeed("NEED_gone"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("GetNeed after delete = %v, want wrapped ErrNotFound", err)
	}

	if err := service.DeleteNeed("NEED_gone"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("second DeleteNeed = %v, want wrapped ErrNotFound", err)
	}
}
