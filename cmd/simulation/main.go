package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cargoflow/tradeops-api/internal/auth"
	"github.com/cargoflow/tradeops-api/internal/config"
	"github.com/cargoflow/tradeops-api/internal/contracts"
	"github.com/cargoflow/tradeops-api/internal/database"
	"github.com/cargoflow/tradeops-api/internal/events"
	"github.com/cargoflow/tradeops-api/internal/letters"
	"github.com/cargoflow/tradeops-api/internal/needs"
	"github.com/cargoflow/tradeops-api/internal/requests"
	"github.com/cargoflow/tradeops-api/internal/types"
	"github.com/cargoflow/tradeops-api/internal/vessels"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	minNeeds      = 5
	maxNeeds      = 25
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
	jwtSecret     = "tradeops-secret-key"
)

var commodities = []string{"WHEAT", "CORN", "SOYBEAN", "SUGAR", "RICE"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the trade-operations API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"need":     {name: "Create Need"},
			"request":  {name: "Create Request"},
			"contract": {name: "Create Contract"},
			"approve":  {name: "Approve Contract"},
			"vessel":   {name: "Create Vessel"},
			"patch":    {name: "Update Vessel"},
			"lc":       {name: "Create LC"},
			"allocate": {name: "Record Allocation"},
			"customs":  {name: "Customs Release"},
			"progress": {name: "Update Progress"},
			"report":   {name: "Progress Report"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"jwt_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Token, nil
}

// post sends an authenticated POST and decodes the response envelope into out
func (sc *simulationClient) post(statKey, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest("POST", sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	return sc.do(statKey, req, out)
}

// patch sends an authenticated PATCH and decodes the response envelope into out
func (sc *simulationClient) patch(statKey, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("PATCH", sc.baseURL+path, bytes.NewBuffer(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	return sc.do(statKey, req, out)
}

// get sends an authenticated GET and decodes the response envelope into out
func (sc *simulationClient) get(statKey, path string, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	req, err := http.NewRequest("GET", sc.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))

	return sc.do(statKey, req, out)
}

func (sc *simulationClient) do(statKey string, req *http.Request, out interface{}) error {
	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		sc.stats[statKey].failures++
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Str("path", req.URL.Path).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	envelope := struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data"`
	}{Data: out}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 110))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 110))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 110))
}

// seedNeedChain drives one need through the whole import workflow:
// request, contract, approval, LC allocation, vessel discharge and customs
// release. Roughly a third of vessels discharge outside the fulfillment
// window so the report shows off-track needs too.
func (sc *simulationClient) seedNeedChain(workerID int) (string, error) {
	windowStart := time.Now().AddDate(0, -1, 0)
	windowEnd := time.Now().AddDate(0, 1, 0)
	required := int64(rand.Intn(9000) + 1000)

	var need types.Need
	err := sc.post("need", "/api/v1/needs", map[string]interface{}{
		"title":                  fmt.Sprintf("%s import W%d", commodities[rand.Intn(len(commodities))], workerID),
		"required_quantity":      required,
		"unit_of_measure":        "MT",
		"fulfillment_start_date": windowStart,
		"fulfillment_end_date":   windowEnd,
	}, &need)
	if err != nil {
		return "", fmt.Errorf("create need: %w", err)
	}

	var request types.Request
	err = sc.post("request", "/api/v1/requests", map[string]interface{}{
		"need_id":  need.NeedID,
		"title":    need.Title + " request",
		"quantity": required,
	}, &request)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	var contract types.Contract
	err = sc.post("contract", "/api/v1/contracts", map[string]interface{}{
		"request_id": request.RequestID,
		"supplier":   fmt.Sprintf("SUPPLIER_%d", rand.Intn(10)),
		"quantity":   required,
	}, &contract)
	if err != nil {
		return "", fmt.Errorf("create contract: %w", err)
	}

	err = sc.post("approve", fmt.Sprintf("/api/v1/contracts/%s/approve", contract.ContractID), nil, &contract)
	if err != nil {
		return "", fmt.Errorf("approve contract: %w", err)
	}

	var vessel types.Vessel
	err = sc.post("vessel", "/api/v1/vessels", map[string]interface{}{
		"contract_id": contract.ContractID,
		"name":        fmt.Sprintf("MV WORKER %d-%d", workerID, rand.Intn(1000)),
		"quantity":    required,
	}, &vessel)
	if err != nil {
		return "", fmt.Errorf("create vessel: %w", err)
	}

	var lc types.LetterOfCredit
	err = sc.post("lc", "/api/v1/letters-of-credit", map[string]interface{}{
		"number":   fmt.Sprintf("LC-%d-%d", workerID, rand.Intn(100000)),
		"quantity": required,
	}, &lc)
	if err != nil {
		return "", fmt.Errorf("create lc: %w", err)
	}

	err = sc.post("allocate", fmt.Sprintf("/api/v1/letters-of-credit/%s/allocations", lc.LetterOfCreditID), map[string]interface{}{
		"vessel_id": vessel.VesselID,
		"quantity":  required,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("record allocation: %w", err)
	}

	// Discharge somewhere between 40% and 110% of the contractual quantity
	discharged := required * int64(rand.Intn(70)+40) / 100
	dischargeEnd := time.Now().AddDate(0, 0, -rand.Intn(10))
	if rand.Intn(3) == 0 {
		// Outside the window: these must not count toward the need
		dischargeEnd = windowEnd.AddDate(0, 0, rand.Intn(10)+1)
	}

	err = sc.patch("patch", fmt.Sprintf("/api/v1/vessels/%s", vessel.VesselID), map[string]interface{}{
		"status":             types.VesselStatusDischarged,
		"actual_quantity":    discharged,
		"discharge_end_date": dischargeEnd,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("update vessel: %w", err)
	}

	// Half the discharged vessels get their customs release straight away
	if rand.Intn(2) == 0 {
		err = sc.post("customs", fmt.Sprintf("/api/v1/vessels/%s/customs-release", vessel.VesselID), map[string]interface{}{
			"file_name": fmt.Sprintf("customs-%s.pdf", vessel.VesselID),
		}, nil)
		if err != nil {
			return "", fmt.Errorf("customs release: %w", err)
		}
	}

	log.Info().
		Int("worker_id", workerID).
		Str("need_id", need.NeedID).
		Int64("required_quantity", required).
		Int64("discharged", discharged).
		Time("discharge_end", dischargeEnd).
		Msg("Seeded need chain")

	return need.NeedID, nil
}

// main runs the trade-operations simulation
// It starts a local API server and seeds concurrent import workflows
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	targetNeeds := rand.Intn(maxNeeds-minNeeds) + minNeeds
	log.Info().Int("target_needs", targetNeeds).Msg("Starting simulation")

	needsChan := make(chan string, targetNeeds)
	var wg sync.WaitGroup

	startTime := time.Now()
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < targetNeeds/numWorkers; j++ {
				needID, err := simClient.seedNeedChain(workerID)
				if err != nil {
					log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to seed need chain")
					continue
				}
				needsChan <- needID
				time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	close(needsChan)

	var needIDs []string
	for needID := range needsChan {
		needIDs = append(needIDs, needID)
	}
	log.Info().Int("needs_seeded", len(needIDs)).Msg("All need chains seeded")

	// Run the batch aggregation over everything just seeded
	var progressResult struct {
		Message      string `json:"message"`
		NeedsUpdated int    `json:"needs_updated"`
	}
	if err := simClient.post("progress", "/api/v1/internal/needs/update-progress", nil, &progressResult); err != nil {
		log.Fatal().Err(err).Msg("Failed to run progress update")
	}
	log.Info().Int("needs_updated", progressResult.NeedsUpdated).Msg("Batch progress update completed")

	// Pull the consolidated report
	var report []needs.ReportRow
	if err := simClient.get("report", "/api/v1/needs/progress-report", &report); err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch progress report")
	}

	// Summarise outcomes
	statusCounts := make(map[string]int)
	onTrack := 0
	var totalRequired, totalReceived int64
	for _, row := range report {
		statusCounts[row.Status]++
		if row.IsOnTrack {
			onTrack++
		}
		totalRequired += row.RequiredQuantity
		totalReceived += row.ActualQuantityReceived
	}

	duration := time.Since(startTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("TRADE OPERATIONS SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Need Statistics
---------------
Needs Seeded:    %d
Report Rows:     %d
On Track:        %d
Total Required:  %d MT
Total Received:  %d MT
Duration:        %v

Status Distribution
-------------------
`, len(needIDs), len(report), onTrack, totalRequired, totalReceived, duration.Round(time.Millisecond))

	maxCount := 0
	for _, count := range statusCounts {
		if count > maxCount {
			maxCount = count
		}
	}
	for status, count := range statusCounts {
		barLength := int(float64(count) / float64(maxCount) * 20)
		bar := strings.Repeat("#", barLength)
		fmt.Printf("%-12s: %s (%d)\n", status, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	simClient.printPerformanceStats()
}

// startServer initializes and starts the trade-operations API server
// Sets up all required services, handlers and routes
func startServer() error {
	cfg := config.Config{
		Port:                 "8080",
		DBDriver:             "sqlite",
		DBDSN:                "simulation.db",
		JWTSecret:            jwtSecret,
		OverAllocationPolicy: config.OverAllocationAllow,
	}

	db, err := database.NewDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	dispatcher := events.NewDispatcher()
	requests.RegisterCascades(dispatcher)
	vessels.RegisterCascades(dispatcher)

	// Initialize services
	authService := auth.NewService(cfg.JWTSecret)
	if err := authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret); err != nil {
		return err
	}
	needsService := needs.NewService(db)
	requestsService := requests.NewService(db)
	contractsService := contracts.NewService(db, dispatcher)
	vesselsService := vessels.NewService(db, dispatcher)
	lettersService := letters.NewService(db, nil, cfg.OverAllocationPolicy)

	// Initialize router
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	needsHandlers := needs.NewGinHandlers(needsService)
	requestsHandlers := requests.NewGinHandlers(requestsService)
	contractsHandlers := contracts.NewGinHandlers(contractsService)
	vesselsHandlers := vessels.NewGinHandlers(vesselsService)
	lettersHandlers := letters.NewGinHandlers(lettersService)

	// Setup routes without middleware; the simulation runs against a
	// throwaway local server
	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		v1.POST("/needs", needsHandlers.CreateNeedHandler())
		v1.GET("/needs", needsHandlers.ListNeedsHandler())
		v1.GET("/needs/progress-report", needsHandlers.ProgressReportHandler())
		v1.GET("/needs/:need_id", needsHandlers.GetNeedHandler())
		v1.PATCH("/needs/:need_id/progress", needsHandlers.PatchProgressHandler())

		v1.POST("/requests", requestsHandlers.CreateRequestHandler())
		v1.GET("/requests/:request_id", requestsHandlers.GetRequestHandler())

		v1.POST("/contracts", contractsHandlers.CreateContractHandler())
		v1.GET("/contracts/:contract_id", contractsHandlers.GetContractHandler())
		v1.POST("/contracts/:contract_id/approve", contractsHandlers.ApproveContractHandler())

		v1.POST("/vessels", vesselsHandlers.CreateVesselHandler())
		v1.GET("/vessels/:vessel_id", vesselsHandlers.GetVesselHandler())
		v1.PATCH("/vessels/:vessel_id", vesselsHandlers.UpdateVesselHandler())
		v1.POST("/vessels/:vessel_id/customs-release", vesselsHandlers.CustomsReleaseHandler())
		v1.GET("/vessels/:vessel_id/discharge-progress", vesselsHandlers.DischargeProgressHandler())

		v1.POST("/letters-of-credit", lettersHandlers.CreateLetterOfCreditHandler())
		v1.GET("/letters-of-credit/:lc_id", lettersHandlers.GetLetterOfCreditHandler())
		v1.GET("/letters-of-credit/:lc_id/allocated-quantity", lettersHandlers.GetAllocatedQuantityHandler())
		v1.POST("/letters-of-credit/:lc_id/allocations", lettersHandlers.RecordAllocationHandler())
		v1.DELETE("/allocations/:allocation_id", lettersHandlers.RemoveAllocationHandler())

		v1.POST("/internal/needs/update-progress", needsHandlers.UpdateProgressHandler())
	}

	// Start the server
	return router.Run(":" + cfg.Port)
}
