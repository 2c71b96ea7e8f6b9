//go:build integration
// +build integration

// Package integration provides end-to-end tests for the MetShield claim
// scoring pipeline.
//
// These tests verify the COMPLETE flow against a running server:
//
//	Claim → Indicators → Raw Score → Probability → Risk Tier → Feed/Alerts
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. CLAIM: One healthcare billing event (patient, provider, diagnosis,
//    amount, verification flags).
//
// 2. INDICATOR: A weighted CEL expression describing a fraud pattern.
//    Every enabled indicator is evaluated for every claim; fired weights
//    sum into the raw score.
//
// 3. PROBABILITY: The raw score mapped through a logistic curve into
//    [0,1].
//
// 4. RISK TIER: probability >= 0.9 CRITICAL, >= 0.7 HIGH, >= 0.3 MEDIUM,
//    else LOW; a raw score of exactly 0 is MINIMAL. HIGH and CRITICAL
//    raise alerts.
//
// The server ships with six builtin indicators, so no seeding is needed.
package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("METSHIELD_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching MetShield's API contract)
// ============================================================================

// ClaimRequest is the claim sent to POST /api/v1/claims
type ClaimRequest struct {
	ClaimID           string  `json:"claim_id"`
	PatientID         string  `json:"patient_id"`
	DoctorID          string  `json:"doctor_id"`
	PatientAge        int     `json:"patient_age"`
	PatientGender     string  `json:"patient_gender"`
	MedicalScheme     string  `json:"medical_scheme"`
	DiagnosisCode     string  `json:"diagnosis_code"`
	ClaimAmount       float64 `json:"claim_amount"`
	FacilityLocation  string  `json:"facility_location"`
	PatientLocation   string  `json:"patient_location,omitempty"`
	BiometricVerified bool    `json:"biometric_verified"`
	PatientPresent    bool    `json:"patient_present"`
	EmergencyCase     bool    `json:"emergency_case"`
	WeekendClaim      bool    `json:"weekend_claim"`
	Timestamp         string  `json:"timestamp,omitempty"`
}

// ScoreResponse is what POST /api/v1/claims returns
type ScoreResponse struct {
	ClaimID     string   `json:"claim_id"`
	RawScore    int      `json:"raw_score"`
	Probability float64  `json:"fraud_probability"`
	Tier        string   `json:"risk_level"`
	Indicators  []string `json:"indicators"`
	Alert       bool     `json:"alert"`
	FromCache   bool     `json:"from_cache"`
	Metadata    struct {
		TraceID string `json:"trace_id"`
		TotalMs int64  `json:"total_ms"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func cleanClaim(id string) ClaimRequest {
	return ClaimRequest{
		ClaimID:           id,
		PatientID:         "PAT-IT-001",
		DoctorID:          "DOC-IT-001",
		PatientAge:        31,
		PatientGender:     "F",
		MedicalScheme:     "NHIF",
		DiagnosisCode:     "B50.9",
		ClaimAmount:       800,
		FacilityLocation:  "Nairobi",
		PatientLocation:   "Nairobi",
		BiometricVerified: true,
		PatientPresent:    true,
		Timestamp:         "2026-03-04T10:00:00Z",
	}
}

func score(t *testing.T, config TestConfig, req ClaimRequest) ScoreResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(config.BaseURL+"/api/v1/claims", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	var result ScoreResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	return result
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// ============================================================================
// SCENARIO 1: Clean Claim (No Indicators)
// ============================================================================

func TestCleanClaim_Minimal(t *testing.T) {
	/*
	   SCENARIO: A verified in-person malaria claim at a cost inside the
	   expected band, on a weekday, at the patient's own location.

	   EXPECTED BEHAVIOR:
	   - No indicator fires, raw score 0
	   - Raw score 0 maps to MINIMAL regardless of the logistic floor
	   - No alert
	*/
	config := getTestConfig()

	result := score(t, config, cleanClaim(uniqueID("CLM-CLEAN")))

	if result.RawScore != 0 {
		t.Errorf("Expected raw score 0, got %d (indicators %v)", result.RawScore, result.Indicators)
	}
	if result.Tier != "MINIMAL" {
		t.Errorf("Expected MINIMAL, got %s", result.Tier)
	}
	if result.Alert {
		t.Error("Clean claim must not alert")
	}

	t.Logf("✓ Clean claim passed: tier=%s, p=%.3f", result.Tier, result.Probability)
}

// ============================================================================
// SCENARIO 2: Ghost Patient (Strongest Single Indicator)
// ============================================================================

func TestGhostPatient_Alert(t *testing.T) {
	/*
	   SCENARIO: A claim with no biometric verification for a diagnosis
	   the scheme does not recognize.

	   EXPECTED BEHAVIOR:
	   - ghost_patient fires (40) and diagnosis_mismatch fires (25)
	   - Raw score 65 maps to a probability above 0.9 → CRITICAL
	   - Alert raised

	   WHY THIS MATTERS:
	   Billing for patients who were never in the facility is the
	   dominant fraud pattern in scheme audits.
	*/
	config := getTestConfig()

	req := cleanClaim(uniqueID("CLM-GHOST"))
	req.BiometricVerified = false
	req.PatientPresent = false
	req.DiagnosisCode = "X99.9"

	result := score(t, config, req)

	if result.RawScore != 65 {
		t.Errorf("Expected raw score 65, got %d (indicators %v)", result.RawScore, result.Indicators)
	}
	if result.Tier != "CRITICAL" {
		t.Errorf("Expected CRITICAL, got %s", result.Tier)
	}
	if !result.Alert {
		t.Error("Expected alert for ghost patient claim")
	}

	hasGhost := false
	for _, ind := range result.Indicators {
		if ind == "ghost_patient" {
			hasGhost = true
		}
	}
	if !hasGhost {
		t.Errorf("Expected ghost_patient indicator, got %v", result.Indicators)
	}

	t.Logf("✓ Ghost patient alerted: tier=%s, p=%.3f, indicators=%v",
		result.Tier, result.Probability, result.Indicators)
}

// ============================================================================
// SCENARIO 3: Cost Outlier Boundary
// ============================================================================

func TestCostOutlier_Boundary(t *testing.T) {
	/*
	   SCENARIO: Malaria (B50.9) has an expected cost band of 350-1200.
	   The cost_outlier indicator fires when the amount exceeds 1.5x the
	   band maximum, so the boundary is exactly 1800.

	   WHY THIS TEST:
	   Boundary conditions catch off-by-one errors in threshold logic.
	*/
	config := getTestConfig()

	t.Run("ExactlyAtBoundary", func(t *testing.T) {
		req := cleanClaim(uniqueID("CLM-COST-AT"))
		req.ClaimAmount = 1800.00
		result := score(t, config, req)

		for _, ind := range result.Indicators {
			if ind == "cost_outlier" {
				t.Errorf("cost_outlier must not fire at exactly 1.5x max (1800), got %v", result.Indicators)
			}
		}
		t.Logf("✓ 1800.00 exactly → tier=%s", result.Tier)
	})

	t.Run("JustAboveBoundary", func(t *testing.T) {
		req := cleanClaim(uniqueID("CLM-COST-ABOVE"))
		req.ClaimAmount = 1800.01
		result := score(t, config, req)

		fired := false
		for _, ind := range result.Indicators {
			if ind == "cost_outlier" {
				fired = true
			}
		}
		if !fired {
			t.Errorf("Expected cost_outlier at 1800.01, got %v", result.Indicators)
		}
		t.Logf("✓ 1800.01 → tier=%s, indicators=%v", result.Tier, result.Indicators)
	})
}

// ============================================================================
// SCENARIO 4: Compound Fraud Signals
// ============================================================================

func TestCompoundSignals_Critical(t *testing.T) {
	/*
	   SCENARIO: Weekend non-emergency claim, patient in another city,
	   no biometric verification, amount far above the band.

	   EXPECTED BEHAVIOR:
	   - ghost_patient (40) + cost_outlier (20) + weekend (15) +
	     geographic_anomaly (15) = 90
	   - Probability saturates near 1.0 → CRITICAL, alert raised

	   WHY THIS MATTERS:
	   Organized billing fraud rarely trips one wire; the additive model
	   must accumulate independent signals without short-circuiting.
	*/
	config := getTestConfig()

	req := cleanClaim(uniqueID("CLM-COMPOUND"))
	req.BiometricVerified = false
	req.ClaimAmount = 5000
	req.WeekendClaim = true
	req.PatientLocation = "Mombasa"

	result := score(t, config, req)

	if result.RawScore != 90 {
		t.Errorf("Expected raw score 90, got %d (indicators %v)", result.RawScore, result.Indicators)
	}
	if result.Tier != "CRITICAL" {
		t.Errorf("Expected CRITICAL, got %s", result.Tier)
	}
	if !result.Alert {
		t.Error("Expected alert for compound fraud claim")
	}

	t.Logf("✓ Compound signals: score=%d, p=%.3f, indicators=%v",
		result.RawScore, result.Probability, result.Indicators)
}

// ============================================================================
// SCENARIO 5: Prediction Cache
// ============================================================================

func TestIdenticalClaim_ServedFromCache(t *testing.T) {
	/*
	   SCENARIO: The same claim payload submitted twice.

	   EXPECTED BEHAVIOR:
	   - First submission scores fresh (from_cache false)
	   - Second submission returns the identical result from the
	     prediction cache (from_cache true)
	*/
	config := getTestConfig()

	req := cleanClaim(uniqueID("CLM-CACHED"))

	first := score(t, config, req)
	if first.FromCache {
		t.Fatal("First submission must not come from cache")
	}

	second := score(t, config, req)
	if !second.FromCache {
		t.Error("Expected second identical submission to come from cache")
	}
	if second.RawScore != first.RawScore || second.Tier != first.Tier {
		t.Errorf("Cached result diverged: %d/%s vs %d/%s",
			first.RawScore, first.Tier, second.RawScore, second.Tier)
	}

	t.Logf("✓ Cache hit: tier=%s, from_cache=%v", second.Tier, second.FromCache)
}

// ============================================================================
// SCENARIO 6: Live Feed Delivery
// ============================================================================

func TestFeed_DeliversScoredClaim(t *testing.T) {
	/*
	   SCENARIO: Subscribe to the SSE feed, then submit a claim.

	   EXPECTED BEHAVIOR:
	   - The subscriber receives the scored claim as a feed event
	     (possibly after replayed backfill from the ring buffer).
	*/
	config := getTestConfig()

	feedReq, err := http.NewRequest(http.MethodGet, config.BaseURL+"/api/v1/feed", nil)
	if err != nil {
		t.Fatalf("Failed to create feed request: %v", err)
	}
	feedResp, err := (&http.Client{}).Do(feedReq)
	if err != nil {
		t.Fatalf("Feed request failed: %v", err)
	}
	defer feedResp.Body.Close()

	if ct := feedResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Expected text/event-stream, got %s", ct)
	}

	claimID := uniqueID("CLM-FEED")
	go func() {
		time.Sleep(200 * time.Millisecond)
		body, _ := json.Marshal(cleanClaim(claimID))
		resp, err := http.Post(config.BaseURL+"/api/v1/claims", "application/json", bytes.NewReader(body))
		if err == nil {
			resp.Body.Close()
		}
	}()

	reader := bufio.NewReader(feedResp.Body)
	deadline := time.After(10 * time.Second)
	found := make(chan struct{})

	go func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.Contains(line, claimID) {
				close(found)
				return
			}
		}
	}()

	select {
	case <-found:
		t.Logf("✓ Feed delivered %s", claimID)
	case <-deadline:
		t.Fatalf("Feed did not deliver %s within deadline", claimID)
	}
}

// ============================================================================
// SCENARIO 7: Input Validation
// ============================================================================

func TestValidation_Errors(t *testing.T) {
	config := getTestConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	post := func(t *testing.T, req ClaimRequest) int {
		t.Helper()
		body, _ := json.Marshal(req)
		resp, err := client.Post(config.BaseURL+"/api/v1/claims", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("MissingClaimID", func(t *testing.T) {
		req := cleanClaim("")
		if code := post(t, req); code != http.StatusBadRequest {
			t.Errorf("Expected 400 for missing claim_id, got %d", code)
		}
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		req := cleanClaim(uniqueID("CLM-NEG"))
		req.ClaimAmount = -1
		if code := post(t, req); code != http.StatusBadRequest {
			t.Errorf("Expected 400 for negative amount, got %d", code)
		}
	})

	t.Run("BadGender", func(t *testing.T) {
		req := cleanClaim(uniqueID("CLM-GENDER"))
		req.PatientGender = "unknown"
		if code := post(t, req); code != http.StatusBadRequest {
			t.Errorf("Expected 400 for bad gender, got %d", code)
		}
	})
}

// ============================================================================
// SCENARIO 8: Response Metadata Verification
// ============================================================================

func TestResponseMetadata(t *testing.T) {
	/*
	   SCENARIO: Verify response includes all required metadata

	   This ensures the API contract is stable for clients.
	*/
	config := getTestConfig()

	result := score(t, config, cleanClaim(uniqueID("CLM-META")))

	if result.ClaimID == "" {
		t.Error("Missing claim_id")
	}
	if result.Probability < 0 || result.Probability > 1 {
		t.Errorf("Probability out of range: %.3f", result.Probability)
	}
	switch result.Tier {
	case "MINIMAL", "LOW", "MEDIUM", "HIGH", "CRITICAL":
	default:
		t.Errorf("Invalid risk level: %s", result.Tier)
	}
	if result.Metadata.TraceID == "" {
		t.Error("Missing metadata.trace_id")
	}
	if result.Metadata.Version == "" {
		t.Error("Missing metadata.version")
	}
	// Note: TotalMs can be 0 for very fast operations (sub-millisecond)
	if result.Metadata.TotalMs < 0 {
		t.Error("Invalid metadata.total_ms (negative)")
	}

	t.Logf("✓ Metadata complete: trace=%s, totalMs=%d, version=%s",
		result.Metadata.TraceID[:8], result.Metadata.TotalMs, result.Metadata.Version)
}
