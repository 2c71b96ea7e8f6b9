// Synthetic claim streamer for exercising MetShield end to end.
//
// Usage:
//   go run cmd/streamer/main.go -url http://localhost:8080 -rate 5 -fraud 0.2
//
// The streamer generates realistic claims against the known ICD-10
// reference table and injects fraud scenarios (ghost patients, cost
// outliers, suspicious geography, weekend billing, volume bursts) at
// the configured ratio.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/metshield/metshield/internal/domain"
	"github.com/metshield/metshield/internal/rules"
)

var (
	locations = []string{"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret"}
	schemes   = []string{"NHIF", "Jubilee", "AAR", "Britam", "Madison"}
	genders   = []string{"M", "F"}
)

type counters struct {
	sent    atomic.Int64
	alerts  atomic.Int64
	errors  atomic.Int64
	queued  atomic.Int64
	byTier  [5]atomic.Int64
	tierIdx map[domain.RiskTier]int
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "MetShield base URL")
	rate := flag.Float64("rate", 2, "Claims per second")
	count := flag.Int("count", 0, "Stop after this many claims (0 = run until interrupted)")
	fraudRatio := flag.Float64("fraud", 0.2, "Fraction of claims carrying a fraud scenario (0.0-1.0)")
	doctors := flag.Int("doctors", 12, "Size of the synthetic provider pool")
	verbose := flag.Bool("verbose", false, "Print each scoring response")
	flag.Parse()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: MetShield not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure the server is running:")
		fmt.Println("  go run cmd/metshield/main.go")
		os.Exit(1)
	}
	fmt.Printf("✓ MetShield is healthy at %s\n", *baseURL)
	fmt.Printf("Streaming at %.1f claims/sec, fraud ratio %.2f\n\n", *rate, *fraudRatio)

	stats := &counters{
		tierIdx: map[domain.RiskTier]int{
			domain.TierMinimal:  0,
			domain.TierLow:      1,
			domain.TierMedium:   2,
			domain.TierHigh:     3,
			domain.TierCritical: 4,
		},
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	interval := time.Duration(float64(time.Second) / *rate)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 10 * time.Second}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()

	seq := 0
loop:
	for {
		select {
		case <-sigCh:
			break loop
		case <-ticker.C:
			seq++
			claim := generateClaim(rng, seq, *doctors, *fraudRatio)
			submit(client, *baseURL, claim, stats, *verbose)
			if *count > 0 && seq >= *count {
				break loop
			}
		}
	}

	printSummary(stats, time.Since(start))
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// generateClaim produces one synthetic claim; roughly fraudRatio of
// them carry an injected fraud scenario.
func generateClaim(rng *rand.Rand, seq, doctorPool int, fraudRatio float64) domain.ClaimRequest {
	known := rules.KnownDiagnoses()
	ref := known[rng.Intn(len(known))]

	// Plausible amount inside the expected band.
	spread := ref.CostMax - ref.CostMin
	amount := ref.CostMin + rng.Float64()*spread

	req := domain.ClaimRequest{
		ClaimID:           fmt.Sprintf("CLM-%d-%04d", time.Now().Unix(), seq),
		PatientID:         fmt.Sprintf("PAT-%04d", rng.Intn(5000)),
		DoctorID:          fmt.Sprintf("DOC-%03d", rng.Intn(doctorPool)),
		PatientAge:        1 + rng.Intn(90),
		PatientGender:     genders[rng.Intn(len(genders))],
		MedicalScheme:     schemes[rng.Intn(len(schemes))],
		DiagnosisCode:     ref.Code,
		ClaimAmount:       amount,
		FacilityLocation:  locations[rng.Intn(len(locations))],
		BiometricVerified: true,
		PatientPresent:    true,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		SubmissionSource:  "streamer",
	}
	req.PatientLocation = req.FacilityLocation

	if rng.Float64() >= fraudRatio {
		return req
	}

	// Inject one fraud scenario.
	switch rng.Intn(5) {
	case 0: // ghost patient
		req.BiometricVerified = false
		req.PatientPresent = false
	case 1: // cost outlier
		req.ClaimAmount = ref.CostMax * (2 + rng.Float64()*3)
	case 2: // suspicious geography
		other := locations[rng.Intn(len(locations))]
		for other == req.FacilityLocation {
			other = locations[rng.Intn(len(locations))]
		}
		req.PatientLocation = other
		req.TravelDistanceSuspicious = rng.Float64() < 0.5
	case 3: // weekend billing, nothing urgent
		req.WeekendClaim = true
		req.AfterHoursClaim = true
	case 4: // unknown diagnosis code
		req.DiagnosisCode = "Q99.9"
	}

	return req
}

func submit(client *http.Client, baseURL string, claim domain.ClaimRequest, stats *counters, verbose bool) {
	body, err := json.Marshal(claim)
	if err != nil {
		stats.errors.Add(1)
		return
	}

	resp, err := client.Post(baseURL+"/api/v1/claims", "application/json", bytes.NewReader(body))
	if err != nil {
		stats.errors.Add(1)
		fmt.Printf("ERROR: %s -> %v\n", claim.ClaimID, err)
		return
	}
	defer resp.Body.Close()

	stats.sent.Add(1)

	switch resp.StatusCode {
	case http.StatusAccepted:
		// Async tier: scoring happens on the worker.
		stats.queued.Add(1)
		return
	case http.StatusOK:
	default:
		stats.errors.Add(1)
		fmt.Printf("ERROR: %s -> status %d\n", claim.ClaimID, resp.StatusCode)
		return
	}

	var result struct {
		ClaimID    string          `json:"claim_id"`
		RawScore   int             `json:"raw_score"`
		Tier       domain.RiskTier `json:"risk_level"`
		Indicators []string        `json:"indicators"`
		Alert      bool            `json:"alert"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		stats.errors.Add(1)
		return
	}

	if idx, ok := stats.tierIdx[result.Tier]; ok {
		stats.byTier[idx].Add(1)
	}
	if result.Alert {
		stats.alerts.Add(1)
	}

	if verbose {
		fmt.Printf("%-22s score=%-3d %-8s %v\n", result.ClaimID, result.RawScore, result.Tier, result.Indicators)
	}
}

func printSummary(stats *counters, duration time.Duration) {
	sent := stats.sent.Load()

	fmt.Println("\n──────────── streamer summary ────────────")
	fmt.Printf("  Sent:      %d in %v (%.1f/sec)\n", sent, duration.Round(time.Second), float64(sent)/duration.Seconds())
	fmt.Printf("  Alerts:    %d\n", stats.alerts.Load())
	fmt.Printf("  Queued:    %d\n", stats.queued.Load())
	fmt.Printf("  Errors:    %d\n", stats.errors.Load())
	fmt.Printf("  Tiers:     MINIMAL=%d LOW=%d MEDIUM=%d HIGH=%d CRITICAL=%d\n",
		stats.byTier[0].Load(),
		stats.byTier[1].Load(),
		stats.byTier[2].Load(),
		stats.byTier[3].Load(),
		stats.byTier[4].Load(),
	)
}
