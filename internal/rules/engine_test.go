package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/metshield/metshield/internal/domain"
)

// cleanClaim returns a claim that triggers no builtin indicator.
func cleanClaim() *domain.Claim {
	return &domain.Claim{
		ID:                "CLM-001",
		PatientID:         "PAT-001",
		DoctorID:          "DOC-001",
		PatientAge:        34,
		PatientGender:     "F",
		DiagnosisCode:     "B50.9",
		Amount:            800, // within the 350-1200 malaria band
		FacilityLocation:  "Nairobi",
		PatientLocation:   "Nairobi",
		BiometricVerified: true,
		PatientPresent:    true,
		EmergencyCase:     false,
		// Wednesday
		Timestamp: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func TestEngineCreation(t *testing.T) {
	engine, err := NewEngine(5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	defer engine.Close()

	if engine.IndicatorCount() != 0 {
		t.Errorf("expected 0 indicators, got %d", engine.IndicatorCount())
	}
}

func TestLoadBuiltinIndicators(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadIndicators(BuiltinIndicators()); err != nil {
		t.Fatalf("failed to load builtin indicators: %v", err)
	}

	if engine.IndicatorCount() != 6 {
		t.Errorf("expected 6 indicators, got %d", engine.IndicatorCount())
	}
}

func TestLoadInvalidIndicator(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	err := engine.LoadIndicators([]domain.IndicatorConfig{{
		Name:       "broken",
		Expression: "this is not valid CEL !!!",
		Weight:     10,
		Enabled:    true,
	}})
	if err == nil {
		t.Error("expected error for invalid CEL expression")
	}
}

func TestNonBoolIndicatorRejected(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	err := engine.ValidateIndicator(domain.IndicatorConfig{
		Name:       "numeric",
		Expression: "claim_amount * 2.0",
		Weight:     10,
		Enabled:    true,
	})
	if err == nil {
		t.Error("expected error for non-bool expression")
	}
}

func TestLoadFailureKeepsPreviousSet(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadIndicators(BuiltinIndicators()); err != nil {
		t.Fatalf("initial load failed: %v", err)
	}

	err := engine.LoadIndicators([]domain.IndicatorConfig{{
		Name:       "broken",
		Expression: "!!!",
		Enabled:    true,
	}})
	if err == nil {
		t.Fatal("expected compile error")
	}
	if engine.IndicatorCount() != 6 {
		t.Errorf("previous indicator set should survive a failed reload, got %d", engine.IndicatorCount())
	}
}

func TestNegativeWeightIndicatorRejected(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	if err := engine.LoadIndicators(BuiltinIndicators()); err != nil {
		t.Fatalf("initial load failed: %v", err)
	}

	// A negative weight would let an indicator subtract from the raw
	// score, which the tier mapping is never meant to see.
	err := engine.LoadIndicators([]domain.IndicatorConfig{{
		Name:       "discount",
		Expression: "claim_amount > 0.0",
		Weight:     -40,
		Enabled:    true,
	}})
	if err == nil {
		t.Fatal("expected rejection of negative-weight indicator")
	}
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %T", err)
	}
	if engine.IndicatorCount() != 6 {
		t.Errorf("active set should survive the rejected reload, got %d", engine.IndicatorCount())
	}

	score, _, err := engine.Evaluate(context.Background(), cleanClaim(), 3)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if score < 0 {
		t.Errorf("raw score must never go negative, got %d", score)
	}
}

func TestUnnamedIndicatorRejected(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()

	err := engine.ValidateIndicator(domain.IndicatorConfig{
		Expression: "claim_amount > 0.0",
		Weight:     10,
		Enabled:    true,
	})
	if err == nil {
		t.Error("expected rejection of indicator without a name")
	}
}

func TestCleanClaimScoresZero(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadIndicators(BuiltinIndicators())

	score, indicators, err := engine.Evaluate(context.Background(), cleanClaim(), 3)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if score != 0 {
		t.Errorf("expected score 0 for clean claim, got %d (indicators: %v)", score, indicators)
	}
	if len(indicators) != 0 {
		t.Errorf("expected no triggered indicators, got %v", indicators)
	}
}

func TestGhostPatientIndicator(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadIndicators(BuiltinIndicators())

	claim := cleanClaim()
	claim.BiometricVerified = false

	score, indicators, err := engine.Evaluate(context.Background(), claim, 3)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if score != 40 {
		t.Errorf("expected score 40, got %d", score)
	}
	if len(indicators) != 1 || indicators[0] != "ghost_patient" {
		t.Errorf("expected [ghost_patient], got %v", indicators)
	}
}

func TestNoShortCircuit(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadIndicators(BuiltinIndicators())

	// Trip every indicator at once: no biometrics, flooded provider,
	// unknown diagnosis, weekend non-emergency, suspicious travel.
	claim := cleanClaim()
	claim.BiometricVerified = false
	claim.DiagnosisCode = "X99.9"
	claim.TravelDistanceSuspicious = true
	claim.Timestamp = time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC) // Saturday

	score, indicators, err := engine.Evaluate(context.Background(), claim, 25)
	if err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}

	// cost_outlier cannot fire for an unknown diagnosis, the other five do.
	want := 40 + 30 + 25 + 15 + 15
	if score != want {
		t.Errorf("expected score %d, got %d (indicators: %v)", want, score, indicators)
	}
	if len(indicators) != 5 {
		t.Errorf("expected 5 triggered indicators, got %v", indicators)
	}
}

func TestIndicatorOrderStable(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadIndicators(BuiltinIndicators())

	claim := cleanClaim()
	claim.BiometricVerified = false
	claim.Amount = 5000 // > 1.5 * 1200 for malaria

	for i := 0; i < 20; i++ {
		_, indicators, err := engine.Evaluate(context.Background(), claim, 3)
		if err != nil {
			t.Fatalf("evaluation failed: %v", err)
		}
		if len(indicators) != 2 || indicators[0] != "ghost_patient" || indicators[1] != "cost_outlier" {
			t.Fatalf("run %d: expected [ghost_patient cost_outlier], got %v", i, indicators)
		}
	}
}

func TestCostOutlierBoundary(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadIndicators(BuiltinIndicators())

	// Malaria expected max is 1200, outlier threshold is 1800.
	claim := cleanClaim()
	claim.Amount = 1800

	score, _, _ := engine.Evaluate(context.Background(), claim, 3)
	if score != 0 {
		t.Errorf("amount at exactly 1.5x max should not trigger, got score %d", score)
	}

	claim.Amount = 1800.01
	score, indicators, _ := engine.Evaluate(context.Background(), claim, 3)
	if score != 20 {
		t.Errorf("amount above 1.5x max should trigger cost_outlier, got %d (%v)", score, indicators)
	}
}

func TestImpossibleVolumeBoundary(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadIndicators(BuiltinIndicators())

	score, _, _ := engine.Evaluate(context.Background(), cleanClaim(), 20)
	if score != 0 {
		t.Errorf("20 claims today should not trigger, got score %d", score)
	}

	score, indicators, _ := engine.Evaluate(context.Background(), cleanClaim(), 21)
	if score != 30 {
		t.Errorf("21 claims today should trigger impossible_volume, got %d (%v)", score, indicators)
	}
}

func TestWeekendDerivedFromTimestamp(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadIndicators(BuiltinIndicators())

	claim := cleanClaim()
	claim.Timestamp = time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC) // Sunday

	score, indicators, _ := engine.Evaluate(context.Background(), claim, 3)
	if score != 15 {
		t.Errorf("expected weekend_non_emergency only, got %d (%v)", score, indicators)
	}

	claim.EmergencyCase = true
	score, _, _ = engine.Evaluate(context.Background(), claim, 3)
	if score != 0 {
		t.Errorf("weekend emergency should not trigger, got %d", score)
	}
}

func TestLocationMismatch(t *testing.T) {
	engine, _ := NewEngine(5)
	defer engine.Close()
	engine.LoadIndicators(BuiltinIndicators())

	claim := cleanClaim()
	claim.PatientLocation = "Mombasa"

	score, indicators, _ := engine.Evaluate(context.Background(), claim, 3)
	if score != 15 {
		t.Errorf("expected geographic_anomaly, got %d (%v)", score, indicators)
	}

	// Empty patient location means unknown, not mismatched.
	claim.PatientLocation = ""
	score, _, _ = engine.Evaluate(context.Background(), claim, 3)
	if score != 0 {
		t.Errorf("unknown patient location should not trigger, got %d", score)
	}
}
