// Package rules provides the CEL-Go based fraud indicator engine.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/metshield/metshield/internal/domain"
)

// Engine evaluates a fixed set of weighted fraud indicators against claims.
// Every enabled indicator is evaluated on every claim; there is no
// short-circuiting, so the triggered indicator list is always complete.
type Engine struct {
	mu         sync.RWMutex
	env        *cel.Env
	compiled   []*CompiledIndicator
	maxWorkers int
}

// CompiledIndicator holds a pre-compiled CEL predicate.
type CompiledIndicator struct {
	Config  domain.IndicatorConfig
	Program cel.Program
}

// NewEngine creates a new indicator engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// Create CEL environment with claim variables
	env, err := cel.NewEnv(
		cel.Variable("claim_amount", cel.DoubleType),
		cel.Variable("patient_age", cel.IntType),
		cel.Variable("patient_gender", cel.StringType),
		cel.Variable("diagnosis_code", cel.StringType),
		cel.Variable("medical_scheme", cel.StringType),
		cel.Variable("facility_location", cel.StringType),
		cel.Variable("patient_location", cel.StringType),
		cel.Variable("biometric_verified", cel.BoolType),
		cel.Variable("patient_present", cel.BoolType),
		cel.Variable("patient_deceased", cel.BoolType),
		cel.Variable("emergency_case", cel.BoolType),
		cel.Variable("weekend_claim", cel.BoolType),
		cel.Variable("after_hours_claim", cel.BoolType),
		cel.Variable("travel_distance_suspicious", cel.BoolType),
		cel.Variable("location_mismatch", cel.BoolType),
		// Derived from the diagnosis reference table
		cel.Variable("known_diagnosis", cel.BoolType),
		cel.Variable("expected_cost_max", cel.DoubleType),
		// Derived from the velocity tracker
		cel.Variable("provider_claims_today", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		maxWorkers: maxWorkers,
	}, nil
}

// ValidateIndicator compiles an indicator without loading it.
func (e *Engine) ValidateIndicator(cfg domain.IndicatorConfig) error {
	_, err := e.compileIndicator(cfg)
	return err
}

// LoadIndicators compiles the given indicator set and swaps it in atomically.
// On compile failure the previously loaded set stays active.
func (e *Engine) LoadIndicators(configs []domain.IndicatorConfig) error {
	compiled := make([]*CompiledIndicator, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		ci, err := e.compileIndicator(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, ci)
	}

	e.mu.Lock()
	e.compiled = compiled
	e.mu.Unlock()

	return nil
}

// IndicatorCount returns the number of loaded indicators.
func (e *Engine) IndicatorCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// LoadedIndicators returns the currently loaded indicator configurations.
func (e *Engine) LoadedIndicators() []domain.IndicatorConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]domain.IndicatorConfig, 0, len(e.compiled))
	for _, ci := range e.compiled {
		configs = append(configs, ci.Config)
	}
	return configs
}

// Evaluate runs every loaded indicator against the claim and returns the
// raw score (sum of triggered weights) and the triggered indicator names
// in load order. An indicator whose predicate errors contributes nothing
// and is logged; it never aborts the evaluation of the others.
func (e *Engine) Evaluate(ctx context.Context, claim *domain.Claim, providerClaimsToday int) (int, []string, error) {
	e.mu.RLock()
	indicators := e.compiled
	e.mu.RUnlock()

	if len(indicators) == 0 {
		return 0, nil, nil
	}

	activation := activationFor(claim, providerClaimsToday)

	triggered := make([]bool, len(indicators))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, ind := range indicators {
		wg.Add(1)
		go func(idx int, ci *CompiledIndicator) {
			defer wg.Done()

			sem <- struct{}{}        // Acquire
			defer func() { <-sem }() // Release

			out, _, err := ci.Program.Eval(activation)
			if err != nil {
				slog.Warn("indicator evaluation error",
					"indicator", ci.Config.Name,
					"claim_id", claim.ID,
					"error", err)
				return
			}
			if b, ok := out.(types.Bool); ok && bool(b) {
				triggered[idx] = true
			}
		}(i, ind)
	}

	wg.Wait()

	score := 0
	names := make([]string, 0, len(indicators))
	for i, ind := range indicators {
		if triggered[i] {
			score += ind.Config.Weight
			names = append(names, ind.Config.Name)
		}
	}

	return score, names, nil
}

// activationFor builds the CEL variable bindings for a claim.
func activationFor(claim *domain.Claim, providerClaimsToday int) map[string]any {
	ref, known := LookupDiagnosis(claim.DiagnosisCode)
	expectedMax := 0.0
	if known {
		expectedMax = ref.CostMax
	}

	locationMismatch := claim.PatientLocation != "" &&
		!strings.EqualFold(claim.PatientLocation, claim.FacilityLocation)

	return map[string]any{
		"claim_amount":               claim.Amount,
		"patient_age":                claim.PatientAge,
		"patient_gender":             claim.PatientGender,
		"diagnosis_code":             claim.DiagnosisCode,
		"medical_scheme":             claim.MedicalScheme,
		"facility_location":          claim.FacilityLocation,
		"patient_location":           claim.PatientLocation,
		"biometric_verified":         claim.BiometricVerified,
		"patient_present":            claim.PatientPresent,
		"patient_deceased":           claim.PatientDeceased,
		"emergency_case":             claim.EmergencyCase,
		"weekend_claim":              claim.WeekendClaim || isWeekend(claim.Timestamp),
		"after_hours_claim":          claim.AfterHoursClaim,
		"travel_distance_suspicious": claim.TravelDistanceSuspicious,
		"location_mismatch":          locationMismatch,
		"known_diagnosis":            known,
		"expected_cost_max":          expectedMax,
		"provider_claims_today":      providerClaimsToday,
	}
}

func isWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = nil
	return nil
}

func (e *Engine) compileIndicator(cfg domain.IndicatorConfig) (*CompiledIndicator, error) {
	if cfg.Name == "" {
		return nil, &domain.ConfigurationError{Field: "indicator", Reason: "name is required"}
	}
	if cfg.Weight < 0 {
		return nil, &domain.ConfigurationError{Field: cfg.Name, Reason: "weight must be non-negative"}
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile indicator %s: %w", cfg.Name, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("indicator %s: expression must return bool, got %s", cfg.Name, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for indicator %s: %w", cfg.Name, err)
	}

	return &CompiledIndicator{
		Config:  cfg,
		Program: program,
	}, nil
}
