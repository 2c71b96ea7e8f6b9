package rules

import "github.com/metshield/metshield/internal/domain"

// BuiltinIndicators returns the default indicator set.
// Weights are calibrated so a single critical indicator lands a claim in
// the HIGH band and combinations push it toward CRITICAL.
func BuiltinIndicators() []domain.IndicatorConfig {
	return []domain.IndicatorConfig{
		{
			Name:        "ghost_patient",
			Description: "Claim submitted without biometric verification of the patient",
			Expression:  "!biometric_verified",
			Weight:      40,
			Enabled:     true,
		},
		{
			Name:        "impossible_volume",
			Description: "Provider has submitted more claims today than is physically plausible",
			Expression:  "provider_claims_today > 20",
			Weight:      30,
			Enabled:     true,
		},
		{
			Name:        "diagnosis_mismatch",
			Description: "Diagnosis code is not in the reference table",
			Expression:  "!known_diagnosis",
			Weight:      25,
			Enabled:     true,
		},
		{
			Name:        "cost_outlier",
			Description: "Claim amount exceeds 150% of the expected maximum for the diagnosis",
			Expression:  "known_diagnosis && claim_amount > expected_cost_max * 1.5",
			Weight:      20,
			Enabled:     true,
		},
		{
			Name:        "weekend_non_emergency",
			Description: "Non-emergency procedure billed on a weekend",
			Expression:  "weekend_claim && !emergency_case",
			Weight:      15,
			Enabled:     true,
		},
		{
			Name:        "geographic_anomaly",
			Description: "Patient location is implausibly far from the claiming facility",
			Expression:  "travel_distance_suspicious || location_mismatch",
			Weight:      15,
			Enabled:     true,
		},
	}
}
