package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Claim represents one submitted healthcare billing event under evaluation.
// Immutable once created; the engine never mutates it.
type Claim struct {
	// Core identifiers
	ID        string `json:"claimId"`
	PatientID string `json:"patientId"`
	DoctorID  string `json:"doctorId"`

	// Optional display names
	PatientName string `json:"patientName,omitempty"`
	DoctorName  string `json:"doctorName,omitempty"`

	// Patient attributes
	PatientAge    int    `json:"patientAge"`
	PatientGender string `json:"patientGender"`

	// Claim details
	MedicalScheme    string  `json:"medicalScheme"`
	DiagnosisCode    string  `json:"diagnosisCode"`
	Amount           float64 `json:"claimAmount"`
	FacilityLocation string  `json:"facilityLocation"`
	PatientLocation  string  `json:"patientLocation,omitempty"`

	// Fraud-relevant flags
	BiometricVerified        bool `json:"biometricVerified"`
	PatientPresent           bool `json:"patientPresent"`
	PatientDeceased          bool `json:"patientDeceased"`
	EmergencyCase            bool `json:"emergencyCase"`
	WeekendClaim             bool `json:"weekendClaim"`
	AfterHoursClaim          bool `json:"afterHoursClaim"`
	TravelDistanceSuspicious bool `json:"travelDistanceSuspicious"`

	// Temporal
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	// Provenance
	SubmissionSource string `json:"submissionSource,omitempty"`
}

// ClaimRequest is the API request payload for claim submission.
type ClaimRequest struct {
	ClaimID       string `json:"claim_id"`
	PatientID     string `json:"patient_id"`
	PatientName   string `json:"patient_name,omitempty"`
	DoctorID      string `json:"doctor_id"`
	DoctorName    string `json:"doctor_name,omitempty"`
	PatientAge    int    `json:"patient_age"`
	PatientGender string `json:"patient_gender"`

	MedicalScheme    string  `json:"medical_scheme"`
	DiagnosisCode    string  `json:"diagnosis_code"`
	ClaimAmount      float64 `json:"claim_amount"`
	FacilityLocation string  `json:"facility_location"`
	PatientLocation  string  `json:"patient_location,omitempty"`

	BiometricVerified        bool `json:"biometric_verified"`
	PatientPresent           bool `json:"patient_present"`
	PatientDeceased          bool `json:"patient_deceased"`
	EmergencyCase            bool `json:"emergency_case"`
	WeekendClaim             bool `json:"weekend_claim"`
	AfterHoursClaim          bool `json:"after_hours_claim"`
	TravelDistanceSuspicious bool `json:"travel_distance_suspicious"`

	Timestamp        string `json:"timestamp,omitempty"`
	SubmissionSource string `json:"submission_source,omitempty"`
}

// Validate checks required fields and value ranges.
// Returns a *ValidationError describing the first offending field.
func (r *ClaimRequest) Validate() error {
	if r.ClaimID == "" {
		return &ValidationError{Field: "claim_id", Reason: "is required"}
	}
	if r.PatientID == "" {
		return &ValidationError{Field: "patient_id", Reason: "is required"}
	}
	if r.DoctorID == "" {
		return &ValidationError{Field: "doctor_id", Reason: "is required"}
	}
	if r.PatientAge < 0 || r.PatientAge > 120 {
		return &ValidationError{Field: "patient_age", Reason: fmt.Sprintf("must be between 0 and 120, got %d", r.PatientAge)}
	}
	if r.ClaimAmount < 0 {
		return &ValidationError{Field: "claim_amount", Reason: "must not be negative"}
	}
	if len(r.DiagnosisCode) < 3 {
		return &ValidationError{Field: "diagnosis_code", Reason: "invalid ICD-10 code format"}
	}
	if r.FacilityLocation == "" {
		return &ValidationError{Field: "facility_location", Reason: "is required"}
	}
	switch strings.ToUpper(r.PatientGender) {
	case "M", "F", "MALE", "FEMALE":
	default:
		return &ValidationError{Field: "patient_gender", Reason: "must be M, F, Male, or Female"}
	}
	return nil
}

// ToClaim converts a validated request to a Claim domain object.
// Gender is normalized to a single letter and the ICD code to uppercase.
func (r *ClaimRequest) ToClaim() *Claim {
	now := time.Now().UTC()

	ts := now
	if r.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			ts = parsed.UTC()
		}
	}

	source := r.SubmissionSource
	if source == "" {
		source = "api"
	}

	return &Claim{
		ID:                       r.ClaimID,
		PatientID:                r.PatientID,
		PatientName:              r.PatientName,
		DoctorID:                 r.DoctorID,
		DoctorName:               r.DoctorName,
		PatientAge:               r.PatientAge,
		PatientGender:            strings.ToUpper(r.PatientGender)[:1],
		MedicalScheme:            r.MedicalScheme,
		DiagnosisCode:            strings.ToUpper(r.DiagnosisCode),
		Amount:                   r.ClaimAmount,
		FacilityLocation:         r.FacilityLocation,
		PatientLocation:          r.PatientLocation,
		BiometricVerified:        r.BiometricVerified,
		PatientPresent:           r.PatientPresent,
		PatientDeceased:          r.PatientDeceased,
		EmergencyCase:            r.EmergencyCase,
		WeekendClaim:             r.WeekendClaim,
		AfterHoursClaim:          r.AfterHoursClaim,
		TravelDistanceSuspicious: r.TravelDistanceSuspicious,
		Timestamp:                ts,
		CreatedAt:                now,
		SubmissionSource:         source,
	}
}

// Fingerprint returns a stable hash of the claim attributes that identify a
// duplicate submission. Used as the prediction cache key.
func (c *Claim) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%.2f|%s|%s",
		c.PatientID, c.DoctorID, c.Amount, c.DiagnosisCode, c.FacilityLocation)
	return hex.EncodeToString(h.Sum(nil))
}
