package rules

import "strings"

// DiagnosisRef describes an ICD-10 code with its expected cost band.
type DiagnosisRef struct {
	Code        string
	Description string
	CostMin     float64
	CostMax     float64
}

// diagnosisTable is the reference set of ICD-10 codes the scheme covers.
// Cost bands are in scheme currency units.
var diagnosisTable = map[string]DiagnosisRef{
	"A15.9": {Code: "A15.9", Description: "Tuberculosis", CostMin: 800, CostMax: 2500},
	"B50.9": {Code: "B50.9", Description: "Malaria", CostMin: 350, CostMax: 1200},
	"A09":   {Code: "A09", Description: "Gastroenteritis", CostMin: 200, CostMax: 600},
	"J44.1": {Code: "J44.1", Description: "COPD with exacerbation", CostMin: 1500, CostMax: 4000},
	"J06.9": {Code: "J06.9", Description: "Upper respiratory infection", CostMin: 250, CostMax: 600},
	"K59.0": {Code: "K59.0", Description: "Constipation", CostMin: 150, CostMax: 400},
	"R50.9": {Code: "R50.9", Description: "Fever, unspecified", CostMin: 200, CostMax: 500},
	"M79.1": {Code: "M79.1", Description: "Myalgia", CostMin: 300, CostMax: 700},
	"I10":   {Code: "I10", Description: "Essential hypertension", CostMin: 500, CostMax: 1500},
	"E11.9": {Code: "E11.9", Description: "Type 2 diabetes", CostMin: 800, CostMax: 2200},
	"E43":   {Code: "E43", Description: "Severe malnutrition", CostMin: 600, CostMax: 1800},
	"O80":   {Code: "O80", Description: "Normal delivery", CostMin: 3500, CostMax: 8000},
	"Z30.9": {Code: "Z30.9", Description: "Contraceptive management", CostMin: 200, CostMax: 500},
	"S72.0": {Code: "S72.0", Description: "Femur fracture", CostMin: 8000, CostMax: 25000},
	"S06.9": {Code: "S06.9", Description: "Head injury", CostMin: 2000, CostMax: 12000},
	"T14.9": {Code: "T14.9", Description: "Injury, unspecified", CostMin: 1500, CostMax: 8000},
	"Z51.1": {Code: "Z51.1", Description: "Chemotherapy session", CostMin: 15000, CostMax: 45000},
	"I25.1": {Code: "I25.1", Description: "Coronary artery disease", CostMin: 50000, CostMax: 150000},
}

// LookupDiagnosis resolves an ICD-10 code against the reference table.
// Matching is case-insensitive.
func LookupDiagnosis(code string) (DiagnosisRef, bool) {
	ref, ok := diagnosisTable[strings.ToUpper(strings.TrimSpace(code))]
	return ref, ok
}

// KnownDiagnoses returns all reference codes. The slice is a copy.
func KnownDiagnoses() []DiagnosisRef {
	out := make([]DiagnosisRef, 0, len(diagnosisTable))
	for _, ref := range diagnosisTable {
		out = append(out, ref)
	}
	return out
}
