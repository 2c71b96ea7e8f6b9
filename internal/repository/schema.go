package repository

// Schema definitions for the MetShield database.
// Compatible with both SQLite and PostgreSQL.

const schemaClaims = `
CREATE TABLE IF NOT EXISTS claims (
    id TEXT PRIMARY KEY,
    patient_id TEXT NOT NULL,
    doctor_id TEXT NOT NULL,
    patient_name TEXT,
    doctor_name TEXT,
    patient_age INTEGER NOT NULL DEFAULT 0,
    patient_gender TEXT,
    medical_scheme TEXT,
    diagnosis_code TEXT NOT NULL,
    amount REAL NOT NULL,
    facility_location TEXT NOT NULL,
    patient_location TEXT,
    biometric_verified INTEGER NOT NULL DEFAULT 0,
    patient_present INTEGER NOT NULL DEFAULT 0,
    patient_deceased INTEGER NOT NULL DEFAULT 0,
    emergency_case INTEGER NOT NULL DEFAULT 0,
    weekend_claim INTEGER NOT NULL DEFAULT 0,
    after_hours_claim INTEGER NOT NULL DEFAULT 0,
    travel_suspicious INTEGER NOT NULL DEFAULT 0,
    submission_source TEXT,
    timestamp TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claims_doctor ON claims(doctor_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_claims_patient ON claims(patient_id);
CREATE INDEX IF NOT EXISTS idx_claims_timestamp ON claims(timestamp);
`

const schemaScores = `
CREATE TABLE IF NOT EXISTS scores (
    claim_id TEXT PRIMARY KEY,
    raw_score INTEGER NOT NULL,
    probability REAL NOT NULL,
    tier TEXT NOT NULL,
    indicators TEXT NOT NULL,
    scored_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scores_tier ON scores(tier);
CREATE INDEX IF NOT EXISTS idx_scores_scored_at ON scores(scored_at);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id TEXT PRIMARY KEY,
    claim_id TEXT NOT NULL,
    patient_id TEXT NOT NULL,
    doctor_id TEXT NOT NULL,
    amount REAL NOT NULL,
    tier TEXT NOT NULL,
    probability REAL NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending_review',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alerts_claim ON alerts(claim_id);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts(status);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaClaims,
		schemaScores,
		schemaAlerts,
	}
}
