package model

import "time"

// Customer is one entry of the available-customer directory shown in the
// dashboard selector.
type Customer struct {
	ID                 string `json:"id" yaml:"id"`
	Name               string `json:"name" yaml:"name"`
	RegistrationNumber string `json:"registration_number,omitempty" yaml:"registration_number"`
	Jurisdiction       string `json:"jurisdiction,omitempty" yaml:"jurisdiction"`
}

// EntityProfile describes the business entity a check was run against.
type EntityProfile struct {
	CustomerID         string `json:"customer_id"`
	LegalName          string `json:"legal_name"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	Jurisdiction       string `json:"jurisdiction,omitempty"`
	EntityType         string `json:"entity_type,omitempty"`
	Status             string `json:"status,omitempty"`
}

// RiskFactor is one component of the risk score breakdown.
type RiskFactor struct {
	Category string `json:"category"`
	Score    int    `json:"score"`
	Weight   int    `json:"weight"`
}

// RiskTrigger is a rule that fired during evaluation.
type RiskTrigger struct {
	Code        string `json:"code"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

// RiskAssessment is the scored outcome of a check.
type RiskAssessment struct {
	Score     int           `json:"score"`
	Band      RiskBand      `json:"band"`
	Breakdown []RiskFactor  `json:"breakdown,omitempty"`
	Triggers  []RiskTrigger `json:"triggers,omitempty"`
}

// TransactionInsights summarises recent transaction activity for the entity.
type TransactionInsights struct {
	InboundCount      int      `json:"inbound_count"`
	OutboundCount     int      `json:"outbound_count"`
	TotalVolume       float64  `json:"total_volume"`
	Currency          string   `json:"currency,omitempty"`
	HighRiskCorridors []string `json:"high_risk_corridors,omitempty"`
}

// CheckResult is the full payload returned by the risk-check backend.
// The run controller only reads Risk.Band and Entity.LegalName; the rest is
// carried opaquely for the detail views and the audit tab.
type CheckResult struct {
	TraceID            string              `json:"trace_id"`
	Entity             EntityProfile       `json:"entity"`
	Risk               RiskAssessment      `json:"risk"`
	Transactions       TransactionInsights `json:"transactions"`
	RecommendedActions []string            `json:"recommended_actions,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	GeneratedAt        time.Time           `json:"generated_at"`
}

// RecentCheckRecord is one entry of the bounded recent-check history,
// appended most-recent-first on every successful run.
type RecentCheckRecord struct {
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	RiskBand     RiskBand  `json:"risk_band"`
	TraceID      string    `json:"trace_id"`
	Timestamp    time.Time `json:"timestamp"`
}

// RiskBandOverride records an analyst's manual override of the computed
// risk band for a customer. The computed result is never mutated; detail
// views merge the override on read.
type RiskBandOverride struct {
	CustomerID   string    `json:"customer_id"`
	Band         RiskBand  `json:"band"`
	PreviousBand RiskBand  `json:"previous_band,omitempty"`
	Actor        string    `json:"actor"`
	Reason       string    `json:"reason,omitempty"`
	TraceID      string    `json:"trace_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
