package entity

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Analysis is the preview produced by a dry run: what an optimization pass
// would touch, without applying anything.
type Analysis struct {
	Issues          []Issue          `json:"issues"`
	Summary         AnalysisSummary  `json:"summary"`
	Recommendations []Recommendation `json:"recommendations"`
}

type Issue struct {
	Type        string   `json:"type"`
	Count       int      `json:"count"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

type AnalysisSummary struct {
	TotalIssues              int     `json:"total_issues"`
	TotalAffectedMemories    int     `json:"total_affected_memories"`
	EstimatedSavingsMB       float64 `json:"estimated_savings_mb"`
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
}

type Recommendation struct {
	Type     string   `json:"type"`
	Action   string   `json:"action"`
	Priority Severity `json:"priority"`
}
