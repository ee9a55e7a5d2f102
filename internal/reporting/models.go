package reporting

// CallsSummary aggregates one agent's call log.
type CallsSummary struct {
	AgentID int64 `json:"agentId"`

	TotalCalls int `json:"totalCalls"`
	// ByStatus counts entries per status string; entries without a status count under "unknown".
	ByStatus map[string]int `json:"byStatus"`

	TotalDurationSeconds   int `json:"totalDurationSeconds"`
	AverageDurationSeconds int `json:"averageDurationSeconds"`

	RecordedCalls    int `json:"recordedCalls"`
	TranscribedCalls int `json:"transcribedCalls"`
}
