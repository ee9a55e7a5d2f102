package reporting

import (
	"context"
	"errors"

	"voice-console/internal/calls"
)

const unknownStatus = "unknown"

// LogLister returns an agent's logs after the ownership check. *calls.Service implements it.
type LogLister interface {
	ListLogs(ctx context.Context, userID string, agentID int64) ([]calls.CallLogEntry, error)
}

type Service struct {
	logs LogLister
}

func NewService(logs LogLister) *Service { return &Service{logs: logs} }

func (s *Service) CallsSummary(ctx context.Context, userID string, agentID int64) (CallsSummary, error) {
	if s.logs == nil {
		return CallsSummary{}, errors.New("reporting: log source not configured")
	}
	rows, err := s.logs.ListLogs(ctx, userID, agentID)
	if err != nil {
		return CallsSummary{}, err
	}
	out := Summarize(rows)
	out.AgentID = agentID
	return out, nil
}

// Summarize folds a call log. Entries with an unknown duration add nothing to
// the duration totals but still count as calls; the average is over calls with
// a known duration.
func Summarize(rows []calls.CallLogEntry) CallsSummary {
	out := CallsSummary{ByStatus: map[string]int{}}
	timed := 0
	for _, c := range rows {
		out.TotalCalls++
		if c.Duration != nil {
			out.TotalDurationSeconds += *c.Duration
			timed++
		}
		if c.RecordingURL != nil && *c.RecordingURL != "" {
			out.RecordedCalls++
		}
		if c.Transcript != nil && *c.Transcript != "" {
			out.TranscribedCalls++
		}
		status := string(c.Status)
		if status == "" {
			status = unknownStatus
		}
		out.ByStatus[status]++
	}
	if timed > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / timed
	}
	return out
}
