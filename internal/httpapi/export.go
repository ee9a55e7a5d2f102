package httpapi

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"voice-console/internal/calls"
	"voice-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

var callLogCSVHeader = []string{"Call ID", "Caller Number", "Duration", "Status", "Date"}

// ExportCallLogs streams the agent's call logs as CSV, newest first.
// Missing values are written as "-", duration in whole seconds, date in RFC 3339 UTC.
func (h Handlers) ExportCallLogs(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	logs, err := h.Calls.ListLogs(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	name := fmt.Sprintf("call-logs-%d-%s.csv", id, time.Now().UTC().Format("20060102T150405Z"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(callLogCSVHeader)
	for _, l := range logs {
		_ = w.Write(callLogRecord(l))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		// Headers are already sent; the client sees a truncated file.
		logger.FromGin(c).WarnContext(c.Request.Context(), "call log export interrupted", "agent_id", id, "err", err)
	}
}

func callLogRecord(l calls.CallLogEntry) []string {
	dash := func(s *string) string {
		if s == nil || *s == "" {
			return "-"
		}
		return *s
	}
	duration := "-"
	if l.Duration != nil {
		duration = strconv.Itoa(*l.Duration)
	}
	status := string(l.Status)
	if status == "" {
		status = "-"
	}
	return []string{l.CallID, dash(l.CallerNumber), duration, status, l.CreatedAt.UTC().Format(time.RFC3339)}
}
