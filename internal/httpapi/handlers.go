package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"voice-console/internal/agents"
	"voice-console/internal/audit"
	"voice-console/internal/auth"
	"voice-console/internal/calls"
	"voice-console/internal/rbac"
	"voice-console/internal/reporting"
	"voice-console/internal/vapi"

	"github.com/gin-gonic/gin"
)

// RemoteClient builds a voice API client for one agent's secret.
type RemoteClient func(apiKey string) (*vapi.Client, error)

// AuditLog lists a user's audit trail. *audit.SQLRepository implements it.
type AuditLog interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]audit.Event, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Revoker auth.Revoker
	Agents  *agents.Service
	Calls   *calls.Service
	Reports *reporting.Service
	Remote  RemoteClient
	// Audit is optional; without it /audit-events is not registered.
	Audit AuditLog
}

// RegisterPublic wires routes that do not need an access token.
func (h Handlers) RegisterPublic(r gin.IRoutes) {
	useJSONFieldNames()
	r.POST("/auth/refresh", h.Refresh)
}

// Register wires the authenticated procedures onto v1. The group must already
// run auth.RequireAccessToken.
func (h Handlers) Register(v1 *gin.RouterGroup) {
	useJSONFieldNames()
	v1.Use(rbac.RequireIdentity(), audit.CaptureClientIP())

	v1.GET("/me", h.Me)
	v1.POST("/auth/logout", h.Logout)

	ag := v1.Group("/agents")
	{
		ag.GET("", h.ListAgents)
		ag.POST("", h.CreateAgent)
		ag.GET("/:id", h.GetAgent)
		ag.PATCH("/:id", h.UpdateAgent)
		ag.DELETE("/:id", h.DeleteAgent)
		ag.GET("/:id/call-logs", h.ListCallLogs)
		ag.GET("/:id/call-logs/summary", h.CallLogSummary)
		ag.GET("/:id/call-logs/export", h.ExportCallLogs)
		h.registerRemote(ag.Group("/:id/remote"))
	}

	v1.POST("/call-logs", h.CreateCallLog)
	v1.POST("/calls", h.InitiateCall)
	v1.GET("/calls/:call_id", h.CallStatus)

	if h.Audit != nil {
		v1.GET("/audit-events", h.ListAuditEvents)
	}

	admin := v1.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleOperator))
	{
		admin.GET("/pending-call-logs", h.PendingCallLogs)
	}
}

func userID(c *gin.Context) string {
	uid, _ := auth.UserID(c.Request.Context())
	return uid
}

// pathID parses a positive integer path parameter. On failure it writes the 400.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		validationFailed(c, map[string]string{name: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// --- Agents ---

func (h Handlers) ListAgents(c *gin.Context) {
	list, err := h.Agents.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) CreateAgent(c *gin.Context) {
	var req agents.CreateRequest
	if !bindJSON(c, &req) {
		return
	}
	a, err := h.Agents.Create(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetAgent returns null for a missing id, matching the console's contract.
func (h Handlers) GetAgent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, found, err := h.Agents.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) UpdateAgent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var p agents.AgentPatch
	if !bindJSON(c, &p) {
		return
	}
	a, err := h.Agents.Update(c.Request.Context(), userID(c), id, p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h Handlers) DeleteAgent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Agents.Delete(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- Call logs ---

func (h Handlers) ListCallLogs(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	logs, err := h.Calls.ListLogs(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h Handlers) CallLogSummary(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) CreateCallLog(c *gin.Context) {
	var req calls.NewCallLog
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.Calls.CreateLog(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h Handlers) PendingCallLogs(c *gin.Context) {
	n, err := h.Calls.PendingCount(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": n})
}

// --- Calls ---

func (h Handlers) InitiateCall(c *gin.Context) {
	var req calls.InitiateRequest
	if !bindJSON(c, &req) {
		return
	}
	body, err := h.Calls.Initiate(c.Request.Context(), userID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, body)
}

func (h Handlers) CallStatus(c *gin.Context) {
	agentID, err := strconv.ParseInt(c.Query("agent_id"), 10, 64)
	if err != nil || agentID <= 0 {
		validationFailed(c, map[string]string{"agent_id": "must be a positive integer"})
		return
	}
	body, err := h.Calls.Status(c.Request.Context(), userID(c), agentID, c.Param("call_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, body)
}

// --- Audit ---

func (h Handlers) ListAuditEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			validationFailed(c, map[string]string{"limit": "must be between 1 and 500"})
			return
		}
		limit = n
	}
	events, err := h.Audit.ListForUser(c.Request.Context(), userID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
