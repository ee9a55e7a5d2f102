package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"voice-console/internal/vapi"

	"github.com/gin-gonic/gin"
)

// registerRemote proxies the voice API under /v1/agents/:id/remote using the
// agent's stored secret. The ownership check runs before any client is built
// and before the request body or query is validated.
func (h Handlers) registerRemote(rg *gin.RouterGroup) {
	cred := rg.Group("/credentials")
	{
		cred.GET("", h.proxy((*vapi.Client).ListCredentials))
		cred.POST("", proxyCreate(h, (*vapi.Client).CreateCredential))
		cred.GET("/:rid", h.proxyID((*vapi.Client).GetCredential))
		cred.DELETE("/:rid", h.proxyID((*vapi.Client).DeleteCredential))
	}
	ag := rg.Group("/agents")
	{
		ag.GET("", h.proxy((*vapi.Client).ListAgents))
		ag.POST("", proxyCreate(h, (*vapi.Client).CreateAgent))
		ag.GET("/:rid", h.proxyID((*vapi.Client).GetAgent))
		ag.PATCH("/:rid", h.updateRemoteAgent)
		ag.DELETE("/:rid", h.proxyID((*vapi.Client).DeleteAgent))
	}
	pn := rg.Group("/phone-numbers")
	{
		pn.GET("", h.proxy((*vapi.Client).ListPhoneNumbers))
		pn.POST("", proxyCreate(h, (*vapi.Client).CreatePhoneNumber))
		pn.GET("/:rid", h.proxyID((*vapi.Client).GetPhoneNumber))
		pn.DELETE("/:rid", h.proxyID((*vapi.Client).DeletePhoneNumber))
	}
	cl := rg.Group("/calls")
	{
		cl.GET("", h.listRemoteCalls)
		cl.POST("", proxyCreate(h, (*vapi.Client).CreateCall))
		cl.GET("/:rid", h.proxyID((*vapi.Client).GetCall))
	}
	as := rg.Group("/assistants")
	{
		as.GET("", h.proxy((*vapi.Client).ListAssistants))
		as.POST("", proxyCreate(h, (*vapi.Client).CreateAssistant))
		as.GET("/:rid", h.proxyID((*vapi.Client).GetAssistant))
	}
}

// ownedClient resolves the path agent for the caller and builds its client.
// On failure it writes the response and returns nil.
func (h Handlers) ownedClient(c *gin.Context) *vapi.Client {
	id, ok := pathID(c, "id")
	if !ok {
		return nil
	}
	agent, err := h.Agents.Owned(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, err)
		return nil
	}
	client, err := h.Remote(agent.APIKey)
	if err != nil {
		respondError(c, err)
		return nil
	}
	return client
}

func (h Handlers) proxy(call func(*vapi.Client, context.Context) (json.RawMessage, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := h.ownedClient(c)
		if client == nil {
			return
		}
		body, err := call(client, c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		writeRaw(c, http.StatusOK, body)
	}
}

func (h Handlers) proxyID(call func(*vapi.Client, context.Context, string) (json.RawMessage, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := h.ownedClient(c)
		if client == nil {
			return
		}
		body, err := call(client, c.Request.Context(), c.Param("rid"))
		if err != nil {
			respondError(c, err)
			return
		}
		writeRaw(c, http.StatusOK, body)
	}
}

// proxyCreate binds the typed payload for one resource kind; the client
// validates it before any network call.
func proxyCreate[P any](h Handlers, call func(*vapi.Client, context.Context, P) (json.RawMessage, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := h.ownedClient(c)
		if client == nil {
			return
		}
		var p P
		if !bindJSON(c, &p) {
			return
		}
		body, err := call(client, c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		writeRaw(c, http.StatusOK, body)
	}
}

func (h Handlers) updateRemoteAgent(c *gin.Context) {
	client := h.ownedClient(c)
	if client == nil {
		return
	}
	var upd vapi.AgentUpdate
	if !bindJSON(c, &upd) {
		return
	}
	body, err := client.UpdateAgent(c.Request.Context(), c.Param("rid"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, body)
}

func (h Handlers) listRemoteCalls(c *gin.Context) {
	client := h.ownedClient(c)
	if client == nil {
		return
	}
	var f vapi.ListFilter
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			validationFailed(c, map[string]string{name: "must be a non-negative integer"})
			return
		}
		*dst = n
	}
	body, err := client.ListCalls(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	writeRaw(c, http.StatusOK, body)
}

// writeRaw passes a remote body through untouched. An empty body (some deletes)
// becomes {"success":true}.
func writeRaw(c *gin.Context, status int, body json.RawMessage) {
	if len(body) == 0 {
		c.JSON(status, gin.H{"success": true})
		return
	}
	c.Data(status, "application/json; charset=utf-8", body)
}
