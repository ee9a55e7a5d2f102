package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"voice-console/internal/vapi"

	"github.com/gin-gonic/gin"
)

// kindOp describes which operations the simulated API exposes per resource.
type kindOp struct {
	decode    func(c *gin.Context) (map[string]any, error)
	canUpdate bool
	canDelete bool
}

var kindOps = map[string]kindOp{
	vapi.ResourceCredential:  {decode: decodeAs[vapi.CredentialPayload], canDelete: true},
	vapi.ResourceAgent:       {decode: decodeAs[vapi.AgentPayload], canUpdate: true, canDelete: true},
	vapi.ResourcePhoneNumber: {decode: decodeAs[vapi.PhoneNumberPayload], canDelete: true},
	vapi.ResourceCall:        {decode: decodeAs[vapi.CallPayload]},
	vapi.ResourceAssistant:   {decode: decodeAs[vapi.AssistantPayload]},
}

type validatable interface {
	Validate() error
}

// decodeAs binds the body into the typed payload the real client sends, so the
// simulator rejects exactly what the client would reject locally.
func decodeAs[T validatable](c *gin.Context) (map[string]any, error) {
	var p T
	if err := json.NewDecoder(c.Request.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.New(strings.TrimPrefix(err.Error(), vapi.ErrInvalidArgument.Error()+": "))
	}
	return toMap(p)
}

// Handler serves the simulated remote API over s.
func Handler(s *State) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requireBearer())

	h := &handlers{state: s}
	r.POST("/:kind", h.create)
	r.GET("/:kind", h.list)
	r.GET("/:kind/:id", h.get)
	r.PATCH("/:kind/:id", h.update)
	r.DELETE("/:kind/:id", h.remove)
	return r
}

func requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid Key. Hot tip, you may be using the private key instead of the public key, or vice versa."})
			return
		}
		c.Next()
	}
}

type handlers struct {
	state *State
}

func (h *handlers) kind(c *gin.Context) (string, kindOp, bool) {
	kind := c.Param("kind")
	op, ok := kindOps[kind]
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("Cannot %s /%s", c.Request.Method, kind)})
	}
	return kind, op, ok
}

func (h *handlers) create(c *gin.Context) {
	kind, op, ok := h.kind(c)
	if !ok {
		return
	}
	body, err := op.decode(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": []string{err.Error()}})
		return
	}
	c.JSON(http.StatusCreated, h.state.create(kind, body))
}

func (h *handlers) list(c *gin.Context) {
	kind, _, ok := h.kind(c)
	if !ok {
		return
	}
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	c.JSON(http.StatusOK, h.state.list(kind, offset, limit))
}

func (h *handlers) get(c *gin.Context) {
	kind, _, ok := h.kind(c)
	if !ok {
		return
	}
	out, found := h.state.get(kind, c.Param("id"))
	if !found {
		notFound(c, kind, c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) update(c *gin.Context) {
	kind, op, ok := h.kind(c)
	if !ok {
		return
	}
	if !op.canUpdate {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("Cannot PATCH /%s/%s", kind, c.Param("id"))})
		return
	}
	var upd vapi.AgentUpdate
	if err := json.NewDecoder(c.Request.Body).Decode(&upd); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": []string{"invalid JSON body"}})
		return
	}
	patch, err := toMap(upd)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": []string{err.Error()}})
		return
	}
	out, found := h.state.update(kind, c.Param("id"), patch)
	if !found {
		notFound(c, kind, c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) remove(c *gin.Context) {
	kind, op, ok := h.kind(c)
	if !ok {
		return
	}
	if !op.canDelete {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("Cannot DELETE /%s/%s", kind, c.Param("id"))})
		return
	}
	h.state.remove(kind, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func notFound(c *gin.Context, kind, id string) {
	noun := strings.ReplaceAll(kind, "-", " ")
	if noun != "" {
		noun = strings.ToUpper(noun[:1]) + noun[1:]
	}
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": fmt.Sprintf("%s %s not found", noun, id)})
}
