package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"voice-console/internal/agents"
	"voice-console/internal/calls"
	"voice-console/internal/vapi"
	"voice-console/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var jsonNamesOnce sync.Once

// useJSONFieldNames makes validator report fields by their JSON name so
// clients see "agentName", not "AgentName".
func useJSONFieldNames() {
	jsonNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

func validationFailed(c *gin.Context, fields map[string]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
}

// bindJSON decodes the body into dst. On failure it writes the 400 and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
		validationFailed(c, fields)
		return false
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
	return false
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
}

// respondError maps service errors onto HTTP. Unknown errors are logged and
// reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var (
		agentField *agents.ValidationError
		callField  *calls.ValidationError
		remote     *vapi.RemoteError
	)
	switch {
	case errors.As(err, &agentField):
		validationFailed(c, map[string]string{agentField.Field: agentField.Message})
	case errors.As(err, &callField):
		validationFailed(c, map[string]string{callField.Field: callField.Message})
	case errors.Is(err, vapi.ErrInvalidArgument),
		errors.Is(err, agents.ErrInvalidArgument),
		errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, agents.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, agents.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "agent not found"})
	case errors.As(err, &remote):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": remote.Error(), "upstreamStatus": remote.StatusCode})
	default:
		_ = c.Error(err)
		logger.FromGin(c).ErrorContext(c.Request.Context(), "request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
