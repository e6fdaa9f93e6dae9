package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/limaJavier/timetable-engine/pkg/generator"
	"github.com/limaJavier/timetable-engine/pkg/model"
	"github.com/limaJavier/timetable-engine/pkg/resolver"
	"github.com/limaJavier/timetable-engine/pkg/rules"
)

// Response is the envelope of every reply
type Response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Details any    `json:"details,omitempty"`
}

var errBadRequest = errors.New("bad request")

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Message: "success", Data: data})
}

// fail maps engine errors to HTTP: input problems are 400, stale suggestions 409 and anything else 500
func fail(c *gin.Context, err error) {
	var (
		configErrs rules.ConfigErrors
		configErr  rules.ConfigError
		domainErr  *model.InvalidDomainError
		staleErr   *resolver.StaleSuggestionError
	)
	_ = c.Error(err)

	switch {
	case errors.As(err, &staleErr):
		c.JSON(http.StatusConflict, Response{Message: err.Error(), Details: staleErr.Reason})
	case errors.As(err, &configErrs):
		c.JSON(http.StatusBadRequest, Response{Message: "invalid rule graph", Details: []rules.ConfigError(configErrs)})
	case errors.As(err, &configErr):
		c.JSON(http.StatusBadRequest, Response{Message: "invalid rule graph", Details: []rules.ConfigError{configErr}})
	case errors.As(err, &domainErr):
		c.JSON(http.StatusBadRequest, Response{Message: "invalid domain", Details: domainErr.Issues})
	case errors.Is(err, generator.ErrInvalidConfig), errors.Is(err, errBadRequest):
		c.JSON(http.StatusBadRequest, Response{Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, Response{Message: "internal error"})
	}
}
