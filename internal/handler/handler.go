// Package handler holds the helpers shared by the HTTP handlers.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/middleware"
	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/pkg/auth"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/httputil"
)

// Actor returns the authenticated caregiver, answering 401 when the
// request carries none.
func Actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		httputil.RespondWithError(c, errors.Unauthorized(auth.ErrInvalidToken))
		return model.Actor{}, false
	}
	return actor, true
}

// ParamID parses the named path parameter as a UUID, answering 400 when
// it is malformed.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// Bind decodes the JSON body into dst. Failures are left on the context
// for the error middleware to render.
func Bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return false
	}
	return true
}

// QueryInt reads a non-negative integer query parameter, falling back to
// def when it is absent or malformed.
func QueryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// RespondWithOutcome reports a rule gate that stopped short of a write.
// The body carries the full outcome so the station can show why.
func RespondWithOutcome(c *gin.Context, status int, message string, outcome interface{}) {
	code := errors.ErrConflict
	if status == http.StatusForbidden {
		code = errors.ErrForbidden
	}
	c.JSON(status, httputil.Response{
		Success: false,
		Data:    outcome,
		Error: &httputil.Error{
			Code:    int(code),
			Message: message,
		},
	})
}
