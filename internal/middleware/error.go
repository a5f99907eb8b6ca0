package middleware

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/httputil"
	pkgvalidator "github.com/jwalitptl/nursing-api/pkg/validator"
)

// ErrorHandler renders the last error a handler attached with c.Error,
// unless the handler already wrote a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		var verrs validator.ValidationErrors
		switch {
		case stderrors.As(last.Err, &verrs):
			httputil.RespondWithError(c, errors.BadRequest("validation failed", verrs).
				WithDetails(pkgvalidator.FieldErrors(verrs)))
		case last.IsType(gin.ErrorTypeBind):
			httputil.RespondWithError(c, errors.BadRequest("invalid request body", last.Err))
		default:
			httputil.RespondWithError(c, last.Err)
		}
	}
}
