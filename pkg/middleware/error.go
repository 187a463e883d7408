package middleware

import (
	"betabay-platform/pkg/errutil"

	"github.com/gin-gonic/gin"
)

func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil {
			return
		}

		var be errutil.BaseError
		if v, ok := err.Err.(errutil.BaseError); ok {
			be = v
		} else {
			be = errutil.BaseError{Code: errutil.StatusInternal, Message: err.Error()}
		}

		if !c.Writer.Written() {
			c.JSON(be.Code.HTTPStatus(), be.JSON())
		}
	}
}

// Abort records err on the context and stops the handler chain. Handlers use
// it so Error() renders a single consistent payload.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
