package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oceanvince/mangxia/util"
)

// RequestTimeout puts a deadline on the request context. Handlers pass that
// context down to the store, so a slow query is cancelled and rolled back.
// If the deadline passed and nothing was written yet, the client gets a 504.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			util.CallTimeout(c, util.APIErrorParams{
				Msg: "Request processing exceeded the allowed time limit",
				Err: ctx.Err(),
			})
			c.Abort()
		}
	}
}
