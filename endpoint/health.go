package endpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oceanvince/mangxia/middleware"
	"github.com/oceanvince/mangxia/util"
)

var startedAt = time.Now()

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  util.APIResponse
// @Failure      503  {object}  util.APIResponse
// @Router       /health [get]
func Health(c *gin.Context) {
	data := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(startedAt).Round(time.Second).String(),
	}

	db := middleware.GetDB(c)
	if db == nil {
		util.CallServiceUnavailable(c, util.APIErrorParams{
			Msg: "Database connection not available",
			Err: errors.New("database is nil"),
		})
		return
	}
	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		util.CallServiceUnavailable(c, util.APIErrorParams{
			Msg: "Database unreachable",
			Err: err,
		})
		return
	}

	data["status"] = "ok"
	data["database"] = "up"
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Service healthy",
		Data: data,
	})
}

// Welcome answers the root path with the application name.
func Welcome(appName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		util.CallSuccessOK(c, util.APISuccessParams{
			Msg:  fmt.Sprintf("Welcome to %s!", appName),
			Data: map[string]interface{}{},
		})
	}
}
