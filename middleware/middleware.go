package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/oceanvince/mangxia/service"
)

const (
	dbKey       = "db"
	workflowKey = "workflow"
	// DoctorIDKey holds the authenticated doctor's id once RequireDoctor has run.
	DoctorIDKey = "doctor_id"
)

func setCorsHeaders(c *gin.Context) {
	c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
	c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
	c.Writer.Header().Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Authorization")
	c.Writer.Header().Set("Access-Control-Max-Age", "86400")
	c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
}

// CORSMiddleware configures CORS headers for incoming requests.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		setCorsHeaders(c)

		// For preflight requests, respond with 204 and abort further processing.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// DatabaseMiddleware makes the store handle available to handlers.
func DatabaseMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(dbKey, db)
		c.Next()
	}
}

// GetDB returns the store handle set by DatabaseMiddleware, or nil.
func GetDB(c *gin.Context) *gorm.DB {
	db, _ := c.Get(dbKey)
	gdb, _ := db.(*gorm.DB)
	return gdb
}

// WorkflowMiddleware makes the medication workflow available to handlers.
func WorkflowMiddleware(w *service.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(workflowKey, w)
		c.Next()
	}
}

// GetWorkflow returns the workflow set by WorkflowMiddleware, or nil.
func GetWorkflow(c *gin.Context) *service.Workflow {
	v, _ := c.Get(workflowKey)
	w, _ := v.(*service.Workflow)
	return w
}

// GetDoctorID returns the authenticated doctor id, if any.
func GetDoctorID(c *gin.Context) (string, bool) {
	v, ok := c.Get(DoctorIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
