package endpoint

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/oceanvince/mangxia/middleware"
	"github.com/oceanvince/mangxia/service"
)

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	AppName          string
	DB               *gorm.DB
	Workflow         *service.Workflow
	Logger           zerolog.Logger
	RequestTimeout   time.Duration
	AuthEnabled      bool
	MetricRateLimit  int
	MetricRateWindow time.Duration
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(cfg.Logger),
		middleware.CORSMiddleware(),
		middleware.RequestTimeout(cfg.RequestTimeout),
		middleware.DatabaseMiddleware(cfg.DB),
		middleware.WorkflowMiddleware(cfg.Workflow),
	)

	router.GET("/", Welcome(cfg.AppName))
	router.GET("/health", Health)

	doctor := middleware.RequireDoctor(cfg.AuthEnabled)
	metricLimit := middleware.RateLimiter(middleware.RateLimitConfig{
		Limit:    cfg.MetricRateLimit,
		Window:   cfg.MetricRateWindow,
		KeyParam: "id",
		Logger:   &cfg.Logger,
	})

	patients := router.Group("/patients")
	{
		patients.GET("", doctor, ListPatients)
		patients.POST("/register", doctor, RegisterPatient)
		patients.GET("/:id", doctor, GetPatient)
		patients.GET("/:id/profile", GetPatientProfile)
		patients.GET("/:id/current-status", GetCurrentStatus)
		patients.GET("/:id/latest-active-plans", GetLatestActivePlans)
		patients.GET("/:id/metrics", ListMeasurements)
		patients.POST("/:id/metrics", metricLimit, SubmitMeasurement)
		patients.PUT("/medication-plan/:planId", doctor, ResolvePlan)
	}
	router.PUT("/medication-plan/:planId", doctor, ResolvePlan)

	return router
}
