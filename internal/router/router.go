package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/report-card-api/api/swagger"
	"github.com/noah-isme/report-card-api/internal/handler"
	"github.com/noah-isme/report-card-api/internal/middleware"
	"github.com/noah-isme/report-card-api/internal/service"
	"github.com/noah-isme/report-card-api/pkg/config"
	"github.com/noah-isme/report-card-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/report-card-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/report-card-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth       *handler.AuthHandler
	Health     *handler.HealthHandler
	Students   *handler.StudentHandler
	Subjects   *handler.SubjectHandler
	ReportCard *handler.ReportCardHandler
	Marks      *handler.MarkHandler
	Overview   *handler.OverviewHandler
}

// New builds the gin engine. Everything except health, login, metrics and docs requires a
// bearer token.
func New(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, auth middleware.TokenValidator, h Handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.RedirectTrailingSlash = true
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", h.Health.Health)
	r.GET("/ready", h.Health.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	secured.GET("/auth/me", h.Auth.Me)

	students := secured.Group("/students")
	students.GET("", h.Students.List)
	students.POST("", h.Students.Create)
	students.GET("/:id", h.Students.Get)
	students.PUT("/:id", h.Students.Update)
	students.PATCH("/:id", h.Students.Patch)
	students.DELETE("/:id", h.Students.Delete)
	students.GET("/:id/avg-overview", h.Overview.AverageOverview)
	students.GET("/:id/avg-overview/export", h.Overview.Export)

	subjects := secured.Group("/subjects")
	subjects.GET("", h.Subjects.List)
	subjects.POST("", h.Subjects.Create)
	subjects.GET("/:id", h.Subjects.Get)
	subjects.PUT("/:id", h.Subjects.Update)
	subjects.PATCH("/:id", h.Subjects.Patch)
	subjects.DELETE("/:id", h.Subjects.Delete)

	cards := secured.Group("/report-cards")
	cards.GET("", h.ReportCard.List)
	cards.POST("", h.ReportCard.Create)
	cards.GET("/:id", h.ReportCard.Get)
	cards.PUT("/:id", h.ReportCard.Update)
	cards.PATCH("/:id", h.ReportCard.Patch)
	cards.DELETE("/:id", h.ReportCard.Delete)

	marks := secured.Group("/marks")
	marks.GET("", h.Marks.List)
	marks.POST("", h.Marks.Create)
	marks.GET("/:id", h.Marks.Get)
	marks.PUT("/:id", h.Marks.Update)
	marks.PATCH("/:id", h.Marks.Patch)
	marks.DELETE("/:id", h.Marks.Delete)

	secured.GET("/report-card/:id", h.ReportCard.Detail)
	secured.GET("/student/:id/year-report-cards", h.Overview.YearReportCards)

	return r
}
