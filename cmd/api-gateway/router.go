package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/casework-api/api/swagger"
	"github.com/noah-isme/casework-api/internal/handler"
	"github.com/noah-isme/casework-api/internal/middleware"
	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/internal/service"
	"github.com/noah-isme/casework-api/pkg/config"
	"github.com/noah-isme/casework-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/casework-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/casework-api/pkg/middleware/requestid"
)

type routerDeps struct {
	tokens      middleware.TokenValidator
	metrics     *service.MetricsService
	cases       *handler.CaseHandler
	plans       *handler.SupportPlanHandler
	observation *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if deps.metrics != nil {
		r.Use(middleware.Metrics(deps.metrics))
		r.GET("/metrics", deps.observation.Prometheus)
	}

	r.GET("/health", deps.observation.Health)
	r.GET("/ready", deps.observation.Ready)

	if cfg.Docs.Enabled && cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(deps.tokens))

	cases := api.Group("/cases")
	cases.POST("", deps.cases.Register)
	cases.GET("/:id", deps.cases.Get)
	cases.PATCH("/:id", deps.cases.Update)
	cases.GET("/:id/audit", deps.cases.Audit)
	cases.POST("/:id/status", deps.cases.AdvanceStatus)
	cases.POST("/:id/intake/start", deps.cases.StartIntake)
	cases.POST("/:id/intake/finish", deps.cases.FinishIntake)
	cases.POST("/:id/assign", middleware.RequireRoles(models.RoleManager), deps.cases.Assign)
	cases.POST("/:id/close", deps.cases.Close)

	cases.GET("/:id/plan", deps.plans.Get)
	cases.POST("/:id/plan", middleware.RequireRoles(models.RoleManager, models.RoleSpecialist), deps.plans.Create)
	cases.PATCH("/:id/plan", deps.plans.Update)
	cases.GET("/:id/plan/history", deps.plans.History)

	return r
}
