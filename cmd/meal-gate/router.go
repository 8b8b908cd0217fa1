package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/meal-gate-api/internal/handler"
	internalmiddleware "github.com/noah-isme/meal-gate-api/internal/middleware"
	"github.com/noah-isme/meal-gate-api/internal/models"
	"github.com/noah-isme/meal-gate-api/internal/service"
	"github.com/noah-isme/meal-gate-api/pkg/config"
	"github.com/noah-isme/meal-gate-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/meal-gate-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/meal-gate-api/pkg/middleware/requestid"
)

type routerDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	auth       *service.AuthService
	metrics    *service.MetricsService
	checkIn    *handler.CheckInHandler
	windows    *handler.MealWindowHandler
	roster     *handler.RosterHandler
	attendance *handler.AttendanceHandler
	probes     *handler.MetricsHandler
}

func newRouter(deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.logger))
	r.Use(corsmiddleware.New(deps.cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.metrics))

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)

	if deps.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.cfg.APIPrefix)
	api.POST("/checkin", deps.checkIn.CheckIn)
	api.GET("/meal-windows", deps.windows.List)
	api.GET("/attendance/count", deps.attendance.Count)

	admin := api.Group("")
	admin.Use(internalmiddleware.JWT(deps.auth), internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.PUT("/meal-windows", deps.windows.Update)
	admin.POST("/meal-windows/:mealType/reset", deps.windows.Reset)
	admin.POST("/roster/sync", deps.roster.Sync)

	return r
}
