package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/handler"
	"github.com/noah-isme/course-enrollment-api/internal/middleware"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	"github.com/noah-isme/course-enrollment-api/internal/service"
	"github.com/noah-isme/course-enrollment-api/pkg/config"
	"github.com/noah-isme/course-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/cors"
	"github.com/noah-isme/course-enrollment-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/course-enrollment-api/pkg/middleware/requestid"
)

type routerDeps struct {
	identity    *service.IdentityService
	metrics     *service.MetricsService
	enrollments *handler.EnrollmentHandler
	semesters   *handler.SemesterHandler
	admin       *handler.AdminHandler
	ops         *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.identity))

	semesters := api.Group("/semesters")
	semesters.GET("/enrollment-window", deps.semesters.EnrollmentWindow)
	semesters.GET("/running", deps.semesters.RunningSemester)

	limiter := ratelimit.New(cfg.Enrollment.RateLimitPerMinute, 5)
	byUser := func(c *gin.Context) string {
		if claims := middleware.Claims(c); claims != nil {
			return claims.UserID
		}
		return c.ClientIP()
	}

	student := api.Group("")
	student.Use(middleware.RequireRoles(models.RoleStudent), middleware.StudentActor(deps.identity))
	student.GET("/offerings/open", deps.enrollments.OpenOfferings)
	student.GET("/enrollments/me", deps.enrollments.MyCourses)
	student.POST("/enrollments", ratelimit.Middleware(limiter, byUser), deps.enrollments.Enroll)
	student.POST("/enrollments/:id/drop", ratelimit.Middleware(limiter, byUser), deps.enrollments.Drop)

	admin := api.Group("/admin")
	admin.Use(middleware.RequireRoles(models.RoleSuperAdmin, models.RoleDepartmentAdmin), middleware.AdminActor(deps.identity))
	admin.GET("/enrollments", deps.admin.ListStudents)
	admin.GET("/students/:id/enrollments", deps.admin.StudentEnrollments)
	admin.GET("/offerings/:id/roster", deps.admin.Roster)
	admin.POST("/offerings/:id/reconcile", middleware.RequireRoles(models.RoleSuperAdmin), deps.admin.Reconcile)

	return r
}
