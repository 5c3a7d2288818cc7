package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/yoga-booking-api/api/swagger"
	"github.com/noah-isme/yoga-booking-api/internal/handler"
	"github.com/noah-isme/yoga-booking-api/internal/middleware"
	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/internal/service"
	"github.com/noah-isme/yoga-booking-api/pkg/config"
	"github.com/noah-isme/yoga-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/yoga-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/yoga-booking-api/pkg/middleware/requestid"
	"github.com/noah-isme/yoga-booking-api/pkg/ratelimit"
)

type routerDeps struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *service.MetricsService
	limiter *ratelimit.Store
	tokens  *service.AuthService

	auth       *handler.AuthHandler
	classes    *handler.ClassHandler
	enrollment *handler.EnrollmentHandler
	limits     *handler.LimitHandler
	teachers   *handler.TeacherHandler
	dashboard  *handler.DashboardHandler
	probes     *handler.MetricsHandler
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.logger))
	r.Use(corsmiddleware.New(d.cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(d.metrics))
	r.Use(middleware.AuditContext())
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Timeout(d.cfg.Database.QueryTimeout))

	r.GET("/health", d.probes.Health)
	r.GET("/ready", d.probes.Ready)
	r.GET("/metrics", d.probes.Prometheus)
	if d.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	throttle := middleware.RateLimit(d.limiter, d.metrics)
	authenticated := middleware.JWT(d.tokens)
	teacherOnly := middleware.RequireRoles(models.RoleTeacher)
	studentOnly := middleware.RequireRoles(models.RoleStudent)

	api := r.Group(d.cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/signup", throttle, d.auth.SignUp)
	auth.POST("/login", throttle, d.auth.Login)
	auth.POST("/refresh", throttle, d.auth.Refresh)
	auth.POST("/forgot-password", throttle, d.auth.ForgotPassword)
	auth.POST("/reset-password", throttle, d.auth.ResetPassword)
	auth.POST("/logout", authenticated, d.auth.Logout)
	auth.GET("/me", authenticated, d.auth.Me)
	auth.PUT("/password", authenticated, throttle, d.auth.ChangePassword)

	secured := api.Group("", authenticated)
	secured.GET("/classes", d.classes.List)
	secured.GET("/classes/:id", d.classes.Get)
	secured.GET("/classes/:id/availability", d.classes.Availability)
	secured.GET("/teachers", d.teachers.List)
	secured.GET("/dashboard", d.dashboard.Get)

	teacher := secured.Group("", teacherOnly)
	teacher.POST("/classes", throttle, d.classes.Create)
	teacher.PUT("/classes/:id", throttle, d.classes.Update)
	teacher.DELETE("/classes/:id", throttle, d.classes.Delete)
	teacher.GET("/classes/:id/roster", d.classes.Roster)
	teacher.GET("/teacher/classes", d.classes.ListOwn)
	teacher.GET("/limits", d.limits.List)
	teacher.PUT("/limits", throttle, d.limits.Assign)
	teacher.PATCH("/limits/:id", throttle, d.limits.Update)
	teacher.DELETE("/limits/students/:studentId", throttle, d.limits.Delete)

	student := secured.Group("", studentOnly)
	student.POST("/enrollments", throttle, d.enrollment.Enroll)
	student.DELETE("/enrollments/:classId", throttle, d.enrollment.Cancel)
	student.GET("/enrollments/me", d.enrollment.ListMine)

	return r
}
