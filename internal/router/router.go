package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/coverage-api/internal/handler"
	"github.com/noah-isme/coverage-api/internal/middleware"
	"github.com/noah-isme/coverage-api/internal/models"
	"github.com/noah-isme/coverage-api/internal/repository"
	"github.com/noah-isme/coverage-api/internal/service"
	"github.com/noah-isme/coverage-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/coverage-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/coverage-api/pkg/middleware/requestid"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Logger         *zap.Logger
	Reporter       *logger.Reporter
	Auth           *service.AuthService
	Metrics        *service.MetricsService
	Audit          *repository.AuditRepository
	AllowedOrigins []string
	APIPrefix      string
	EnableDocs     bool

	Coverage *handler.CoverageHandler
	Roster   *handler.RosterHandler
	Earnings *handler.EarningsHandler
	Offers   *handler.OfferHandler
	TimeOff  *handler.TimeOffHandler
	Health   *handler.MetricsHandler
}

// New builds the gin engine with every route registered.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(d.Reporter, d.Logger))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(d.Logger))
	r.Use(corsmiddleware.New(d.AllowedOrigins))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(middleware.ReportServerErrors(d.Reporter))

	r.GET("/health", d.Health.Health)
	r.GET("/ready", d.Health.Ready)
	r.GET("/metrics", d.Health.Prometheus)
	if d.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(d.APIPrefix)
	api.Use(middleware.Scope(d.Auth))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleSubstitute)
	admin := middleware.RequireRoles(models.RoleAdmin)
	teacher := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(d.Audit, d.Logger, action, resource)
	}

	coverage := api.Group("/coverage")
	{
		coverage.GET("/openings", staff, d.Coverage.List)
		coverage.GET("/openings/:id", staff, d.Coverage.Get)
		coverage.GET("/openings/:id/candidates", admin, d.Coverage.Candidates)
		coverage.POST("/openings", audit(models.AuditActionOpeningCreate, "coverage_opening"), admin, d.Coverage.Create)
		coverage.POST("/openings/:id/confirm", audit(models.AuditActionOpeningConfirm, "coverage_opening"), admin, d.Coverage.Confirm)
		coverage.POST("/openings/:id/complete", audit(models.AuditActionOpeningComplete, "coverage_opening"), admin, d.Coverage.Complete)
		coverage.POST("/openings/:id/cancel", audit(models.AuditActionOpeningCancel, "coverage_opening"), admin, d.Coverage.Cancel)

		coverage.GET("/history", admin, d.Earnings.History)
		coverage.GET("/history/export", admin, d.Earnings.Export)
		coverage.POST("/history/:id/verify", audit(models.AuditActionLedgerVerify, "coverage_log"), admin, d.Earnings.Verify)
		coverage.POST("/history/:id/pay", audit(models.AuditActionLedgerPay, "coverage_log"), admin, d.Earnings.Pay)
		coverage.PATCH("/history/:id/amount", audit(models.AuditActionLedgerOverride, "coverage_log"), admin, d.Earnings.OverrideAmount)
	}

	subs := api.Group("/substitutes", staff)
	{
		subs.POST("/accept-job", d.Coverage.Accept)
		subs.POST("/withdraw-job", d.Coverage.Withdraw)
		subs.POST("/call-out", d.Coverage.CallOut)
		subs.GET("/offers", d.Offers.List)
		subs.GET("/my-earnings", d.Earnings.Summary)
	}

	teachers := api.Group("/teachers", teacher)
	{
		teachers.POST("/accept-job", d.Coverage.Accept)
		teachers.POST("/call-out", d.Coverage.CallOut)
		teachers.POST("/time-off", d.TimeOff.Create)
		teachers.GET("/time-off", d.TimeOff.List)
		teachers.POST("/time-off/:id/cancel", d.TimeOff.Cancel)
	}

	// Audit wraps the role check so refused admin calls are recorded too.
	adm := api.Group("/admin")
	{
		adm.POST("/emergency-assign", audit(models.AuditActionEmergencyAssign, "coverage_opening"), admin, d.Coverage.EmergencyAssign)
		adm.POST("/mark-absent", audit(models.AuditActionMarkAbsent, "staff"), admin, d.Roster.MarkAbsent)
		adm.POST("/mark-returned", audit(models.AuditActionMarkReturned, "staff"), admin, d.Roster.MarkReturned)
		adm.GET("/roster", admin, d.Roster.List)
		adm.POST("/roster", audit(models.AuditActionStaffHire, "staff"), admin, d.Roster.Hire)
		adm.POST("/roster/age", audit(models.AuditActionRosterAge, "staff"), admin, d.Roster.Age)
		adm.DELETE("/roster/:id", audit(models.AuditActionStaffDeactivate, "staff"), admin, d.Roster.Deactivate)
		adm.GET("/time-off", admin, d.TimeOff.List)
		adm.POST("/time-off/:id/approve", audit(models.AuditActionTimeOffDecision, "time_off_request"), admin, d.TimeOff.Approve)
		adm.POST("/time-off/:id/deny", audit(models.AuditActionTimeOffDecision, "time_off_request"), admin, d.TimeOff.Deny)
	}

	return r
}
