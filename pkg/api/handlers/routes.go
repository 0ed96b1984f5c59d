package handlers

import (
	"github.com/jordanlanch/crmleads/pkg/auth"
	apimw "github.com/jordanlanch/crmleads/pkg/api/middleware"
	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/jordanlanch/crmleads/pkg/rbac"
	"github.com/labstack/echo/v4"
)

// APIPrefix is where versioned routes are mounted.
const APIPrefix = "/api/v1"

// Deps is everything the HTTP surface needs.
type Deps struct {
	Assignments AssignmentService
	Rules       RuleService
	Users       interface {
		UserFinder
		apimw.UserGetter
	}
	Codes     CodeService
	Blacklist *auth.TokenBlacklist
	Auth      AuthConfig

	Recorder interface {
		LoginRecorder
		apimw.DenialRecorder
	}
	Logger logger.Logger

	// AuthRateLimit wraps the unauthenticated auth routes. Optional.
	AuthRateLimit echo.MiddlewareFunc
}

// RegisterRoutes mounts the API under APIPrefix. Every route past the auth
// endpoints requires a token; assignment and rule routes also pass the RBAC gate.
func RegisterRoutes(e *echo.Echo, d Deps) {
	var recorder apimw.DenialRecorder
	var loginRecorder LoginRecorder
	if d.Recorder != nil {
		recorder = d.Recorder
		loginRecorder = d.Recorder
	}

	authHandler := NewAuthHandler(d.Users, d.Codes, d.Blacklist, d.Auth, loginRecorder, d.Logger)
	assignments := NewLeadAssignmentHandler(d.Assignments)
	rules := NewAssignmentRuleHandler(d.Rules)

	v1 := e.Group(APIPrefix)

	public := v1.Group("/auth")
	if d.AuthRateLimit != nil {
		public.Use(d.AuthRateLimit)
	}
	public.POST("/login", authHandler.Login)
	public.POST("/send-2fa", authHandler.SendTwoFactor)
	public.POST("/verify-2fa", authHandler.VerifyTwoFactor)

	jwt := apimw.JWTMiddlewareWithBlacklist(d.Auth.JWTSecret, d.Blacklist, d.Users)
	gate := apimw.NewGate(APIPrefix, recorder, d.Logger)
	byPath := gate.ByPath()

	v1.POST("/auth/logout", authHandler.Logout, jwt)
	v1.GET("/permissions/me", Permissions, jwt)

	a := v1.Group("/assignments", jwt)
	a.POST("/auto-assign", assignments.AutoAssign, byPath)
	a.POST("/manual-assign", assignments.ManualAssign, byPath)
	a.POST("/transfer", assignments.Transfer, byPath)
	a.GET("/history", assignments.History, byPath)
	a.GET("/mine", assignments.MyAssignments, gate.Require(rbac.ResourceAssignments, rbac.ActionRead))
	a.PATCH("/:id/complete", assignments.Complete, byPath)
	a.PATCH("/:id/reject", assignments.Reject, byPath)

	v1.GET("/leads/:id/current-assignment", assignments.CurrentAssignment, jwt, byPath)

	r := v1.Group("/assignment-rules", jwt, byPath)
	r.GET("", rules.ListRules)
	r.POST("", rules.CreateRule)
	r.GET("/:id", rules.GetRule)
	r.PUT("/:id", rules.UpdateRule)
	r.PATCH("/:id/active", rules.SetRuleActive)
	r.DELETE("/:id", rules.DeleteRule)
}
