// Package router registers the HTTP routes and their middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/yhwh80/freelance-marketplace/internal/handler"
	"github.com/yhwh80/freelance-marketplace/internal/middleware"
	"github.com/yhwh80/freelance-marketplace/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Auth     *handler.AuthHandler
	Jobs     *handler.JobHandler
	Account  *handler.AccountHandler
	Payments *handler.PaymentHandler
	Ready    echo.HandlerFunc
}

// Middleware carries the optional Redis-backed layers.  Both may be
// pass-through when Redis is disabled.
type Middleware struct {
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

func (m Middleware) withDefaults() Middleware {
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	if m.RateLimit == nil {
		m.RateLimit = pass
	}
	if m.Cache == nil {
		m.Cache = pass
	}
	return m
}

// RegisterRoutes registers the probes, which sit outside rate limiting.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready)
	}
}

// RegisterAuth registers account creation and token exchange.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, mw Middleware) {
	mw = mw.withDefaults()
	g := e.Group("/auth", mw.RateLimit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
}

// RegisterPublic registers the anonymous reads.  The listings are cached.
func RegisterPublic(e *echo.Echo, h Handlers, mw Middleware) {
	mw = mw.withDefaults()
	e.GET("/jobs", h.Jobs.List, mw.Cache)
	e.GET("/jobs/:id", h.Jobs.Get)
	e.GET("/credit-packages", h.Payments.Packages, mw.Cache)
	// Authenticated by the provider signature, not a JWT.
	e.POST("/payment-webhook", h.Payments.Webhook)
}

// RegisterProtected registers everything behind an access token.
func RegisterProtected(e *echo.Echo, h Handlers, mw Middleware, jwtSecret string) {
	mw = mw.withDefaults()
	g := e.Group("", middleware.JWTAuth(jwtSecret), mw.RateLimit)

	g.GET("/me", h.Account.Me)
	g.GET("/me/purchases", h.Account.MyPurchases)
	g.GET("/me/jobs", h.Account.MyJobs, middleware.RequireRole(model.RoleClient, model.RoleBoth))
	g.GET("/me/bids", h.Account.MyBids, middleware.RequireRole(model.RoleFreelancer, model.RoleBoth))

	g.POST("/jobs", h.Jobs.Post, middleware.RequireRole(model.RoleClient, model.RoleBoth))
	// Role is re-checked against the stored user so a stale token cannot bid.
	g.POST("/jobs/:id/bids", h.Jobs.SubmitBid)

	g.POST("/checkout-session", h.Payments.Checkout)
	g.POST("/verify-payment", h.Payments.Verify)
}

// New builds the echo instance with every route registered.
func New(h Handlers, mw Middleware, jwtSecret string, global ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(global...)

	RegisterRoutes(e, h.Ready)
	RegisterAuth(e, h.Auth, mw)
	RegisterPublic(e, h, mw)
	RegisterProtected(e, h, mw, jwtSecret)
	return e
}
