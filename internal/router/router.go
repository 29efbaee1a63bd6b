// Package router defines how HTTP routes are registered for the API.
// Each Register* function wires one surface with its middleware: rate
// limit buckets on the sensitive endpoints, JWT auth on everything that
// acts on behalf of a user, and the response cache on the public
// catalog.
package router

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/prize-competition/internal/handler"
	"github.com/iliyamo/prize-competition/internal/middleware"
	"github.com/iliyamo/prize-competition/internal/ratelimit"
	"github.com/iliyamo/prize-competition/internal/store"
)

// RegisterRoutes registers routes that need no authentication and no
// throttling.  Currently that is only the health check used by load
// balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the account endpoints.  Register, login and
// password reset each get their own bucket on top of the anonymous
// global limit, since they are the classic enumeration/brute-force
// targets.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter *ratelimit.Limiter, jwtSecret string) {
	g := e.Group("/v1/auth", middleware.RateLimit(limiter, ratelimit.BucketGlobalAnon))
	g.POST("/register", a.Register, middleware.RateLimit(limiter, ratelimit.BucketSignup))
	g.POST("/login", a.Login, middleware.RateLimit(limiter, ratelimit.BucketLogin))
	g.POST("/password-reset", a.RequestPasswordReset, middleware.RateLimit(limiter, ratelimit.BucketPasswordReset))

	me := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RateLimit(limiter, ratelimit.BucketGlobalAuth))
	me.GET("/me", a.Me)
}

// RegisterPublic wires the unauthenticated catalog endpoints behind the
// anonymous global limit and a short response cache.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, limiter *ratelimit.Limiter, st store.Store) {
	g := e.Group("/v1/competitions",
		middleware.RateLimit(limiter, ratelimit.BucketGlobalAnon),
		middleware.CacheGET(st, 30*time.Second),
	)
	g.GET("", p.ListCompetitions)
	g.GET("/:id", p.GetCompetition)
}

// RegisterCompetition wires the authenticated purchase flow: reserve,
// inspect, release, answer the skill question, check out.  Reserve and
// checkout carry their own buckets on top of the authenticated global
// limit.
func RegisterCompetition(e *echo.Echo, r *handler.ReservationHandler, q *handler.QuestionHandler, co *handler.CheckoutHandler, limiter *ratelimit.Limiter, jwtSecret string) {
	g := e.Group("/v1/competitions",
		middleware.JWTAuth(jwtSecret),
		middleware.RateLimit(limiter, ratelimit.BucketGlobalAuth),
	)
	g.POST("/:id/reserve", r.Reserve, middleware.RateLimit(limiter, ratelimit.BucketTicketReserve))
	g.POST("/:id/release", r.Release)
	g.GET("/:id/reservation", r.GetReservation)
	g.POST("/:id/answer", q.SubmitAnswer)
	g.GET("/:id/answer/status", q.AnswerStatus)
	g.POST("/:id/checkout", co.Checkout, middleware.RateLimit(limiter, ratelimit.BucketCheckout))
}

// RegisterContact wires the contact form.
func RegisterContact(e *echo.Echo, c *handler.ContactHandler, limiter *ratelimit.Limiter) {
	e.POST("/v1/contact", c.Submit,
		middleware.RateLimit(limiter, ratelimit.BucketGlobalAnon),
		middleware.RateLimit(limiter, ratelimit.BucketContact),
	)
}
