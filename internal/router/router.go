package router // route registration for the circulation API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/library-circulation/internal/handler"
	"github.com/iliyamo/library-circulation/internal/middleware"
	"github.com/iliyamo/library-circulation/internal/model"
)

// RegisterRoutes registers the unauthenticated service endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints and the protected /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	me := e.Group("/v1")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.GET("/me", a.Me)
}

// RegisterCatalog registers the book catalog. Browsing and availability
// are public behind the rate limiter; curation requires the LIBRARIAN
// role.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, limiter echo.MiddlewareFunc, jwtSecret string) {
	pub := e.Group("/v1")
	pub.Use(limiter)
	pub.GET("/books", h.ListBooks)
	pub.GET("/books/:id", h.GetBook)
	pub.GET("/books/:id/availability", h.Availability)

	staff := e.Group("/v1")
	staff.Use(middleware.JWTAuth(jwtSecret))
	staff.Use(middleware.RequireRole(model.RoleLibrarian))
	staff.POST("/books", h.CreateBook)
	staff.POST("/books/:id/copies", h.CreateCopy)
	staff.GET("/books/:id/copies", h.ListCopies)
	staff.POST("/copies/:id/withdraw", h.WithdrawCopy)
	staff.POST("/copies/:id/condition", h.MarkCondition)
}

// RegisterCirculation registers reservations, loans, reports and the
// staff back office. Every route requires authentication; the staff
// group additionally requires the LIBRARIAN role.
func RegisterCirculation(
	e *echo.Echo,
	res *handler.ReservationHandler,
	loans *handler.LoanHandler,
	reports *handler.ReportHandler,
	admin *handler.AdminHandler,
	jwtSecret string,
) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	// Patron-facing. Ownership checks live in the handlers: a patron
	// can only touch their own reservations, loans and reports.
	auth.POST("/reservations", res.Create)
	auth.GET("/reservations/:id", res.Get)
	auth.POST("/reservations/:id/cancel", res.Cancel)
	auth.GET("/my/reservations", res.ListMine)
	auth.GET("/my/loans", loans.ListMine)
	auth.GET("/my/reports", reports.ListMine)
	auth.GET("/loans/:id", loans.Get)
	auth.POST("/reports", reports.File)
	auth.GET("/reports/:id", reports.Get)

	staff := e.Group("/v1")
	staff.Use(middleware.JWTAuth(jwtSecret))
	staff.Use(middleware.RequireRole(model.RoleLibrarian))
	staff.GET("/reservations", res.ListPending)
	staff.POST("/reservations/:id/approve", res.Approve)
	staff.POST("/reservations/:id/decline", res.Decline)
	staff.POST("/loans", loans.Open)
	staff.POST("/loans/:id/return", loans.Return)
	staff.GET("/loans", loans.ListOpen)
	staff.GET("/patrons/:id/loans", loans.ListByPatron)
	staff.GET("/reports", reports.ListPending)
	staff.POST("/reports/:id/resolve", reports.Resolve)

	adm := e.Group("/v1/admin")
	adm.Use(middleware.JWTAuth(jwtSecret))
	adm.Use(middleware.RequireRole(model.RoleLibrarian))
	adm.GET("/fees", admin.FeeSettings)
	adm.POST("/patrons", admin.CreatePatron)
	adm.GET("/patrons", admin.ListPatrons)
	adm.GET("/audit/:type/:id", admin.AuditTrail)
	adm.POST("/sweeps/overdue", admin.SweepOverdue)
	adm.POST("/sweeps/reservations", admin.SweepExpiredReservations)
}
