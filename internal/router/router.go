package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tabletap/api/internal/config"
	"github.com/tabletap/api/internal/database"
	"github.com/tabletap/api/internal/enum"
	"github.com/tabletap/api/internal/handler"
	"github.com/tabletap/api/internal/menu"
	mw "github.com/tabletap/api/internal/middleware"
	"github.com/tabletap/api/internal/payment"
	"github.com/tabletap/api/internal/service"
	"github.com/tabletap/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Customer endpoints are public (the table QR is the credential); staff
// dashboards sit behind JWT auth with role checks per route group.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub, menus *menu.Fetcher) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.PublicBaseURL, "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket routes. The staff socket authenticates via a token query
	// param; the table socket is public like the rest of the guest surface.
	r.Get("/ws/tenants/{tid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeStaff(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/tenants/{tid}/tables/{tn}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeTable(hub, w, r)
	})

	// Shared order service: transactional placement plus realtime fan-out.
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, queries, newOrderStore, payment.NewQuickChart(), hub)
	orderHandler := handler.NewOrderHandler(orderService, queries)

	menuHandler := handler.NewMenuHandler(queries, menus)
	settingsHandler := handler.NewSettingsHandler(queries, menus)
	tableHandler := handler.NewTableHandler(queries, cfg.PublicBaseURL)
	tenantHandler := handler.NewTenantHandler(pool, queries, func(db database.DBTX) handler.TenantStore {
		return database.New(db)
	})
	userHandler := handler.NewUserHandler(pool, queries, func(db database.DBTX) handler.UserStore {
		return database.New(db)
	})

	r.Route("/tenants", func(r chi.Router) {
		// Universal admin: tenant onboarding and listing
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireUniversalAdmin)
			tenantHandler.RegisterRoutes(r)
		})

		r.Route("/{tid}", func(r chi.Router) {
			// Universal admin: suspend or reinstate this tenant
			r.With(mw.Authenticate(cfg.JWTSecret), mw.RequireUniversalAdmin).
				Patch("/", tenantHandler.SetActive)

			// Guest routes, reached from a table QR scan. No login.
			menuHandler.RegisterRoutes(r)
			settingsHandler.RegisterPublicRoutes(r)
			r.Route("/tables/{tn}/orders", orderHandler.RegisterPublicRoutes)

			// Staff routes
			r.Group(func(r chi.Router) {
				r.Use(mw.Authenticate(cfg.JWTSecret))

				// Dashboards: every staff role
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireTenantRole(enum.StaffRoles...))
					r.Route("/orders", orderHandler.RegisterStaffRoutes)
				})

				// Management: tenant admin and manager only
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireTenantRole(enum.AdminRoles...))
					r.Route("/orders/export", orderHandler.RegisterExportRoutes)
					settingsHandler.RegisterStaffRoutes(r)
					r.Route("/tables", tableHandler.RegisterRoutes)
					r.Route("/users", userHandler.RegisterRoutes)
				})
			})
		})
	})

	return r
}
