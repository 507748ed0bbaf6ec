package api

import (
	"context"
	"net/http"
	"time"

	"storefront/config"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TokenVerifier validates bearer and cookie tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Services groups the application services the HTTP layer calls.
type Services struct {
	Orders   *service.OrderService
	Coupons  *service.CouponService
	Catalog  *service.CatalogService
	Accounts *service.AccountService
}

// Handler contains HTTP handlers
type Handler struct {
	orders   *service.OrderService
	coupons  *service.CouponService
	catalog  *service.CatalogService
	accounts *service.AccountService
	tokens   TokenVerifier
	cfg      *config.Config
	checks   map[string]Pinger
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg *config.Config, svc Services, tokens TokenVerifier, checks map[string]Pinger) *Handler {
	return &Handler{
		orders:   svc.Orders,
		coupons:  svc.Coupons,
		catalog:  svc.Catalog,
		accounts: svc.Accounts,
		tokens:   tokens,
		cfg:      cfg,
		checks:   checks,
	}
}

var (
	staffRoles = []string{
		string(models.RoleSuperAdmin),
		string(models.RoleAdmin),
		string(models.RoleManager),
		string(models.RoleCashier),
	}
	catalogRoles = []string{
		string(models.RoleSuperAdmin),
		string(models.RoleAdmin),
		string(models.RoleManager),
	}
	ownerRoles = []string{
		string(models.RoleSuperAdmin),
		string(models.RoleAdmin),
	}
)

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestContext())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/staff/login", h.staffLogin)
		authGroup.POST("/logout", h.logout)
		authGroup.GET("/me", h.RequireAuth(), h.me)
	}

	storefront := router.Group("/api/store")
	{
		storefront.POST("/auth/register", h.registerCustomer)
		storefront.POST("/auth/login", h.customerLogin)

		storefront.GET("/products", h.storeProducts)
		storefront.GET("/products/:slug", h.storeProduct)
		storefront.GET("/categories", h.storeCategories)
		storefront.POST("/coupons/validate", h.validateCoupon)

		storefront.POST("/orders", h.OptionalAuth(), h.createOrder)
		storefront.GET("/orders/:ref", h.getOrder)
		storefront.GET("/me/orders", h.RequireAuth(), RequireRole(models.RoleCustomer), h.myOrders)
	}

	admin := router.Group("/api/admin", h.RequireAuth(), RequireRole(staffRoles...))
	{
		orders := admin.Group("/orders")
		orders.GET("", listHandler(h, h.orders.ListOrders))
		orders.GET("/:id", getHandler(h.orders.GetOrderByID))
		orders.PUT("/:id/status", h.updateOrderStatus)
		orders.PATCH("/:id/status", h.updateOrderStatus)

		products := admin.Group("/products", RequireRole(catalogRoles...))
		products.GET("", listHandler(h, h.catalog.ListProducts))
		products.POST("", createHandler(h.catalog.CreateProduct))
		products.GET("/:id", getHandler(h.catalog.GetProduct))
		products.PUT("/:id", updateHandler(h.catalog.UpdateProduct))
		products.PATCH("/:id", updateHandler(h.catalog.UpdateProduct))
		products.PATCH("/:id/toggle-publish", h.toggleProduct)
		products.DELETE("/:id", deleteHandler(h.catalog.DeleteProduct))

		categories := admin.Group("/categories", RequireRole(catalogRoles...))
		categories.GET("", listHandler(h, h.catalog.ListCategories))
		categories.POST("", createHandler(h.catalog.CreateCategory))
		categories.GET("/:id", getHandler(h.catalog.GetCategory))
		categories.PUT("/:id", updateHandler(h.catalog.UpdateCategory))
		categories.PATCH("/:id", updateHandler(h.catalog.UpdateCategory))
		categories.DELETE("/:id", deleteHandler(h.catalog.DeleteCategory))

		coupons := admin.Group("/coupons", RequireRole(catalogRoles...))
		coupons.GET("", listHandler(h, h.coupons.List))
		coupons.POST("", createHandler(h.coupons.Create))
		coupons.GET("/:id", getHandler(h.coupons.Get))
		coupons.PUT("/:id", updateHandler(h.coupons.Update))
		coupons.PATCH("/:id", updateHandler(h.coupons.Update))
		coupons.DELETE("/:id", deleteHandler(h.coupons.Delete))

		customers := admin.Group("/customers", RequireRole(catalogRoles...))
		customers.GET("", listHandler(h, h.accounts.ListCustomers))
		customers.POST("", createHandler(h.accounts.CreateCustomer))
		customers.GET("/:id", getHandler(h.accounts.GetCustomer))
		customers.PUT("/:id", updateHandler(h.accounts.UpdateCustomer))
		customers.PATCH("/:id", updateHandler(h.accounts.UpdateCustomer))
		customers.DELETE("/:id", deleteHandler(h.accounts.DeleteCustomer))

		staff := admin.Group("/staff", RequireRole(ownerRoles...))
		staff.GET("", listHandler(h, h.accounts.ListStaff))
		staff.POST("", createHandler(h.accounts.CreateStaff))
		staff.GET("/:id", getHandler(h.accounts.GetStaff))
		staff.PUT("/:id", updateHandler(h.accounts.UpdateStaff))
		staff.PATCH("/:id", updateHandler(h.accounts.UpdateStaff))
		staff.DELETE("/:id", deleteHandler(h.accounts.DeleteStaff))
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			util.LoggerFromContext(ctx).Warn("Readiness check failed",
				zap.String("dependency", name),
				zap.Error(err))
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
		"time":         time.Now().Unix(),
	})
}
