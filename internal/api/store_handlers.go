package api

import (
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) storeProducts(c *gin.Context) {
	p, ok := h.listParams(c)
	if !ok {
		return
	}

	page, err := h.catalog.StorefrontProducts(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

func (h *Handler) storeProduct(c *gin.Context) {
	product, err := h.catalog.StorefrontProduct(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}

func (h *Handler) storeCategories(c *gin.Context) {
	p, ok := h.listParams(c)
	if !ok {
		return
	}

	page, err := h.catalog.StorefrontCategories(c.Request.Context(), p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}

// validateCoupon handles POST /api/store/coupons/validate. An unusable coupon
// is still a 200 with valid=false and a reason.
func (h *Handler) validateCoupon(c *gin.Context) {
	var req service.ValidateCouponRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.coupons.Validate(c.Request.Context(), req.Code, req.Subtotal)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	if claims := claimsFrom(c); claims != nil && claims.Role == models.RoleCustomer {
		id := claims.ID
		req.CustomerID = &id
	}

	summary, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, summary)
}

// getOrder looks an order up by id or invoice number
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) myOrders(c *gin.Context) {
	p, ok := h.listParams(c)
	if !ok {
		return
	}

	page, err := h.orders.ListCustomerOrders(c.Request.Context(), claimsFrom(c).ID, p)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, page)
}
