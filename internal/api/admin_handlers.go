package api

import (
	"context"
	"net/http"

	"storefront/internal/store"

	"github.com/gin-gonic/gin"
)

// The admin resources share one request shape: list with query params,
// fetch/update/delete by numeric id, create from a JSON body.

func listHandler[T any](h *Handler, list func(context.Context, store.ListParams) (*store.Page[T], error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := h.listParams(c)
		if !ok {
			return
		}
		page, err := list(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		respondPage(c, page)
	}
}

func getHandler[T any](get func(context.Context, int64) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		v, err := get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, v)
	}
}

func createHandler[In, T any](create func(context.Context, *In) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in In
		if !bindJSON(c, &in) {
			return
		}
		v, err := create(c.Request.Context(), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusCreated, v)
	}
}

func updateHandler[In, T any](update func(context.Context, int64, *In) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var in In
		if !bindJSON(c, &in) {
			return
		}
		v, err := update(c.Request.Context(), id, &in)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, v)
	}
}

func deleteHandler(del func(context.Context, int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := del(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// UpdateStatusRequest is the body of the order status endpoint
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, order)
}

func (h *Handler) toggleProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	product, err := h.catalog.ToggleProductPublished(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, product)
}
