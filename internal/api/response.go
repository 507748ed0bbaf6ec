package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondPage[T any](c *gin.Context, page *store.Page[T]) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    page.Data,
		"meta":    page.Meta,
	})
}

// respondError renders err by its kind. Unclassified errors are logged and
// reported with a generic message.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	body := gin.H{
		"success": false,
		"error":   kind.String(),
	}

	if kind == apperr.KindInternal {
		util.LoggerFromContext(c.Request.Context()).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		body["message"] = "Internal server error"
	} else {
		appErr, _ := apperr.As(err)
		body["message"] = appErr.Message
		if appErr.Data != nil {
			body["data"] = appErr.Data
		}
	}

	c.AbortWithStatusJSON(kind.Status(), body)
}

// bindJSON decodes the request body into dest and reports a 400 on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		msg := "invalid request body"
		if !errors.Is(err, io.EOF) {
			msg += ": " + err.Error()
		}
		respondError(c, apperr.InvalidRequest("%s", msg))
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, apperr.InvalidRequest("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

// firstQuery returns the first non-empty query value among keys.
func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(c.Query(k)); v != "" {
			return v
		}
	}
	return ""
}

func parseTime(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// listParams reads the shared pagination, search, filter and sort query
// parameters.
func (h *Handler) listParams(c *gin.Context) (store.ListParams, bool) {
	var p store.ListParams
	var err error

	intParam := func(name string, dest *int, keys ...string) bool {
		v := firstQuery(c, keys...)
		if v == "" {
			return true
		}
		if *dest, err = strconv.Atoi(v); err != nil {
			respondError(c, apperr.InvalidRequest("%s must be an integer", name))
			return false
		}
		return true
	}
	decimalParam := func(name string, dest **decimal.Decimal, keys ...string) bool {
		v := firstQuery(c, keys...)
		if v == "" {
			return true
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			respondError(c, apperr.InvalidRequest("%s must be a number", name))
			return false
		}
		*dest = &d
		return true
	}

	if !intParam("page", &p.Page, "page") ||
		!intParam("limit", &p.Limit, "limit", "pageSize") ||
		!decimalParam("price_min", &p.PriceMin, "price_min", "priceMin") ||
		!decimalParam("price_max", &p.PriceMax, "price_max", "priceMax") {
		return p, false
	}

	p.Search = firstQuery(c, "search", "q")
	p.Sort = firstQuery(c, "sort", "sortBy")
	p.Dir = firstQuery(c, "dir", "order")
	p.Status = firstQuery(c, "status")

	if v := firstQuery(c, "category", "categoryId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(c, apperr.InvalidRequest("category must be an integer"))
			return p, false
		}
		p.CategoryID = &id
	}
	if v := firstQuery(c, "published"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(c, apperr.InvalidRequest("published must be true or false"))
			return p, false
		}
		p.Published = &b
	}
	if p.From, err = parseTime(firstQuery(c, "from", "startDate"), false); err != nil {
		respondError(c, apperr.InvalidRequest("from must be a date"))
		return p, false
	}
	if p.To, err = parseTime(firstQuery(c, "to", "endDate"), true); err != nil {
		respondError(c, apperr.InvalidRequest("to must be a date"))
		return p, false
	}

	p.Normalize(h.cfg.Business.DefaultPageSize, h.cfg.Business.MaxPageSize)
	return p, true
}
