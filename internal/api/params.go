package api

import (
	"strconv" // String conversion

	"marketplace/internal/domain"     // Failure kinds
	"marketplace/internal/middleware" // Error responses
	"marketplace/internal/utils"      // Pagination

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Price bounds
)

// idParam reads a positive numeric path parameter or answers 400
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		middleware.RespondError(c, domain.NewError(domain.KindInvalidInput, "invalid "+name))
		return 0, false
	}
	return uint(id), true
}

// pageQuery reads page and page_size
func pageQuery(c *gin.Context) utils.Page {
	return utils.ParsePage(c.DefaultQuery("page", "1"), c.DefaultQuery("page_size", strconv.Itoa(utils.DefaultPageSize)))
}

// paged builds the list envelope shared by all list endpoints
func paged(key string, items any, page utils.Page, total int64) gin.H {
	return gin.H{
		key:           items,                  // Items of this page
		"page":        page.Number,            // Current page
		"page_size":   page.Size,              // Page size
		"total":       total,                  // Total number of items
		"total_pages": page.TotalPages(total), // Total pages
	}
}

func optString(c *gin.Context, key string) *string {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func optBool(c *gin.Context, key string) (*bool, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidInput, "invalid "+key)
	}
	return &b, nil
}

func optDecimal(c *gin.Context, key string) (*decimal.Decimal, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidInput, "invalid "+key)
	}
	return &d, nil
}

func optUint(c *gin.Context, key string) (*uint, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return nil, domain.NewError(domain.KindInvalidInput, "invalid "+key)
	}
	id := uint(n)
	return &id, nil
}
