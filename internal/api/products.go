package api

import (
	"bytes"    // Sniffed image head
	"errors"   // Read error checks
	"io"       // Upload streams
	"net/http" // HTTP status codes

	"marketplace/internal/domain"     // Failure kinds
	"marketplace/internal/middleware" // Claims and error responses
	"marketplace/internal/service"    // Business operations

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Prices
)

// ProductRequest is a new listing
type ProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Location    string          `json:"location"`
	Delivery    bool            `json:"delivery"`
	Available   *bool           `json:"available"` // Defaults to true
}

// ProductPatchRequest carries the listing fields to change
type ProductPatchRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Location    *string          `json:"location"`
	Delivery    *bool            `json:"delivery"`
	Available   *bool            `json:"available"`
}

// filterQuery reads the search filter from the query string
func filterQuery(c *gin.Context) (service.ProductFilter, error) {
	f := service.ProductFilter{
		Name:     optString(c, "name"),
		Location: optString(c, "location"),
		Category: optString(c, "category"),
	}
	var err error
	if f.PriceMin, err = optDecimal(c, "price_min"); err != nil {
		return f, err
	}
	if f.PriceMax, err = optDecimal(c, "price_max"); err != nil {
		return f, err
	}
	if f.Delivery, err = optBool(c, "delivery"); err != nil {
		return f, err
	}
	if f.Available, err = optBool(c, "available"); err != nil {
		return f, err
	}
	if f.SellerID, err = optUint(c, "seller_id"); err != nil {
		return f, err
	}
	return f, nil
}

// SearchProductsHandler lists products visible to the caller
func SearchProductsHandler(products *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := filterQuery(c)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		page := pageQuery(c)
		viewer := service.ViewerFromClaims(middleware.ClaimsFromContext(c))
		list, total, err := products.Search(c.Request.Context(), viewer, filter, page)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged("products", list, page, total))
	}
}

// GetProductHandler returns one product
func GetProductHandler(products *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		viewer := service.ViewerFromClaims(middleware.ClaimsFromContext(c))
		product, err := products.Get(c.Request.Context(), viewer, id)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// CreateProductHandler lists a new product for the caller
func CreateProductHandler(products *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := products.Create(c.Request.Context(), middleware.ClaimsFromContext(c), service.ProductInput{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			Price:       req.Price,
			Location:    req.Location,
			Delivery:    req.Delivery,
			Available:   req.Available,
		})
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// UpdateProductHandler edits a listing
func UpdateProductHandler(products *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req ProductPatchRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := products.Update(c.Request.Context(), middleware.ClaimsFromContext(c), id, service.ProductPatch{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			Price:       req.Price,
			Location:    req.Location,
			Delivery:    req.Delivery,
			Available:   req.Available,
		})
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// DeleteProductHandler removes a listing
func DeleteProductHandler(products *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := products.Delete(c.Request.Context(), middleware.ClaimsFromContext(c), id); err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
	}
}

// UploadImageHandler stores the multipart "image" field for a product.
// The content type is sniffed from the bytes, not taken from the client.
func UploadImageHandler(products *service.ProductService, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		fh, err := c.FormFile("image")
		if err != nil {
			middleware.RespondError(c, domain.Wrap(domain.KindInvalidInput, "an image file is required", err))
			return
		}
		f, err := fh.Open()
		if err != nil {
			middleware.RespondError(c, domain.Wrap(domain.KindInvalidInput, "unreadable upload", err))
			return
		}
		defer f.Close()

		head := make([]byte, 512)
		n, err := io.ReadFull(f, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			middleware.RespondError(c, domain.Wrap(domain.KindInvalidInput, "unreadable upload", err))
			return
		}
		head = head[:n]
		contentType := http.DetectContentType(head)
		img, err := products.AddImage(c.Request.Context(), middleware.ClaimsFromContext(c), id,
			fh.Filename, contentType, io.MultiReader(bytes.NewReader(head), f))
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, img)
	}
}
