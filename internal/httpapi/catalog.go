package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/models"
	"github.com/safar/petalstore/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CatalogStore interface {
	CreateProductWithImages(ctx context.Context, np store.NewProduct) (*models.Product, []string, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, filter store.ProductFilter, page, pageSize int) (*store.OffsetPage, error)
	UpdateProduct(ctx context.Context, id int64, params store.UpdateProductParams) (*models.Product, error)
	SetProductActive(ctx context.Context, id int64, active bool) error
	CreateCategory(ctx context.Context, name, description string) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateOccasion(ctx context.Context, name, description string) (*models.Occasion, error)
	ListOccasions(ctx context.Context) ([]models.Occasion, error)
	CreateFlower(ctx context.Context, name, color string, pricePerStem decimal.Decimal) (*models.Flower, error)
	ListFlowers(ctx context.Context, activeOnly bool) ([]models.Flower, error)
}

type catalogHandlers struct {
	store  CatalogStore
	logger logrus.FieldLogger
}

func (h *catalogHandlers) fail(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, database.ErrProductNotFound):
		respondMessage(c, http.StatusNotFound, "Product not found")
	case errors.Is(err, database.ErrDuplicate):
		respondMessage(c, http.StatusConflict, "An entry with this name already exists")
	default:
		h.logger.WithError(err).WithField("op", op).Error("catalog operation failed")
		respondMessage(c, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondMessage(c, http.StatusBadRequest, "Invalid product id")
		return 0, false
	}
	return id, true
}

func (h *catalogHandlers) listProducts(activeOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "24"))
		page, pageSize = store.NormalizePage(page, pageSize, 100)

		result, err := h.store.ListProducts(c.Request.Context(), store.ProductFilter{
			ActiveOnly:   activeOnly,
			OccasionSlug: c.Query("occasion"),
			CategorySlug: c.Query("category"),
		}, page, pageSize)
		if err != nil {
			h.fail(c, err, "list_products")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "page": result})
	}
}

func (h *catalogHandlers) getProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	product, err := h.store.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "get_product")
		return
	}
	if !product.IsActive {
		respondMessage(c, http.StatusNotFound, "Product not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

type imageInput struct {
	URL       string `json:"url" binding:"required,url"`
	IsPrimary bool   `json:"isPrimary"`
}

type createProductRequest struct {
	Name        string          `json:"name" binding:"required,max=200"`
	Description string          `json:"description" binding:"max=5000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"gte=0"`
	CategoryID  *int64          `json:"categoryId"`
	IsActive    *bool           `json:"isActive"`
	Images      []imageInput    `json:"images" binding:"dive"`
	OccasionIDs []int64         `json:"occasionIds"`
}

func (h *catalogHandlers) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid product details")
		return
	}
	if !req.Price.IsPositive() {
		respondMessage(c, http.StatusBadRequest, "Price must be greater than zero")
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	np := store.NewProduct{
		CreateProductParams: store.CreateProductParams{
			CategoryID:  req.CategoryID,
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
			IsActive:    active,
		},
		OccasionIDs: req.OccasionIDs,
	}
	for _, img := range req.Images {
		np.Images = append(np.Images, store.NewImage{URL: img.URL, IsPrimary: img.IsPrimary})
	}

	product, warnings, err := h.store.CreateProductWithImages(c.Request.Context(), np)
	if err != nil {
		h.fail(c, err, "create_product")
		return
	}

	body := gin.H{"success": true, "product": product}
	if len(warnings) > 0 {
		body["warnings"] = warnings
	}
	c.JSON(http.StatusCreated, body)
}

type updateProductRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	IsActive    *bool            `json:"isActive"`
	CategoryID  *int64           `json:"categoryId"`
}

func (h *catalogHandlers) updateProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid product details")
		return
	}
	if req.Price != nil && !req.Price.IsPositive() {
		respondMessage(c, http.StatusBadRequest, "Price must be greater than zero")
		return
	}

	product, err := h.store.UpdateProduct(c.Request.Context(), id, store.UpdateProductParams{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		IsActive:    req.IsActive,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		h.fail(c, err, "update_product")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

type activeRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *catalogHandlers) setProductActive(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}

	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "active is required")
		return
	}

	if err := h.store.SetProductActive(c.Request.Context(), id, *req.Active); err != nil {
		h.fail(c, err, "set_product_active")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type taxonomyRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

func (h *catalogHandlers) listCategories(c *gin.Context) {
	categories, err := h.store.ListCategories(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list_categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": categories})
}

func (h *catalogHandlers) createCategory(c *gin.Context) {
	var req taxonomyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "name is required")
		return
	}

	category, err := h.store.CreateCategory(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(c, err, "create_category")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "category": category})
}

func (h *catalogHandlers) listOccasions(c *gin.Context) {
	occasions, err := h.store.ListOccasions(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list_occasions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "occasions": occasions})
}

func (h *catalogHandlers) createOccasion(c *gin.Context) {
	var req taxonomyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "name is required")
		return
	}

	occasion, err := h.store.CreateOccasion(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.fail(c, err, "create_occasion")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "occasion": occasion})
}

func (h *catalogHandlers) listFlowers(c *gin.Context) {
	flowers, err := h.store.ListFlowers(c.Request.Context(), true)
	if err != nil {
		h.fail(c, err, "list_flowers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "flowers": flowers})
}

type flowerRequest struct {
	Name         string          `json:"name" binding:"required,max=100"`
	Color        string          `json:"color" binding:"max=50"`
	PricePerStem decimal.Decimal `json:"pricePerStem"`
}

func (h *catalogHandlers) createFlower(c *gin.Context) {
	var req flowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Invalid flower details")
		return
	}
	if req.PricePerStem.IsNegative() {
		respondMessage(c, http.StatusBadRequest, "Price must not be negative")
		return
	}

	flower, err := h.store.CreateFlower(c.Request.Context(), req.Name, req.Color, req.PricePerStem)
	if err != nil {
		h.fail(c, err, "create_flower")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "flower": flower})
}
