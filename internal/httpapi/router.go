// Package httpapi exposes the order workflow and the catalog over JSON/HTTP.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/petalstore/internal/auth"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Orders   OrderService
	Catalog  CatalogStore
	Profiles ProfileStore
	Verifier *auth.Verifier
	Roles    auth.RoleLookup
	Limiter  *RateLimiter
	Logger   logrus.FieldLogger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), Logger(d.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	catalog := &catalogHandlers{store: d.Catalog, logger: d.Logger}
	profiles := &profileHandlers{store: d.Profiles, logger: d.Logger}
	requireAuth := auth.RequireAuth(d.Verifier)

	api := r.Group("/api/v1")
	{
		api.GET("/products", catalog.listProducts(true))
		api.GET("/products/:id", catalog.getProduct)
		api.GET("/categories", catalog.listCategories)
		api.GET("/occasions", catalog.listOccasions)
		api.GET("/flowers", catalog.listFlowers)

		api.POST("/orders/track", d.Limiter.Limit(), trackOrderHandler(d.Orders))

		api.GET("/profile", requireAuth, profiles.get)
		api.PUT("/profile", requireAuth, profiles.save)

		customer := api.Group("/orders", requireAuth)
		customer.POST("", createOrderHandler(d.Orders))
		customer.GET("", listMyOrdersHandler(d.Orders))
		customer.GET("/:orderNumber", getMyOrderHandler(d.Orders))
	}

	admin := api.Group("/admin", requireAuth, auth.RequireAdmin(d.Roles, d.Logger))
	{
		admin.GET("/orders", adminListOrdersHandler(d.Orders))
		admin.GET("/orders/:id", adminGetOrderHandler(d.Orders))
		admin.PATCH("/orders/:id/status", adminUpdateStatusHandler(d.Orders))
		admin.POST("/orders/:id/cancel", adminCancelOrderHandler(d.Orders))
		admin.PATCH("/orders/:id/payment", adminUpdatePaymentHandler(d.Orders))

		admin.GET("/products", catalog.listProducts(false))
		admin.POST("/products", catalog.createProduct)
		admin.PATCH("/products/:id", catalog.updateProduct)
		admin.PATCH("/products/:id/active", catalog.setProductActive)
		admin.POST("/categories", catalog.createCategory)
		admin.POST("/occasions", catalog.createOccasion)
		admin.POST("/flowers", catalog.createFlower)
	}

	return r
}
