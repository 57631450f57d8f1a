package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/petalstore/internal/auth"
	"github.com/safar/petalstore/internal/checkout"
	"github.com/safar/petalstore/internal/orders"
	"github.com/safar/petalstore/internal/store"
)

type OrderService interface {
	CreateOrder(ctx context.Context, caller auth.Caller, sub checkout.Submission) (*orders.Confirmation, error)
	Track(ctx context.Context, req orders.TrackRequest) (*orders.Tracking, error)
	GetConfirmation(ctx context.Context, caller auth.Caller, orderNumber string) (*orders.Confirmation, error)
	ListMine(ctx context.Context, caller auth.Caller, cursor string, limit int) (*orders.OrderList, error)
	ListOrders(ctx context.Context, caller auth.Caller, status string, page, pageSize int) (*store.OffsetPage, error)
	GetOrder(ctx context.Context, caller auth.Caller, id int64) (*orders.AdminDetail, error)
	UpdateStatus(ctx context.Context, caller auth.Caller, id int64, status string) (*orders.AdminDetail, error)
	Cancel(ctx context.Context, caller auth.Caller, id int64) (*orders.AdminDetail, error)
	UpdatePaymentStatus(ctx context.Context, caller auth.Caller, id int64, status string) (*orders.AdminDetail, error)
}

func createOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sub checkout.Submission
		if err := c.ShouldBindJSON(&sub); err != nil {
			respondMessage(c, http.StatusBadRequest, "Invalid order details")
			return
		}

		conf, err := svc.CreateOrder(c.Request.Context(), auth.CallerFrom(c), sub)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"success": true, "orderNumber": conf.OrderNumber})
	}
}

func trackOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req orders.TrackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondMessage(c, http.StatusBadRequest, "Invalid tracking request")
			return
		}

		tracking, err := svc.Track(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": tracking})
	}
}

func getMyOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		conf, err := svc.GetConfirmation(c.Request.Context(), auth.CallerFrom(c), c.Param("orderNumber"))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": conf})
	}
}

func listMyOrdersHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))

		list, err := svc.ListMine(c.Request.Context(), auth.CallerFrom(c), c.Query("cursor"), limit)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "orders": list.Orders, "nextCursor": list.NextCursor, "hasMore": list.HasMore})
	}
}

func adminListOrdersHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

		result, err := svc.ListOrders(c.Request.Context(), auth.CallerFrom(c), c.Query("status"), page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "page": result})
	}
}

func orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondMessage(c, http.StatusBadRequest, "Invalid order id")
		return 0, false
	}
	return id, true
}

func adminGetOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}

		detail, err := svc.GetOrder(c.Request.Context(), auth.CallerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": detail})
	}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func adminUpdateStatusHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}

		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondMessage(c, http.StatusBadRequest, "status is required")
			return
		}

		detail, err := svc.UpdateStatus(c.Request.Context(), auth.CallerFrom(c), id, req.Status)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": detail})
	}
}

func adminCancelOrderHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}

		detail, err := svc.Cancel(c.Request.Context(), auth.CallerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": detail})
	}
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus" binding:"required"`
}

func adminUpdatePaymentHandler(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}

		var req paymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondMessage(c, http.StatusBadRequest, "paymentStatus is required")
			return
		}

		detail, err := svc.UpdatePaymentStatus(c.Request.Context(), auth.CallerFrom(c), id, req.PaymentStatus)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true, "order": detail})
	}
}
