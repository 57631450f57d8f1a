package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/petalstore/internal/orders"
)

func statusFor(kind orders.ErrorKind) int {
	switch kind {
	case orders.KindValidation, orders.KindEmptyCart, orders.KindUPIRequired, orders.KindInvalidStatus:
		return http.StatusBadRequest
	case orders.KindUnauthorized:
		return http.StatusUnauthorized
	case orders.KindForbidden:
		return http.StatusForbidden
	case orders.KindNotFound:
		return http.StatusNotFound
	case orders.KindProductUnavailable, orders.KindInsufficientStock,
		orders.KindAlreadyCancelled, orders.KindCannotCancelDelivered, orders.KindInvalidTransition:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes the failure envelope. Only orders.Error messages reach
// the client; anything else becomes a generic 500.
func respondError(c *gin.Context, err error) {
	var e *orders.Error
	if !errors.As(err, &e) {
		respondMessage(c, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}

	body := gin.H{"success": false, "error": e.Message}
	if e.Field != "" {
		body["field"] = e.Field
	}
	c.JSON(statusFor(e.Kind), body)
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}
