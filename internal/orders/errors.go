package orders

import (
	"errors"
	"fmt"

	"github.com/safar/petalstore/internal/checkout"
	"github.com/safar/petalstore/internal/database"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindEmptyCart
	KindUPIRequired
	KindProductUnavailable
	KindInsufficientStock
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindAlreadyCancelled
	KindCannotCancelDelivered
	KindInvalidTransition
	KindInvalidStatus
)

var kindNames = map[ErrorKind]string{
	KindInternal:              "internal",
	KindValidation:            "validation",
	KindEmptyCart:             "empty_cart",
	KindUPIRequired:           "upi_required",
	KindProductUnavailable:    "product_unavailable",
	KindInsufficientStock:     "insufficient_stock",
	KindUnauthorized:          "unauthorized",
	KindForbidden:             "forbidden",
	KindNotFound:              "not_found",
	KindAlreadyCancelled:      "already_cancelled",
	KindCannotCancelDelivered: "cannot_cancel_delivered",
	KindInvalidTransition:     "invalid_transition",
	KindInvalidStatus:         "invalid_status",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is what every Service method returns on failure. Callers branch on
// Kind; Message is safe to show to the end user.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports KindInternal for errors that did not come from this package.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

const (
	msgEmptyCart          = "Your cart is empty"
	msgUPIRequired        = "UPI Transaction ID is required"
	msgUnavailable        = "One or more items are no longer available"
	msgInsufficientStock  = "Insufficient stock"
	msgCreateFailed       = "Failed to create order. Please try again."
	msgTrackNotFound      = "Order not found or details incorrect"
	msgNotFound           = "Order not found"
	msgAlreadyCancelled   = "Order is already cancelled"
	msgCannotCancel       = "Delivered orders cannot be cancelled"
	msgInvalidTransition  = "Invalid status transition"
	msgInvalidStatus      = "Invalid order status"
	msgInvalidPayment     = "Invalid payment status change"
	msgUnauthorized       = "unauthorized"
	msgForbidden          = "forbidden"
	msgStatusFailed       = "Failed to update order status. Please try again."
	msgCancelFailed       = "Failed to cancel order. Please try again."
	msgPaymentFailed      = "Failed to update payment status. Please try again."
	msgLoadFailed         = "Failed to load orders. Please try again."
	msgTrackFailed        = "Unable to track order right now. Please try again."
	msgTrackInputRequired = "Please enter your order ID and the phone number used at checkout"
	msgInvalidCursor      = "Invalid page cursor"
)

var (
	errUnauthorized = &Error{Kind: KindUnauthorized, Message: msgUnauthorized}
	errForbidden    = &Error{Kind: KindForbidden, Message: msgForbidden}
)

func fromValidation(err error) *Error {
	var fe *checkout.FieldError
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return &Error{Kind: KindEmptyCart, Message: msgEmptyCart}
	case errors.Is(err, checkout.ErrUPITransactionRequired):
		return &Error{Kind: KindUPIRequired, Field: "upiTransactionId", Message: msgUPIRequired}
	case errors.As(err, &fe):
		return &Error{Kind: KindValidation, Field: fe.Field, Message: fe.Message}
	}
	return &Error{Kind: KindValidation, Message: "Invalid order details", Err: err}
}

// fromStore maps store sentinels onto the tagged taxonomy. internalMsg is
// used for anything unexpected; the second return reports whether the error
// was unexpected and should be logged.
func fromStore(err error, internalMsg string) (*Error, bool) {
	var stockErr *database.StockError

	switch {
	case errors.As(err, &stockErr):
		msg := msgInsufficientStock
		if stockErr.ProductName != "" {
			msg = "Insufficient stock for " + stockErr.ProductName
		}
		return &Error{Kind: KindInsufficientStock, Message: msg, Err: err}, false
	case errors.Is(err, database.ErrInsufficientStock):
		return &Error{Kind: KindInsufficientStock, Message: msgInsufficientStock, Err: err}, false
	case errors.Is(err, database.ErrProductUnavailable), errors.Is(err, database.ErrProductNotFound):
		return &Error{Kind: KindProductUnavailable, Message: msgUnavailable, Err: err}, false
	case errors.Is(err, database.ErrEmptyOrder):
		return &Error{Kind: KindEmptyCart, Message: msgEmptyCart, Err: err}, false
	case errors.Is(err, database.ErrOrderNotFound):
		return &Error{Kind: KindNotFound, Message: msgNotFound, Err: err}, false
	case errors.Is(err, database.ErrOrderAlreadyCancelled):
		return &Error{Kind: KindAlreadyCancelled, Message: msgAlreadyCancelled, Err: err}, false
	case errors.Is(err, database.ErrOrderDelivered):
		return &Error{Kind: KindCannotCancelDelivered, Message: msgCannotCancel, Err: err}, false
	case errors.Is(err, database.ErrInvalidTransition):
		return &Error{Kind: KindInvalidTransition, Message: msgInvalidTransition, Err: err}, false
	case errors.Is(err, database.ErrInvalidPaymentStatus):
		return &Error{Kind: KindInvalidTransition, Message: msgInvalidPayment, Err: err}, false
	case errors.Is(err, database.ErrInvalidCursor):
		return &Error{Kind: KindValidation, Field: "cursor", Message: msgInvalidCursor, Err: err}, false
	case errors.Is(err, database.ErrInvalidStatus):
		return &Error{Kind: KindInvalidStatus, Message: msgInvalidStatus, Err: err}, false
	}

	return &Error{Kind: KindInternal, Message: internalMsg, Err: err}, true
}
