// Package orders runs the order workflow on behalf of an explicit caller:
// checkout, tracking and the admin lifecycle.
package orders

import (
	"context"
	"strings"
	"time"

	"github.com/safar/petalstore/internal/auth"
	"github.com/safar/petalstore/internal/checkout"
	"github.com/safar/petalstore/internal/events"
	"github.com/safar/petalstore/internal/models"
	"github.com/safar/petalstore/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Repository interface {
	CreateOrder(ctx context.Context, req store.CreateOrderRequest, pricing models.PricingRules) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	TrackOrder(ctx context.Context, orderNumber, phone string) (*models.Order, error)
	ListOrdersCursor(ctx context.Context, userID, cursor string, limit int) (*store.CursorPage, error)
	ListOrders(ctx context.Context, status models.OrderStatus, page, pageSize int) (*store.OffsetPage, error)
	UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error)
	CancelOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (*models.Order, error)
}

type Config struct {
	Pricing  models.PricingRules
	Checkout checkout.Options
	// Timeout bounds each repository call. Zero leaves the caller's context alone.
	Timeout time.Duration
}

type Service struct {
	repo      Repository
	publisher events.Publisher
	logger    logrus.FieldLogger
	cfg       Config
}

func NewService(repo Repository, publisher events.Publisher, logger logrus.FieldLogger, cfg Config) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{repo: repo, publisher: publisher, logger: logger, cfg: cfg}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *Service) fail(err error, internalMsg, op string, fields logrus.Fields) *Error {
	mapped, unexpected := fromStore(err, internalMsg)
	if unexpected {
		s.logger.WithError(err).WithFields(fields).WithField("op", op).Error("order operation failed")
	}
	return mapped
}

func (s *Service) emit(ctx context.Context, typ events.Type, o *models.Order) {
	s.publisher.Publish(ctx, events.Event{
		Type:          typ,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
	})
}

// CreateOrder validates the submission, then reserves stock and writes the
// order atomically. Nothing touches the database until validation passes.
func (s *Service) CreateOrder(ctx context.Context, caller auth.Caller, sub checkout.Submission) (*Confirmation, error) {
	if !caller.IsAuthenticated() {
		return nil, errUnauthorized
	}

	req, err := checkout.Validate(sub, s.cfg.Checkout)
	if err != nil {
		return nil, fromValidation(err)
	}
	req.UserID = caller.UserID

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.CreateOrder(ctx, req, s.cfg.Pricing)
	if err != nil {
		return nil, s.fail(err, msgCreateFailed, "create", logrus.Fields{
			"user_id": caller.UserID,
			"items":   len(req.Items),
		})
	}

	s.logger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"user_id":      caller.UserID,
		"total":        order.Total.StringFixed(2),
	}).Info("order placed")
	s.emit(ctx, events.OrderPlaced, order)

	return NewConfirmation(order), nil
}

type TrackRequest struct {
	OrderID     string `json:"orderId"`
	PhoneNumber string `json:"phoneNumber"`
}

// Track looks an order up by number and shipping phone together. A wrong
// number and a wrong phone produce the same error.
func (s *Service) Track(ctx context.Context, req TrackRequest) (*Tracking, error) {
	orderNumber := strings.ToUpper(strings.TrimSpace(req.OrderID))
	phone := checkout.NormalizePhone(req.PhoneNumber)
	if orderNumber == "" || len(phone) < 10 {
		return nil, &Error{Kind: KindValidation, Message: msgTrackInputRequired}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.TrackOrder(ctx, orderNumber, phone)
	if err != nil {
		mapped := s.fail(err, msgTrackFailed, "track", logrus.Fields{"order_number": orderNumber})
		if mapped.Kind == KindNotFound {
			return nil, &Error{Kind: KindNotFound, Message: msgTrackNotFound}
		}
		return nil, mapped
	}

	return NewTracking(order), nil
}

// GetConfirmation returns the caller's own order. Someone else's order is
// reported as not found.
func (s *Service) GetConfirmation(ctx context.Context, caller auth.Caller, orderNumber string) (*Confirmation, error) {
	if !caller.IsAuthenticated() {
		return nil, errUnauthorized
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.GetOrderByNumber(ctx, strings.ToUpper(strings.TrimSpace(orderNumber)))
	if err != nil {
		return nil, s.fail(err, msgLoadFailed, "confirmation", logrus.Fields{"order_number": orderNumber})
	}
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, &Error{Kind: KindNotFound, Message: msgNotFound}
	}

	return NewConfirmation(order), nil
}

func (s *Service) ListMine(ctx context.Context, caller auth.Caller, cursor string, limit int) (*OrderList, error) {
	if !caller.IsAuthenticated() {
		return nil, errUnauthorized
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	page, err := s.repo.ListOrdersCursor(ctx, caller.UserID, cursor, limit)
	if err != nil {
		return nil, s.fail(err, msgLoadFailed, "list_mine", logrus.Fields{"user_id": caller.UserID})
	}

	orders, _ := page.Items.([]models.Order)
	list := &OrderList{
		Orders:     make([]Summary, 0, len(orders)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for _, o := range orders {
		list.Orders = append(list.Orders, Summary{
			OrderNumber:  o.OrderNumber,
			Status:       o.Status,
			DeliveryDate: o.DeliveryDate.Format(dateLayout),
			DeliverySlot: o.DeliverySlot,
			Total:        o.Total,
			PlacedAt:     o.PlacedAt,
		})
	}

	return list, nil
}

func requireAdmin(caller auth.Caller) error {
	if !caller.IsAuthenticated() {
		return errUnauthorized
	}
	if !caller.IsAdmin() {
		return errForbidden
	}
	return nil
}

func (s *Service) ListOrders(ctx context.Context, caller auth.Caller, status string, page, pageSize int) (*store.OffsetPage, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	st := models.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if st != "" && !st.IsValid() {
		return nil, &Error{Kind: KindInvalidStatus, Field: "status", Message: msgInvalidStatus}
	}
	page, pageSize = store.NormalizePage(page, pageSize, maxListLimit)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.repo.ListOrders(ctx, st, page, pageSize)
	if err != nil {
		return nil, s.fail(err, msgLoadFailed, "admin_list", logrus.Fields{"status": st})
	}

	return result, nil
}

func (s *Service) GetOrder(ctx context.Context, caller auth.Caller, id int64) (*AdminDetail, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, s.fail(err, msgLoadFailed, "admin_get", logrus.Fields{"order_id": id})
	}

	return NewAdminDetail(order), nil
}

// UpdateStatus advances an order one step. A request for "cancelled" takes
// the cancellation path so stock is restored.
func (s *Service) UpdateStatus(ctx context.Context, caller auth.Caller, id int64, status string) (*AdminDetail, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	next := models.OrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.IsValid() {
		return nil, &Error{Kind: KindInvalidStatus, Field: "status", Message: msgInvalidStatus}
	}
	if next == models.OrderStatusCancelled {
		return s.Cancel(ctx, caller, id)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.UpdateOrderStatus(ctx, id, next)
	if err != nil {
		return nil, s.fail(err, msgStatusFailed, "update_status", logrus.Fields{
			"order_id": id,
			"status":   next,
		})
	}

	s.logger.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"status":       order.Status,
		"admin_id":     caller.UserID,
	}).Info("order status updated")
	s.emit(ctx, events.OrderStatusChanged, order)

	return NewAdminDetail(order), nil
}

func (s *Service) Cancel(ctx context.Context, caller auth.Caller, id int64) (*AdminDetail, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.CancelOrder(ctx, id)
	if err != nil {
		return nil, s.fail(err, msgCancelFailed, "cancel", logrus.Fields{"order_id": id})
	}

	s.logger.WithFields(logrus.Fields{
		"order_number":   order.OrderNumber,
		"payment_status": order.PaymentStatus,
		"admin_id":       caller.UserID,
	}).Info("order cancelled")
	s.emit(ctx, events.OrderCancelled, order)

	return NewAdminDetail(order), nil
}

func (s *Service) UpdatePaymentStatus(ctx context.Context, caller auth.Caller, id int64, status string) (*AdminDetail, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	next := models.PaymentStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.IsValid() {
		return nil, &Error{Kind: KindInvalidStatus, Field: "paymentStatus", Message: "Invalid payment status"}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order, err := s.repo.UpdatePaymentStatus(ctx, id, next)
	if err != nil {
		return nil, s.fail(err, msgPaymentFailed, "update_payment", logrus.Fields{
			"order_id":       id,
			"payment_status": next,
		})
	}

	s.emit(ctx, events.OrderPaymentUpdated, order)

	return NewAdminDetail(order), nil
}
