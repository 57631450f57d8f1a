package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/models"
	"github.com/shopspring/decimal"
)

const maxOrderNumberAttempts = 5

type CreateOrderRequest struct {
	UserID           string
	Items            []OrderItemRequest
	Shipping         models.ShippingSnapshot
	DeliveryDate     time.Time
	DeliverySlot     string
	PaymentMethod    models.PaymentMethod
	UPITransactionID string
	Notes            string
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

// orderNumberAlphabet is Crockford-style base32: no I, L, O or U.
const orderNumberAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// generateOrderNumber returns PS-YYMMDD-XXXXXX with six random base32
// characters drawn from a v4 UUID.
func generateOrderNumber(now time.Time) string {
	id := uuid.New()

	var suffix [6]byte
	for i := range suffix {
		suffix[i] = orderNumberAlphabet[int(id[i])%len(orderNumberAlphabet)]
	}

	return fmt.Sprintf("PS-%s-%s", now.UTC().Format("060102"), string(suffix[:]))
}

// mergeItems sums quantities per product and sorts by product id so that
// concurrent orders always lock rows in the same order.
func mergeItems(items []OrderItemRequest) []OrderItemRequest {
	byID := make(map[int64]int, len(items))
	for _, item := range items {
		byID[item.ProductID] += item.Quantity
	}

	merged := make([]OrderItemRequest, 0, len(byID))
	for id, qty := range byID {
		merged = append(merged, OrderItemRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID < merged[j].ProductID
	})

	return merged
}

// CreateOrder reserves stock, prices the items from locked product rows and
// writes the order with its items in a single transaction.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest, pricing models.PricingRules) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, database.ErrEmptyOrder
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("product %d: quantity must be positive", item.ProductID)
		}
	}

	items := mergeItems(req.Items)
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		lines := make([]models.OrderItem, 0, len(items))
		subtotal := decimal.Zero

		for _, item := range items {
			product, err := ReserveStock(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}

			image, err := primaryImageURL(ctx, tx, product.ID)
			if err != nil {
				return err
			}

			lineTotal := models.LineTotal(product.Price, item.Quantity)
			lines = append(lines, models.OrderItem{
				ProductID:    product.ID,
				ProductName:  product.Name,
				ProductImage: image,
				UnitPrice:    product.Price,
				Quantity:     item.Quantity,
				LineTotal:    lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
		}

		for _, item := range items {
			if err := DecrementStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		shippingFee, discount, total := pricing.Quote(subtotal)

		orderID, err := insertOrder(ctx, tx, req, subtotal, shippingFee, discount, total)
		if err != nil {
			return err
		}

		for _, line := range lines {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (order_id, product_id, product_name, product_image, unit_price, quantity, line_total, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
				orderID, line.ProductID, line.ProductName, line.ProductImage, line.UnitPrice, line.Quantity, line.LineTotal)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		order, err = getOrder(ctx, tx, `o.id = $1`, orderID)
		if err != nil {
			return fmt.Errorf("fetch created order: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, req CreateOrderRequest, subtotal, shippingFee, discount, total decimal.Decimal) (int64, error) {
	var upiRef interface{}
	if req.PaymentMethod == models.PaymentMethodUPI {
		upiRef = req.UPITransactionID
	}

	query := `
		INSERT INTO orders (
			order_number, user_id, status,
			shipping_name, shipping_phone, shipping_email, shipping_address,
			shipping_city, shipping_state, shipping_pincode,
			delivery_date, delivery_slot,
			payment_method, payment_status, upi_transaction_id, notes,
			subtotal, shipping_fee, discount, total,
			placed_at, updated_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW(), NOW(), 1)
		ON CONFLICT (order_number) DO NOTHING
		RETURNING id`

	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		var orderID int64
		err := tx.QueryRowContext(ctx, query,
			generateOrderNumber(time.Now()),
			req.UserID,
			models.OrderStatusPlaced,
			req.Shipping.Name,
			req.Shipping.Phone,
			req.Shipping.Email,
			req.Shipping.Address,
			req.Shipping.City,
			req.Shipping.State,
			req.Shipping.Pincode,
			req.DeliveryDate.Format("2006-01-02"),
			req.DeliverySlot,
			req.PaymentMethod,
			models.PaymentStatusPending,
			upiRef,
			req.Notes,
			subtotal,
			shippingFee,
			discount,
			total,
		).Scan(&orderID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("create order: %w", err)
		}
		return orderID, nil
	}

	return 0, database.ErrOrderNumberExhausted
}

const orderColumns = `
	o.id, o.order_number, o.user_id, o.status,
	o.shipping_name, o.shipping_phone, o.shipping_email, o.shipping_address,
	o.shipping_city, o.shipping_state, o.shipping_pincode,
	o.delivery_date, o.delivery_slot,
	o.payment_method, o.payment_status, o.upi_transaction_id, o.notes,
	o.subtotal, o.shipping_fee, o.discount, o.total,
	o.placed_at, o.confirmed_at, o.dispatched_at, o.delivered_at, o.cancelled_at,
	o.updated_at, o.version`

func scanOrder(row interface{ Scan(...interface{}) error }, order *models.Order) error {
	var (
		upiRef                                           sql.NullString
		confirmedAt, dispatchedAt, deliveredAt, cancelAt sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&order.Status,
		&order.Shipping.Name,
		&order.Shipping.Phone,
		&order.Shipping.Email,
		&order.Shipping.Address,
		&order.Shipping.City,
		&order.Shipping.State,
		&order.Shipping.Pincode,
		&order.DeliveryDate,
		&order.DeliverySlot,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&upiRef,
		&order.Notes,
		&order.Subtotal,
		&order.ShippingFee,
		&order.Discount,
		&order.Total,
		&order.PlacedAt,
		&confirmedAt,
		&dispatchedAt,
		&deliveredAt,
		&cancelAt,
		&order.UpdatedAt,
		&order.Version,
	)
	if err != nil {
		return err
	}

	order.UPITransactionID = upiRef.String
	order.ConfirmedAt = nullTime(confirmedAt)
	order.DispatchedAt = nullTime(dispatchedAt)
	order.DeliveredAt = nullTime(deliveredAt)
	order.CancelledAt = nullTime(cancelAt)

	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// getOrder loads one order with its items. where is a fixed predicate over
// alias o; callers never pass user input into it.
func getOrder(ctx context.Context, q querier, where string, args ...interface{}) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + ` FROM orders o WHERE ` + where

	err := scanOrder(q.QueryRowContext(ctx, query, args...), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := listOrderItems(ctx, q, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

func listOrderItems(ctx context.Context, q querier, orderID int64) ([]models.OrderItem, error) {
	itemsQuery := `
		SELECT id, order_id, product_id, product_name, product_image, unit_price, quantity, line_total, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := q.QueryContext(ctx, itemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.ProductImage,
			&item.UnitPrice,
			&item.Quantity,
			&item.LineTotal,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func GetOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	return getOrder(ctx, db, `o.id = $1`, id)
}

func GetOrderByNumber(ctx context.Context, db *sql.DB, orderNumber string) (*models.Order, error) {
	return getOrder(ctx, db, `o.order_number = $1`, strings.TrimSpace(orderNumber))
}

// TrackOrder matches on order number and shipping phone together, so a wrong
// number and a wrong phone are indistinguishable to the caller.
func TrackOrder(ctx context.Context, db *sql.DB, orderNumber, phone string) (*models.Order, error) {
	order := &models.Order{}

	query := `SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.order_number = $1
		  AND o.shipping_phone = $2`

	err := scanOrder(db.QueryRowContext(ctx, query, orderNumber, phone), order)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("track order: %w", err)
	}

	return order, nil
}

func ListOrdersCursor(ctx context.Context, db *sql.DB, userID string, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	query := `SELECT ` + orderColumns + `
		FROM orders o
		WHERE o.user_id = $1
		  AND (o.placed_at, o.id) < ($2, $3)
		ORDER BY o.placed_at DESC, o.id DESC
		LIMIT $4`

	rows, err := db.QueryContext(ctx, query, userID, cursorData.PlacedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			PlacedAt: lastOrder.PlacedAt,
			ID:       lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListOrders is the admin listing. An empty status lists every order.
func ListOrders(ctx context.Context, db *sql.DB, status models.OrderStatus, page, pageSize int) (*OffsetPage, error) {
	if status != "" && !status.IsValid() {
		return nil, database.ErrInvalidStatus
	}

	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`,
		string(status)).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * pageSize
	query := `SELECT ` + orderColumns + `
		FROM orders o
		WHERE ($1 = '' OR o.status = $1)
		ORDER BY o.placed_at DESC, o.id DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, string(status), pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(orders, total, page, pageSize), nil
}

// lockOrder takes the row lock every lifecycle mutation serializes on.
func lockOrder(ctx context.Context, tx *sql.Tx, id int64) (models.OrderStatus, models.PaymentStatus, error) {
	var status models.OrderStatus
	var paymentStatus models.PaymentStatus

	err := tx.QueryRowContext(ctx,
		`SELECT status, payment_status FROM orders WHERE id = $1 FOR UPDATE`,
		id).Scan(&status, &paymentStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", database.ErrOrderNotFound
		}
		return "", "", fmt.Errorf("lock order %d: %w", id, err)
	}

	return status, paymentStatus, nil
}

// UpdateOrderStatus moves an order one step along the fulfilment path and
// stamps the matching timestamp in the same statement. Cancellation has its
// own entry point because it restores stock.
func UpdateOrderStatus(ctx context.Context, db *sql.DB, id int64, newStatus models.OrderStatus) (*models.Order, error) {
	if !newStatus.IsValid() {
		return nil, database.ErrInvalidStatus
	}
	if newStatus == models.OrderStatusCancelled {
		return nil, database.ErrInvalidTransition
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, _, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		if current == models.OrderStatusCancelled {
			return database.ErrOrderAlreadyCancelled
		}
		if !current.CanAdvanceTo(newStatus) {
			return fmt.Errorf("%s -> %s: %w", current, newStatus, database.ErrInvalidTransition)
		}

		query := `UPDATE orders SET status = $2, updated_at = NOW(), version = version + 1`
		if col := newStatus.TimestampColumn(); col != "" {
			query += fmt.Sprintf(", %s = COALESCE(%s, NOW())", col, col)
		}
		query += ` WHERE id = $1`

		if _, err := tx.ExecContext(ctx, query, id, newStatus); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		order, err = getOrder(ctx, tx, `o.id = $1`, id)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// CancelOrder cancels a not-yet-delivered order and returns its quantities to
// stock. The row lock plus the status check make the restore happen once.
func CancelOrder(ctx context.Context, db *sql.DB, id int64) (*models.Order, error) {
	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		current, paymentStatus, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		switch current {
		case models.OrderStatusDelivered:
			return database.ErrOrderDelivered
		case models.OrderStatusCancelled:
			return database.ErrOrderAlreadyCancelled
		}

		if paymentStatus == models.PaymentStatusPaid {
			paymentStatus = models.PaymentStatusRefunded
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders
			 SET status = $2,
			     cancelled_at = COALESCE(cancelled_at, NOW()),
			     payment_status = $3,
			     updated_at = NOW(),
			     version = version + 1
			 WHERE id = $1`,
			id, models.OrderStatusCancelled, paymentStatus)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		restock, err := orderQuantities(ctx, tx, id)
		if err != nil {
			return err
		}

		for _, item := range restock {
			if err := RestoreStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("restore product %d: %w", item.ProductID, err)
			}
		}

		order, err = getOrder(ctx, tx, `o.id = $1`, id)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}

// orderQuantities reads all rows before any stock update runs on the same
// connection.
func orderQuantities(ctx context.Context, tx *sql.Tx, orderID int64) ([]OrderItemRequest, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, SUM(quantity)
		 FROM order_items
		 WHERE order_id = $1
		 GROUP BY product_id
		 ORDER BY product_id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("order quantities: %w", err)
	}
	defer rows.Close()

	var items []OrderItemRequest
	for rows.Next() {
		var item OrderItemRequest
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order quantity: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// UpdatePaymentStatus records an out-of-band payment confirmation. Cancelled
// orders only accept a refund.
func UpdatePaymentStatus(ctx context.Context, db *sql.DB, id int64, next models.PaymentStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, database.ErrInvalidPaymentStatus
	}

	var order *models.Order

	err := database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		status, current, err := lockOrder(ctx, tx, id)
		if err != nil {
			return err
		}

		if !current.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", current, next, database.ErrInvalidPaymentStatus)
		}
		if status == models.OrderStatusCancelled && next != models.PaymentStatusRefunded {
			return fmt.Errorf("order cancelled: %w", database.ErrInvalidPaymentStatus)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET payment_status = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`,
			id, next)
		if err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}

		order, err = getOrder(ctx, tx, `o.id = $1`, id)
		return err
	})

	if err != nil {
		return nil, err
	}

	return order, nil
}
