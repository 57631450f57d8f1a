package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/models"
	"github.com/shopspring/decimal"
)

func TestCreateOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := newUserID()

	product := createTestProduct(t, db, "Red Roses Bouquet", 100, 10)
	if _, err := AddProductImage(ctx, db, product.ID, "https://cdn.example.com/roses.jpg", true, 0); err != nil {
		t.Fatalf("Add image: %v", err)
	}

	order, err := CreateOrder(ctx, db, testOrderRequest(userID, OrderItemRequest{ProductID: product.ID, Quantity: 2}), models.PricingRules{})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if order.ID == 0 {
		t.Error("Order ID should not be 0")
	}
	if !strings.HasPrefix(order.OrderNumber, "PS-") {
		t.Errorf("Unexpected order number %q", order.OrderNumber)
	}
	if order.Status != models.OrderStatusPlaced {
		t.Errorf("Expected status placed, got %s", order.Status)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		t.Errorf("Expected payment pending, got %s", order.PaymentStatus)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(200)) || !order.Total.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected subtotal and total 200, got %s / %s", order.Subtotal, order.Total)
	}
	if !order.TotalsConsistent() {
		t.Error("Order totals are inconsistent")
	}
	if order.UserID != userID {
		t.Errorf("Expected user %s, got %s", userID, order.UserID)
	}

	if len(order.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(order.Items))
	}
	item := order.Items[0]
	if item.ProductName != "Red Roses Bouquet" || item.ProductImage != "https://cdn.example.com/roses.jpg" {
		t.Errorf("Unexpected item snapshot: %+v", item)
	}

	after, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.StockQuantity != 8 {
		t.Errorf("Expected stock 8, got %d", after.StockQuantity)
	}
}

func TestCreateOrderSnapshotSurvivesProductEdit(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Sunflower Basket", 450, 5)

	order, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1}), models.PricingRules{})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	newName := "Sunflower Basket Deluxe"
	newPrice := decimal.NewFromInt(600)
	if _, err := UpdateProduct(ctx, db, product.ID, UpdateProductParams{Name: &newName, Price: &newPrice}); err != nil {
		t.Fatalf("Update product: %v", err)
	}

	reloaded, err := GetOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if reloaded.Items[0].ProductName != "Sunflower Basket" || !reloaded.Items[0].UnitPrice.Equal(decimal.NewFromInt(450)) {
		t.Errorf("Snapshot changed after product edit: %+v", reloaded.Items[0])
	}
}

func TestCreateOrderAppliesShippingFee(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Orchid Pot", 300, 5)

	pricing := models.PricingRules{ShippingFee: decimal.NewFromInt(49), FreeShippingMin: decimal.NewFromInt(1000)}
	order, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1}), pricing)
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !order.ShippingFee.Equal(decimal.NewFromInt(49)) || !order.Total.Equal(decimal.NewFromInt(349)) {
		t.Errorf("Expected fee 49 and total 349, got %s / %s", order.ShippingFee, order.Total)
	}
}

func TestCreateOrderMergesDuplicateItems(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Lily Bunch", 80, 10)

	order, err := CreateOrder(ctx, db, testOrderRequest(newUserID(),
		OrderItemRequest{ProductID: product.ID, Quantity: 1},
		OrderItemRequest{ProductID: product.ID, Quantity: 2},
	), models.PricingRules{})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if len(order.Items) != 1 || order.Items[0].Quantity != 3 {
		t.Errorf("Expected one merged line of 3, got %+v", order.Items)
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Tulip Vase", 100, 2)

	_, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 3}), models.PricingRules{})

	var stockErr *database.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Expected stock error, got: %v", err)
	}
	if stockErr.ProductName != "Tulip Vase" || stockErr.Available != 2 {
		t.Errorf("Unexpected stock error details: %+v", stockErr)
	}

	after, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.StockQuantity != 2 {
		t.Errorf("Stock should remain unchanged at 2, got %d", after.StockQuantity)
	}

	page, err := ListOrders(ctx, db, "", 1, 10)
	if err != nil {
		t.Fatalf("List orders: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Expected no orders, got %d", page.Total)
	}
}

func TestCreateOrderIsAtomicAcrossItems(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	plenty := createTestProduct(t, db, "Carnation Box", 120, 10)
	scarce := createTestProduct(t, db, "Blue Orchid", 900, 1)

	_, err := CreateOrder(ctx, db, testOrderRequest(newUserID(),
		OrderItemRequest{ProductID: plenty.ID, Quantity: 2},
		OrderItemRequest{ProductID: scarce.ID, Quantity: 5},
	), models.PricingRules{})
	if !errors.Is(err, database.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got: %v", err)
	}

	after, err := GetProduct(ctx, db, plenty.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.StockQuantity != 10 {
		t.Errorf("Expected untouched stock 10, got %d", after.StockQuantity)
	}
}

func TestCreateOrderUnavailableProduct(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Retired Arrangement", 100, 10)
	if err := SetProductActive(ctx, db, product.ID, false); err != nil {
		t.Fatalf("Deactivate product: %v", err)
	}

	_, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1}), models.PricingRules{})
	if !errors.Is(err, database.ErrProductUnavailable) {
		t.Errorf("Expected unavailable for inactive product, got: %v", err)
	}

	_, err = CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: 987654, Quantity: 1}), models.PricingRules{})
	if !errors.Is(err, database.ErrProductUnavailable) {
		t.Errorf("Expected unavailable for missing product, got: %v", err)
	}
}

func TestConcurrentOrderCreation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Mothers Day Special", 100, 5)

	concurrency := 10
	var wg sync.WaitGroup
	results := make(chan error, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1}), models.PricingRules{})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	insufficientStockCount := 0

	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, database.ErrInsufficientStock):
			insufficientStockCount++
		default:
			t.Errorf("Unexpected error: %v", err)
		}
	}

	if successCount != 5 || insufficientStockCount != 5 {
		t.Errorf("Expected 5 successes and 5 rejections, got %d / %d", successCount, insufficientStockCount)
	}

	productAfter, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if productAfter.StockQuantity != 0 {
		t.Errorf("Expected final stock 0, got %d", productAfter.StockQuantity)
	}
}

func TestOrderLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Peony Bouquet", 700, 4)

	order, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1}), models.PricingRules{})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if _, err := UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusDispatched); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected skipped step to be rejected, got: %v", err)
	}

	for _, next := range []models.OrderStatus{
		models.OrderStatusConfirmed,
		models.OrderStatusPreparing,
		models.OrderStatusDispatched,
		models.OrderStatusDelivered,
	} {
		order, err = UpdateOrderStatus(ctx, db, order.ID, next)
		if err != nil {
			t.Fatalf("Advance to %s: %v", next, err)
		}
		if order.Status != next {
			t.Errorf("Expected status %s, got %s", next, order.Status)
		}
	}

	if order.ConfirmedAt == nil || order.DispatchedAt == nil || order.DeliveredAt == nil {
		t.Errorf("Expected every milestone timestamp to be set: %+v", order)
	}
	if order.CancelledAt != nil {
		t.Error("Delivered order should have no cancelled_at")
	}

	if _, err := UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusConfirmed); !errors.Is(err, database.ErrInvalidTransition) {
		t.Errorf("Expected backwards move to be rejected, got: %v", err)
	}

	if _, err := CancelOrder(ctx, db, order.ID); !errors.Is(err, database.ErrOrderDelivered) {
		t.Errorf("Expected delivered order cancel to fail, got: %v", err)
	}

	after, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.StockQuantity != 3 {
		t.Errorf("Expected stock 3, got %d", after.StockQuantity)
	}
}

func TestUpdateOrderStatusRejectsUnknown(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := UpdateOrderStatus(ctx, db, 1, models.OrderStatus("shipped")); !errors.Is(err, database.ErrInvalidStatus) {
		t.Errorf("Expected invalid status, got: %v", err)
	}
	if _, err := UpdateOrderStatus(ctx, db, 424242, models.OrderStatusConfirmed); !errors.Is(err, database.ErrOrderNotFound) {
		t.Errorf("Expected order not found, got: %v", err)
	}
}

func TestCancelOrderRestoresStockOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Gerbera Mix", 100, 10)

	order, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 2}), models.PricingRules{})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	cancelled, err := CancelOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Cancel order: %v", err)
	}
	if cancelled.Status != models.OrderStatusCancelled || cancelled.CancelledAt == nil {
		t.Errorf("Expected cancelled order with timestamp, got %+v", cancelled)
	}

	after, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.StockQuantity != 10 {
		t.Errorf("Expected stock restored to 10, got %d", after.StockQuantity)
	}

	if _, err := CancelOrder(ctx, db, order.ID); !errors.Is(err, database.ErrOrderAlreadyCancelled) {
		t.Errorf("Expected already cancelled, got: %v", err)
	}
	if _, err := UpdateOrderStatus(ctx, db, order.ID, models.OrderStatusConfirmed); !errors.Is(err, database.ErrOrderAlreadyCancelled) {
		t.Errorf("Expected cancelled order to stay cancelled, got: %v", err)
	}

	after, err = GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.StockQuantity != 10 {
		t.Errorf("Expected stock to stay at 10, got %d", after.StockQuantity)
	}
}

func TestConcurrentCancelRestoresOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Anniversary Hamper", 1500, 6)

	order, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 3}), models.PricingRules{})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := CancelOrder(ctx, db, order.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
		} else if !errors.Is(err, database.ErrOrderAlreadyCancelled) {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if successCount != 1 {
		t.Errorf("Expected exactly one cancel to succeed, got %d", successCount)
	}

	after, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.StockQuantity != 6 {
		t.Errorf("Expected stock 6, got %d", after.StockQuantity)
	}
}

func TestCancelPaidOrderRefunds(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Jasmine Garland", 60, 20)

	req := testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1})
	req.PaymentMethod = models.PaymentMethodUPI
	req.UPITransactionID = "UPI123456789"

	order, err := CreateOrder(ctx, db, req, models.PricingRules{})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}
	if order.UPITransactionID != "UPI123456789" {
		t.Errorf("Expected UPI reference to be stored, got %q", order.UPITransactionID)
	}

	if _, err := UpdatePaymentStatus(ctx, db, order.ID, models.PaymentStatusRefunded); !errors.Is(err, database.ErrInvalidPaymentStatus) {
		t.Errorf("Expected pending -> refunded to be rejected, got: %v", err)
	}

	paid, err := UpdatePaymentStatus(ctx, db, order.ID, models.PaymentStatusPaid)
	if err != nil {
		t.Fatalf("Mark paid: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("Expected paid, got %s", paid.PaymentStatus)
	}

	cancelled, err := CancelOrder(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("Cancel order: %v", err)
	}
	if cancelled.PaymentStatus != models.PaymentStatusRefunded {
		t.Errorf("Expected refunded, got %s", cancelled.PaymentStatus)
	}
}

func TestUPIOrderWithoutReferenceViolatesConstraint(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Marigold Toran", 150, 5)

	req := testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1})
	req.PaymentMethod = models.PaymentMethodUPI

	if _, err := CreateOrder(ctx, db, req, models.PricingRules{}); err == nil {
		t.Fatal("Expected the UPI reference constraint to reject the order")
	}

	after, err := GetProduct(ctx, db, product.ID)
	if err != nil {
		t.Fatalf("Get product: %v", err)
	}
	if after.StockQuantity != 5 {
		t.Errorf("Expected stock 5 after rollback, got %d", after.StockQuantity)
	}
}

func TestTrackOrder(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	product := createTestProduct(t, db, "Birthday Blooms", 550, 5)

	order, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1}), models.PricingRules{})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	tracked, err := TrackOrder(ctx, db, order.OrderNumber, "9876543210")
	if err != nil {
		t.Fatalf("Track order: %v", err)
	}
	if tracked.ID != order.ID || tracked.Shipping.City != "Hyderabad" {
		t.Errorf("Unexpected tracked order: %+v", tracked)
	}

	_, wrongPhone := TrackOrder(ctx, db, order.OrderNumber, "9999999999")
	_, wrongNumber := TrackOrder(ctx, db, "PS-000000-AAAAAA", "9876543210")

	if !errors.Is(wrongPhone, database.ErrOrderNotFound) || !errors.Is(wrongNumber, database.ErrOrderNotFound) {
		t.Errorf("Expected identical not-found errors, got %v / %v", wrongPhone, wrongNumber)
	}
}

func TestListOrdersCursor(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	userID := newUserID()
	product := createTestProduct(t, db, "Daily Roses", 100, 100)

	for i := 0; i < 15; i++ {
		_, err := CreateOrder(ctx, db, testOrderRequest(userID, OrderItemRequest{ProductID: product.ID, Quantity: 1}), models.PricingRules{})
		if err != nil {
			t.Fatalf("Create order %d: %v", i, err)
		}
	}
	if _, err := CreateOrder(ctx, db, testOrderRequest(newUserID(), OrderItemRequest{ProductID: product.ID, Quantity: 1}), models.PricingRules{}); err != nil {
		t.Fatalf("Create other user's order: %v", err)
	}

	page1, err := ListOrdersCursor(ctx, db, userID, "", 10)
	if err != nil {
		t.Fatalf("List orders page 1: %v", err)
	}

	if !page1.HasMore {
		t.Error("Page 1 should have more results")
	}
	if page1.NextCursor == "" {
		t.Error("Page 1 should have a next cursor")
	}

	page2, err := ListOrdersCursor(ctx, db, userID, page1.NextCursor, 10)
	if err != nil {
		t.Fatalf("List orders page 2: %v", err)
	}

	if page2.HasMore {
		t.Error("Page 2 should not have more results")
	}
	if got := len(page2.Items.([]models.Order)); got != 5 {
		t.Errorf("Expected 5 orders on page 2, got %d", got)
	}

	all, err := ListOrders(ctx, db, models.OrderStatusPlaced, 1, 50)
	if err != nil {
		t.Fatalf("List all orders: %v", err)
	}
	if all.Total != 16 {
		t.Errorf("Expected 16 placed orders, got %d", all.Total)
	}
}
