package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/safar/petalstore/internal/config"
	"github.com/safar/petalstore/internal/database"
	"github.com/safar/petalstore/internal/logging"
	"github.com/safar/petalstore/internal/models"
	"github.com/safar/petalstore/migrations"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	db, err := database.NewConnection(ctx, &config.DatabaseConfig{
		URL:             fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if _, err := database.Migrate(ctx, db, migrations.FS, "up", logging.Discard()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func createTestProduct(t *testing.T, db *sql.DB, name string, price int64, stock int) *models.Product {
	t.Helper()

	product, err := CreateProduct(context.Background(), db, CreateProductParams{
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		IsActive: true,
	})
	if err != nil {
		t.Fatalf("Create product %s: %v", name, err)
	}
	return product
}

func testOrderRequest(userID string, items ...OrderItemRequest) CreateOrderRequest {
	return CreateOrderRequest{
		UserID: userID,
		Items:  items,
		Shipping: models.ShippingSnapshot{
			Name:    "Asha Rao",
			Phone:   "9876543210",
			Email:   "asha@example.com",
			Address: "12 Lake View Road, Flat 4B",
			City:    "Hyderabad",
			State:   "Telangana",
			Pincode: "500081",
		},
		DeliveryDate:  time.Now().AddDate(0, 0, 2),
		DeliverySlot:  "09:00-12:00",
		PaymentMethod: models.PaymentMethodCOD,
	}
}

func newUserID() string {
	return uuid.NewString()
}
