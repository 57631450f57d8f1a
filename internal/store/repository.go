package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/petalstore/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Postgres binds the package functions to one *sql.DB so services can depend
// on interfaces instead of the database handle.
type Postgres struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

func NewPostgres(db *sql.DB, logger logrus.FieldLogger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

func (p *Postgres) CreateOrder(ctx context.Context, req CreateOrderRequest, pricing models.PricingRules) (*models.Order, error) {
	return CreateOrder(ctx, p.db, req, pricing)
}

func (p *Postgres) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return GetOrder(ctx, p.db, id)
}

func (p *Postgres) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return GetOrderByNumber(ctx, p.db, orderNumber)
}

func (p *Postgres) TrackOrder(ctx context.Context, orderNumber, phone string) (*models.Order, error) {
	return TrackOrder(ctx, p.db, orderNumber, phone)
}

func (p *Postgres) ListOrdersCursor(ctx context.Context, userID, cursor string, limit int) (*CursorPage, error) {
	return ListOrdersCursor(ctx, p.db, userID, cursor, limit)
}

func (p *Postgres) ListOrders(ctx context.Context, status models.OrderStatus, page, pageSize int) (*OffsetPage, error) {
	return ListOrders(ctx, p.db, status, page, pageSize)
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) (*models.Order, error) {
	return UpdateOrderStatus(ctx, p.db, id, status)
}

func (p *Postgres) CancelOrder(ctx context.Context, id int64) (*models.Order, error) {
	return CancelOrder(ctx, p.db, id)
}

func (p *Postgres) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (*models.Order, error) {
	return UpdatePaymentStatus(ctx, p.db, id, status)
}

func (p *Postgres) GetProfileRole(ctx context.Context, userID string) (string, error) {
	return GetProfileRole(ctx, p.db, userID)
}

type NewImage struct {
	URL       string
	IsPrimary bool
}

type NewProduct struct {
	CreateProductParams
	Images      []NewImage
	OccasionIDs []int64
}

// CreateProductWithImages writes the product first and then attaches images
// and occasions one by one. Attachment failures are logged and returned as
// warnings; the product itself stays created.
func (p *Postgres) CreateProductWithImages(ctx context.Context, np NewProduct) (*models.Product, []string, error) {
	product, err := CreateProduct(ctx, p.db, np.CreateProductParams)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	for i, img := range np.Images {
		attached, err := AddProductImage(ctx, p.db, product.ID, img.URL, img.IsPrimary, i)
		if err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"product_id": product.ID,
				"url":        img.URL,
			}).Warn("product image attach failed")
			warnings = append(warnings, fmt.Sprintf("image %d could not be attached", i+1))
			continue
		}
		product.Images = append(product.Images, *attached)
	}

	for _, occasionID := range np.OccasionIDs {
		if err := LinkProductOccasion(ctx, p.db, product.ID, occasionID); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"product_id":  product.ID,
				"occasion_id": occasionID,
			}).Warn("product occasion link failed")
			warnings = append(warnings, fmt.Sprintf("occasion %d could not be linked", occasionID))
		}
	}

	return product, warnings, nil
}

func (p *Postgres) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return GetProduct(ctx, p.db, id)
}

func (p *Postgres) ListProducts(ctx context.Context, filter ProductFilter, page, pageSize int) (*OffsetPage, error) {
	return ListProducts(ctx, p.db, filter, page, pageSize)
}

func (p *Postgres) UpdateProduct(ctx context.Context, id int64, params UpdateProductParams) (*models.Product, error) {
	return UpdateProduct(ctx, p.db, id, params)
}

func (p *Postgres) SetProductActive(ctx context.Context, id int64, active bool) error {
	return SetProductActive(ctx, p.db, id, active)
}

func (p *Postgres) CreateCategory(ctx context.Context, name, description string) (*models.Category, error) {
	return CreateCategory(ctx, p.db, name, description)
}

func (p *Postgres) ListCategories(ctx context.Context) ([]models.Category, error) {
	return ListCategories(ctx, p.db)
}

func (p *Postgres) CreateOccasion(ctx context.Context, name, description string) (*models.Occasion, error) {
	return CreateOccasion(ctx, p.db, name, description)
}

func (p *Postgres) ListOccasions(ctx context.Context) ([]models.Occasion, error) {
	return ListOccasions(ctx, p.db)
}

func (p *Postgres) CreateFlower(ctx context.Context, name, color string, pricePerStem decimal.Decimal) (*models.Flower, error) {
	return CreateFlower(ctx, p.db, CreateFlowerParams{Name: name, Color: color, PricePerStem: pricePerStem})
}

func (p *Postgres) ListFlowers(ctx context.Context, activeOnly bool) ([]models.Flower, error) {
	return ListFlowers(ctx, p.db, activeOnly)
}

func (p *Postgres) UpsertProfile(ctx context.Context, profile models.Profile) (*models.Profile, error) {
	return UpsertProfile(ctx, p.db, profile)
}

func (p *Postgres) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return GetProfile(ctx, p.db, id)
}
