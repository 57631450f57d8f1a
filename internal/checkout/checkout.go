// Package checkout turns a raw checkout submission into a create-order
// request. It performs no I/O: every rejection happens before the database
// is touched.
package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/safar/petalstore/internal/config"
	"github.com/safar/petalstore/internal/models"
	"github.com/safar/petalstore/internal/store"
)

const (
	maxNotesLength = 500
	maxQuantity    = 99
	maxUPIRefLen   = 64
	dateLayout     = "2006-01-02"
)

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrUPITransactionRequired = errors.New("upi transaction id is required")
)

// FieldError names the offending input field using its JSON path.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type Submission struct {
	Items            []ItemSubmission   `json:"items"`
	Shipping         ShippingSubmission `json:"shipping"`
	DeliveryDate     string             `json:"deliveryDate"`
	DeliverySlot     string             `json:"deliverySlot"`
	PaymentMethod    string             `json:"paymentMethod"`
	UPITransactionID string             `json:"upiTransactionId,omitempty"`
	Notes            string             `json:"notes,omitempty"`
}

type ItemSubmission struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type ShippingSubmission struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Address    string `json:"address" validate:"required,max=300"`
	Apartment  string `json:"apartment,omitempty" validate:"max=100"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"required,len=6,number"`
	Phone      string `json:"phone" validate:"required,len=10,number"`
	Email      string `json:"email" validate:"required,email,max=254"`
}

type Options struct {
	DefaultState string
	Location     *time.Location
	MaxDaysAhead int
	// Now defaults to time.Now.
	Now func() time.Time
}

func OptionsFromConfig(cfg config.StoreConfig) Options {
	return Options{
		DefaultState: cfg.DefaultState,
		Location:     cfg.Timezone,
		MaxDaysAhead: cfg.MaxDeliveryDaysAhead,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate applies the checkout rules in a fixed order and returns the first
// failure. The returned request has no UserID; the caller fills it from the
// authenticated identity.
func Validate(sub Submission, opts Options) (store.CreateOrderRequest, error) {
	var req store.CreateOrderRequest

	if len(sub.Items) == 0 {
		return req, ErrEmptyCart
	}

	items, err := validateItems(sub.Items)
	if err != nil {
		return req, err
	}

	shipping, err := validateShipping(sub.Shipping, opts.DefaultState)
	if err != nil {
		return req, err
	}

	deliveryDate, err := validateDeliveryDate(sub.DeliveryDate, opts)
	if err != nil {
		return req, err
	}

	slot := strings.TrimSpace(sub.DeliverySlot)
	if !models.IsValidDeliverySlot(slot) {
		return req, &FieldError{Field: "deliverySlot", Message: "Please choose a delivery time slot"}
	}

	method := models.PaymentMethod(strings.ToLower(strings.TrimSpace(sub.PaymentMethod)))
	if !method.IsValid() {
		return req, &FieldError{Field: "paymentMethod", Message: "Please choose a payment method"}
	}

	var upiRef string
	if method == models.PaymentMethodUPI {
		upiRef = strings.TrimSpace(sub.UPITransactionID)
		if upiRef == "" {
			return req, ErrUPITransactionRequired
		}
		if len(upiRef) > maxUPIRefLen {
			return req, &FieldError{Field: "upiTransactionId", Message: "UPI Transaction ID is too long"}
		}
	}

	notes := strings.TrimSpace(sub.Notes)
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return req, &FieldError{Field: "notes", Message: fmt.Sprintf("Notes must be at most %d characters", maxNotesLength)}
	}

	return store.CreateOrderRequest{
		Items:            items,
		Shipping:         shipping,
		DeliveryDate:     deliveryDate,
		DeliverySlot:     slot,
		PaymentMethod:    method,
		UPITransactionID: upiRef,
		Notes:            notes,
	}, nil
}

func validateItems(submitted []ItemSubmission) ([]store.OrderItemRequest, error) {
	items := make([]store.OrderItemRequest, 0, len(submitted))
	index := make(map[int64]int, len(submitted))

	for i, item := range submitted {
		id, err := strconv.ParseInt(strings.TrimSpace(item.ProductID), 10, 64)
		if err != nil || id <= 0 {
			return nil, &FieldError{Field: fmt.Sprintf("items[%d].productId", i), Message: "Invalid product"}
		}
		if item.Quantity < 1 {
			return nil, &FieldError{Field: fmt.Sprintf("items[%d].quantity", i), Message: "Quantity must be at least 1"}
		}

		if item.Quantity > maxQuantity {
			return nil, quantityTooLarge(i)
		}

		if pos, ok := index[id]; ok {
			if items[pos].Quantity+item.Quantity > maxQuantity {
				return nil, quantityTooLarge(i)
			}
			items[pos].Quantity += item.Quantity
			continue
		}
		index[id] = len(items)
		items = append(items, store.OrderItemRequest{ProductID: id, Quantity: item.Quantity})
	}

	return items, nil
}

// quantityTooLarge applies to single lines and to merged duplicates alike.
func quantityTooLarge(i int) *FieldError {
	return &FieldError{
		Field:   fmt.Sprintf("items[%d].quantity", i),
		Message: fmt.Sprintf("Quantity must be at most %d", maxQuantity),
	}
}

func validateShipping(in ShippingSubmission, defaultState string) (models.ShippingSnapshot, error) {
	s := ShippingSubmission{
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Address:    strings.TrimSpace(in.Address),
		Apartment:  strings.TrimSpace(in.Apartment),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Phone:      NormalizePhone(in.Phone),
		Email:      strings.TrimSpace(in.Email),
	}
	if s.State == "" {
		s.State = defaultState
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.ShippingSnapshot{}, shippingFieldError(verrs[0])
		}
		return models.ShippingSnapshot{}, err
	}

	address := s.Address
	if s.Apartment != "" {
		address = s.Address + ", " + s.Apartment
	}

	return models.ShippingSnapshot{
		Name:    s.FirstName + " " + s.LastName,
		Phone:   s.Phone,
		Email:   s.Email,
		Address: address,
		City:    s.City,
		State:   s.State,
		Pincode: s.PostalCode,
	}, nil
}

var shippingLabels = map[string]string{
	"firstName":  "First name",
	"lastName":   "Last name",
	"address":    "Address",
	"apartment":  "Apartment",
	"city":       "City",
	"state":      "State",
	"postalCode": "Postal code",
	"phone":      "Phone number",
	"email":      "Email",
}

func shippingFieldError(fe validator.FieldError) *FieldError {
	field := fe.Field()
	label := shippingLabels[field]

	var msg string
	switch {
	case fe.Tag() == "required":
		msg = label + " is required"
	case field == "postalCode":
		msg = "Postal code must be 6 digits"
	case field == "phone":
		msg = "Phone number must be 10 digits"
	case fe.Tag() == "email":
		msg = "Please enter a valid email address"
	case fe.Tag() == "max":
		msg = fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	default:
		msg = label + " is invalid"
	}

	return &FieldError{Field: "shipping." + field, Message: msg}
}

// NormalizePhone strips spaces, dashes, dots, parentheses and a leading +91
// or 0 trunk prefix from an Indian mobile number. Input containing any other
// character is returned trimmed but otherwise untouched, so digit checks
// downstream reject it.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)

	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '(', r == ')':
		case r == '+' && i == 0:
		default:
			return raw
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		return digits[1:]
	}
	return digits
}

func validateDeliveryDate(raw string, opts Options) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, &FieldError{Field: "deliveryDate", Message: "Please choose a delivery date"}
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	date, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, &FieldError{Field: "deliveryDate", Message: "Delivery date must be in YYYY-MM-DD format"}
	}

	y, m, d := now().In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	if date.Before(today) {
		return time.Time{}, &FieldError{Field: "deliveryDate", Message: "Delivery date cannot be in the past"}
	}
	if opts.MaxDaysAhead > 0 && date.After(today.AddDate(0, 0, opts.MaxDaysAhead)) {
		return time.Time{}, &FieldError{
			Field:   "deliveryDate",
			Message: fmt.Sprintf("Delivery date must be within %d days", opts.MaxDaysAhead),
		}
	}

	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC), nil
}
