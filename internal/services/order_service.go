// Package services – OrderService
//
// This file implements OrderService, which owns the order pipeline: it
// validates a new order, resolves the vendor and the dishes, prices the
// items, persists the header and the lines, and queues the post-commit
// effects (opening chat message, vendor notification). Status changes and
// pickup codes live in order_status.go and pickup_code.go.
//
// Observability: public methods open an OpenTelemetry span on the
// "services/OrderService" tracer.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-pickup-backend/internal/apperr"
	"github.com/tbourn/go-pickup-backend/internal/domain"
	"github.com/tbourn/go-pickup-backend/internal/notify"
	"github.com/tbourn/go-pickup-backend/internal/observability"
	"github.com/tbourn/go-pickup-backend/internal/repo"
)

const orderTracer = "services/OrderService"

// Input bounds.
const (
	MaxOrderItems           = 20
	MaxItemQuantity         = 99
	MaxItemInstructionsLen  = 500
	MaxOrderInstructionsLen = 1000
	MaxCancelReasonLen      = 500
)

// Defaults for OrderService timing.
const (
	DefaultMinLeadTime   = 15 * time.Minute
	DefaultPickupCodeTTL = 30 * time.Minute
)

const defaultOpeningMessage = "Order placed! I'll be there for pickup."

// OrderItemInput is one requested line.
type OrderItemInput struct {
	DishID              string `json:"dish_id"`
	Quantity            int    `json:"quantity"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// CreateOrderInput is a new order request. IdempotencyKey is required.
type CreateOrderInput struct {
	VendorID            string           `json:"vendor_id"`
	Items               []OrderItemInput `json:"items"`
	PickupTime          time.Time        `json:"pickup_time"`
	SpecialInstructions string           `json:"special_instructions,omitempty"`
	TipCents            int64            `json:"tip_cents"`
	IdempotencyKey      string           `json:"-"`
}

// Party is one side of an order as shown to clients.
type Party struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// OrderDetails is the order as returned by every order operation.
type OrderDetails struct {
	Order         *domain.Order `json:"order"`
	Buyer         Party         `json:"buyer"`
	Vendor        Party         `json:"vendor"`
	StatusMessage string        `json:"status_message"`
}

// OrderService implements order creation and the order lifecycle.
type OrderService struct {
	DB       *gorm.DB
	Idem     *IdempotencyCache
	Effects  notify.Effects
	Notifier notify.Sender
	Pricing  Pricing

	MinLeadTime   time.Duration
	PickupCodeTTL time.Duration

	now func() time.Time
}

// NewOrderService wires an OrderService with the default lead time and
// pickup-code lifetime.
func NewOrderService(db *gorm.DB, idem *IdempotencyCache, effects notify.Effects, sender notify.Sender, pricing Pricing) *OrderService {
	return &OrderService{
		DB:            db,
		Idem:          idem,
		Effects:       effects,
		Notifier:      sender,
		Pricing:       pricing,
		MinLeadTime:   DefaultMinLeadTime,
		PickupCodeTTL: DefaultPickupCodeTTL,
		now:           repo.Now,
	}
}

// CreateOrder places an order for the caller.
//
// A retry with the same idempotency key returns the order created by the
// first attempt, whoever sends it.
func (s *OrderService) CreateOrder(ctx context.Context, id domain.Identity, in CreateOrderInput) (out *OrderDetails, err error) {
	ctx, span := observability.StartSpan(ctx, orderTracer, "CreateOrder",
		attribute.String("vendor.id", in.VendorID),
		attribute.Int("order.items", len(in.Items)),
		attribute.Bool("caller.guest", id.IsGuest()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if id.IsZero() {
		return nil, ErrUnauthorized
	}
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.IdempotencyKey == "" {
		return nil, apperr.Validation("an idempotency key is required to create an order")
	}
	if err := validateIdempotencyKey(in.IdempotencyKey); err != nil {
		return nil, err
	}
	now := s.clock()
	if err := s.validateCreate(&in); err != nil {
		return nil, err
	}

	return runIdempotent(ctx, s.Idem, FnCreateOrder, id.ID(), in.IdempotencyKey, in,
		func(ctx context.Context) (*OrderDetails, error) {
			return s.createOrder(ctx, id, in, now)
		})
}

func (s *OrderService) validateCreate(in *CreateOrderInput) error {
	in.VendorID = strings.TrimSpace(in.VendorID)
	in.SpecialInstructions = strings.TrimSpace(in.SpecialInstructions)

	if in.VendorID == "" {
		return apperr.Validation("vendor_id is required")
	}
	if len(in.Items) == 0 || len(in.Items) > MaxOrderItems {
		return apperr.Validation(fmt.Sprintf("an order needs between 1 and %d items", MaxOrderItems))
	}
	for i := range in.Items {
		it := &in.Items[i]
		it.DishID = strings.TrimSpace(it.DishID)
		it.SpecialInstructions = strings.TrimSpace(it.SpecialInstructions)
		if it.DishID == "" {
			return apperr.Validation(fmt.Sprintf("items[%d].dish_id is required", i))
		}
		if it.Quantity < 1 || it.Quantity > MaxItemQuantity {
			return apperr.Validation(fmt.Sprintf("items[%d].quantity must be between 1 and %d", i, MaxItemQuantity))
		}
		if utf8.RuneCountInString(it.SpecialInstructions) > MaxItemInstructionsLen {
			return apperr.Validation(fmt.Sprintf("items[%d].special_instructions is too long", i))
		}
	}
	if utf8.RuneCountInString(in.SpecialInstructions) > MaxOrderInstructionsLen {
		return apperr.Validation("special_instructions is too long")
	}
	if in.TipCents < 0 {
		return apperr.Validation("tip_cents must not be negative")
	}
	if in.PickupTime.IsZero() {
		return apperr.Validation("pickup_time is required")
	}
	return nil
}

// checkLeadTime applies only to orders not yet placed; a retry of a placed
// order must replay it even once the lead window has passed.
func (s *OrderService) checkLeadTime(pickup, now time.Time) error {
	earliest := now.Add(s.minLeadTime())
	if pickup.Before(earliest) {
		return ErrPickupTimeTooSoon.
			WithMessage(fmt.Sprintf("pickup time must be at least %s from now", s.minLeadTime())).
			WithDetail("earliest_pickup_time", earliest)
	}
	return nil
}

func (s *OrderService) createOrder(ctx context.Context, id domain.Identity, in CreateOrderInput, now time.Time) (*OrderDetails, error) {
	if existing, err := repo.GetOrderByIdempotencyKey(ctx, s.DB, in.IdempotencyKey); err == nil {
		return s.details(ctx, existing)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, errors.Wrap(err, "look up order by idempotency key")
	}
	if err := s.checkLeadTime(in.PickupTime, now); err != nil {
		return nil, err
	}

	vendor, err := repo.GetVendor(ctx, s.DB, in.VendorID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load vendor")
	}
	if !vendor.IsActive {
		return nil, ErrVendorInactive
	}

	ids := make([]string, 0, len(in.Items))
	seen := make(map[string]bool, len(in.Items))
	for _, it := range in.Items {
		if !seen[it.DishID] {
			seen[it.DishID] = true
			ids = append(ids, it.DishID)
		}
	}
	dishes, err := repo.ListAvailableDishes(ctx, s.DB, vendor.ID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load dishes")
	}
	byID := make(map[string]domain.Dish, len(dishes))
	for _, d := range dishes {
		byID[d.ID] = d
	}
	var missing []string
	for _, dishID := range ids {
		if _, ok := byID[dishID]; !ok {
			missing = append(missing, dishID)
		}
	}
	if len(missing) > 0 {
		return nil, ErrDishUnavailable.WithDetail("dish_ids", missing)
	}

	orderID := uuid.NewString()
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		d := byID[it.DishID]
		items = append(items, domain.OrderItem{
			ID:                  uuid.NewString(),
			OrderID:             orderID,
			DishID:              d.ID,
			DishName:            d.Name,
			Quantity:            it.Quantity,
			UnitPriceCents:      d.PriceCents,
			LineTotalCents:      d.PriceCents * int64(it.Quantity),
			SpecialInstructions: it.SpecialInstructions,
			CreatedAt:           now,
		})
	}
	totals := s.Pricing.Price(items, in.TipCents)

	code, err := newPickupCode()
	if err != nil {
		return nil, errors.Wrap(err, "generate pickup code")
	}
	pickupAt := in.PickupTime.UTC().Truncate(time.Microsecond)
	codeExpires := pickupAt.Add(s.pickupCodeTTL())
	key := in.IdempotencyKey

	o := &domain.Order{
		ID:                  orderID,
		VendorID:            vendor.ID,
		Status:              domain.StatusPending,
		SubtotalCents:       totals.SubtotalCents,
		TaxCents:            totals.TaxCents,
		FeeCents:            totals.FeeCents,
		TipCents:            totals.TipCents,
		TotalCents:          totals.TotalCents,
		Currency:            s.Pricing.currency(),
		PickupTime:          pickupAt,
		SpecialInstructions: in.SpecialInstructions,
		PickupCode:          &code,
		PickupCodeExpiresAt: &codeExpires,
		IdempotencyKey:      &key,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if id.IsGuest() {
		g := id.GuestID
		o.GuestID = &g
	} else {
		u := id.UserID
		o.BuyerID = &u
	}

	if err := repo.CreateOrderHeader(ctx, s.DB, o); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// Lost the race to a concurrent request with the same key.
			existing, gerr := repo.GetOrderByIdempotencyKey(ctx, s.DB, key)
			if gerr != nil {
				return nil, errors.Wrap(gerr, "reload order after duplicate insert")
			}
			return s.details(ctx, existing)
		}
		return nil, errors.Wrap(err, "insert order")
	}
	if err := repo.CreateOrderItems(ctx, s.DB, items); err != nil {
		log.Error().Err(err).Str("order_id", o.ID).Msg("insert order items failed; removing order header")
		if derr := repo.DeleteOrder(ctx, s.DB, o.ID); derr != nil {
			log.Error().Err(derr).Str("order_id", o.ID).Msg("compensating delete failed")
		}
		return nil, apperr.Internal.WithMessage("could not save the order items")
	}
	o.Items = items

	observability.OrderCreated(id.IsGuest())
	log.Info().
		Str("order_id", o.ID).
		Str("vendor_id", vendor.ID).
		Bool("guest", id.IsGuest()).
		Int64("total_cents", o.TotalCents).
		Msg("order created")

	s.afterCreate(o, vendor, id)
	return s.details(ctx, o)
}

// afterCreate queues the opening chat message and the vendor notification.
func (s *OrderService) afterCreate(o *domain.Order, vendor *domain.Vendor, id domain.Identity) {
	opening := o.SpecialInstructions
	if opening == "" {
		opening = defaultOpeningMessage
	}
	orderID, buyer := o.ID, id.ID()
	s.effects().Enqueue("order_opening_message", func(ctx context.Context) error {
		return repo.CreateMessage(ctx, s.DB, &domain.Message{
			OrderID:    orderID,
			SenderID:   buyer,
			SenderRole: domain.RoleBuyer,
			Kind:       domain.MessageSystem,
			Content:    opening,
		})
	})

	n := notify.Notification{
		RecipientID: vendor.OwnerID,
		Kind:        domain.NotifyNewOrder,
		Title:       notify.Title("new order received"),
		Body: fmt.Sprintf("%d item(s), %s, pickup at %s",
			len(o.Items), formatMoney(o.TotalCents, o.Currency), o.PickupTime.Format(time.Kitchen)),
		Data: map[string]any{"order_id": orderID},
	}
	s.notify("notify_vendor_new_order", n)
}

// GetOrder returns an order to one of its participants.
func (s *OrderService) GetOrder(ctx context.Context, id domain.Identity, orderID string) (out *OrderDetails, err error) {
	ctx, span := observability.StartSpan(ctx, orderTracer, "GetOrder", attribute.String("order.id", orderID))
	defer func() { observability.EndSpan(span, err) }()

	if id.IsZero() {
		return nil, ErrUnauthorized
	}
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.participant(ctx, o, id); err != nil {
		return nil, err
	}
	return s.details(ctx, o)
}

func (s *OrderService) loadOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := repo.GetOrder(ctx, s.DB, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "load order")
	}
	return o, nil
}

// participant returns the caller's role on o and the order's vendor.
func (s *OrderService) participant(ctx context.Context, o *domain.Order, id domain.Identity) (string, *domain.Vendor, error) {
	return orderParticipant(ctx, s.DB, o, id)
}

// orderParticipant resolves id to the buyer or vendor role on o, or
// ErrForbidden. The vendor is nil only when it no longer exists and the
// caller is the buyer.
func orderParticipant(ctx context.Context, db *gorm.DB, o *domain.Order, id domain.Identity) (string, *domain.Vendor, error) {
	vendor, err := repo.GetVendor(ctx, db, o.VendorID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return "", nil, errors.Wrap(err, "load vendor")
	}
	if o.IsOwnedBy(id) {
		return domain.RoleBuyer, vendor, nil
	}
	if vendor != nil && !id.IsGuest() && id.UserID != "" && vendor.OwnerID == id.UserID {
		return domain.RoleVendor, vendor, nil
	}
	return "", nil, ErrForbidden
}

func (s *OrderService) details(ctx context.Context, o *domain.Order) (*OrderDetails, error) {
	d := &OrderDetails{Order: o, StatusMessage: domain.StatusMessage(o.Status, deref(o.CancellationReason))}

	switch {
	case o.BuyerID != nil:
		d.Buyer = Party{ID: *o.BuyerID, DisplayName: "Customer"}
		u, err := repo.GetUser(ctx, s.DB, *o.BuyerID)
		if err == nil {
			d.Buyer.DisplayName = u.DisplayName
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, errors.Wrap(err, "load buyer")
		}
	case o.GuestID != nil:
		d.Buyer = Party{ID: *o.GuestID, DisplayName: "Guest"}
	}

	d.Vendor = Party{ID: o.VendorID}
	v, err := repo.GetVendor(ctx, s.DB, o.VendorID)
	if err == nil {
		d.Vendor.DisplayName = v.BusinessName
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, errors.Wrap(err, "load vendor")
	}
	return d, nil
}

func (s *OrderService) notify(effect string, n notify.Notification) {
	if s.Notifier == nil || n.RecipientID == "" {
		return
	}
	s.effects().Enqueue(effect, func(ctx context.Context) error {
		return s.Notifier.Send(ctx, n)
	})
}

func (s *OrderService) effects() notify.Effects {
	if s.Effects == nil {
		return notify.Inline{}
	}
	return s.Effects
}

func (s *OrderService) minLeadTime() time.Duration {
	if s.MinLeadTime < 0 {
		return 0
	}
	return s.MinLeadTime
}

func (s *OrderService) pickupCodeTTL() time.Duration {
	if s.PickupCodeTTL <= 0 {
		return DefaultPickupCodeTTL
	}
	return s.PickupCodeTTL
}

func (s *OrderService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return repo.Now()
}

// formatMoney renders minor units as "12.34 USD".
func formatMoney(cents int64, currency string) string {
	return decimal.New(cents, -2).StringFixed(2) + " " + currency
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
