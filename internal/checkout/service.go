package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout/helpers"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const maxAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalog interface {
	GetProducts(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	StoreConfig(ctx context.Context) (pricing.StoreConfig, error)
}

type couponRedeemer interface {
	Validate(ctx context.Context, tx *gorm.DB, code string, subtotalCents int64) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, coupon *models.Coupon) error
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, requests []inventory.Request) error
}

type cartClearer interface {
	Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
}

// Service turns a cart into an order in one transaction.
type Service interface {
	Execute(ctx context.Context, input Input) (*models.Order, error)
}

// Input is a checkout request. BillingAddress defaults to the shipping
// address.
type Input struct {
	Owner           cart.Owner
	ShippingAddress types.Address
	BillingAddress  *types.Address
	PaymentMethod   enums.PaymentMethod
	CouponCode      *string
}

// Deps groups the collaborators of the checkout service.
type Deps struct {
	Tx           txRunner
	Carts        cart.CartRepository
	CartService  cartClearer
	Orders       orders.Repository
	Catalog      catalog
	Coupons      couponRedeemer
	Inventory    reservationRunner
	Outbox       outbox.Emitter
	Logger       *logger.Logger
	Metrics      *metrics.PipelineMetrics
	NumberPrefix string
	Now          func() time.Time
}

type service struct {
	deps Deps
}

// NewService builds the checkout service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case deps.CartService == nil:
		return nil, fmt.Errorf("cart service required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog required")
	case deps.Coupons == nil:
		return nil, fmt.Errorf("coupon service required")
	case deps.Inventory == nil:
		return nil, fmt.Errorf("inventory service required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{deps: deps}, nil
}

// Execute runs the commit protocol. Every step shares one transaction, so a
// failure at any point leaves no order, no stock change and no coupon use.
// Transient storage conflicts are retried from the start.
func (s *service) Execute(ctx context.Context, input Input) (*models.Order, error) {
	if err := input.Owner.Validate(); err != nil {
		return nil, err
	}
	if err := helpers.ValidatePaymentMethod(input.PaymentMethod); err != nil {
		s.deps.Metrics.IncCheckout("invalid")
		return nil, err
	}
	shipping, billing, err := helpers.NormalizeAddresses(input.ShippingAddress, input.BillingAddress)
	if err != nil {
		s.deps.Metrics.IncCheckout("invalid")
		return nil, err
	}

	var order *models.Order
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		order, err = s.attempt(ctx, input, shipping, billing)
		if err == nil || !pkgerrors.Is(err, pkgerrors.CodeStorageConflict) || attempt == maxAttempts {
			break
		}
		if s.deps.Logger != nil {
			s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "attempt", attempt), "checkout.retry")
		}
	}

	s.deps.Metrics.IncCheckout(outcome(err))
	if err != nil {
		s.logFailure(ctx, err)
		return nil, err
	}
	if s.deps.Logger != nil {
		logCtx := s.deps.Logger.WithFields(s.deps.Logger.WithOrderID(ctx, order.ID.String()), map[string]any{
			"order_number": order.OrderNumber,
			"total_cents":  order.TotalCents,
			"items":        len(order.Items),
		})
		s.deps.Logger.Info(logCtx, "checkout.committed")
	}
	return order, nil
}

func (s *service) attempt(ctx context.Context, input Input, shipping, billing types.Address) (*models.Order, error) {
	var created *models.Order
	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRecord, err := s.deps.Carts.WithTx(tx).FindByOwner(ctx, input.Owner)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
			}
			return db.Classify(err, "load cart")
		}
		if len(cartRecord.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		products, err := s.deps.Catalog.GetProducts(ctx, tx, helpers.ProductIDs(cartRecord.Items))
		if err != nil {
			return err
		}
		lines, err := helpers.BuildLines(cartRecord.Items, products)
		if err != nil {
			return err
		}
		store, err := s.deps.Catalog.StoreConfig(ctx)
		if err != nil {
			return err
		}
		now := s.deps.Now()

		priced, err := pricing.Calculate(pricing.Input{Lines: lines, Store: store, At: now})
		if err != nil {
			return err
		}

		var coupon *models.Coupon
		if input.CouponCode != nil && strings.TrimSpace(*input.CouponCode) != "" {
			coupon, err = s.deps.Coupons.Validate(ctx, tx, *input.CouponCode, priced.SubtotalCents)
			if err != nil {
				return err
			}
			priced, err = pricing.Calculate(pricing.Input{Lines: lines, Coupon: coupon, Store: store, At: now})
			if err != nil {
				return err
			}
		}

		orderID := uuid.New()
		if err := s.deps.Inventory.Reserve(ctx, tx, orderID, helpers.ReservationRequests(priced.Lines)); err != nil {
			return err
		}
		if coupon != nil {
			if err := s.deps.Coupons.Redeem(ctx, tx, coupon); err != nil {
				return err
			}
		}

		number, err := NewOrderNumber(s.deps.NumberPrefix, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order := &models.Order{
			ID:              orderID,
			OrderNumber:     number,
			UserID:          input.Owner.UserID,
			Status:          enums.OrderStatusPending,
			PaymentStatus:   enums.PaymentStatusPending,
			PaymentMethod:   input.PaymentMethod,
			ShippingAddress: shipping,
			BillingAddress:  billing,
			Currency:        priced.Currency,
			SubtotalCents:   priced.SubtotalCents,
			DiscountCents:   priced.DiscountCents,
			TaxCents:        priced.TaxCents,
			ShippingCents:   priced.ShippingCents,
			TotalCents:      priced.TotalCents,
			Items:           helpers.OrderItems(priced.Lines),
		}
		if input.Owner.IsGuest() {
			session := input.Owner.SessionID
			order.SessionID = &session
		}
		if coupon != nil {
			couponID, code := coupon.ID, coupon.Code
			order.CouponID = &couponID
			order.CouponCode = &code
			order.CouponRedeemedByOrder = true
		}
		if err := s.deps.Orders.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeStorageConflict, err, "order number collision")
			}
			return db.Classify(err, "create order")
		}
		if err := s.deps.CartService.Clear(ctx, tx, cartRecord.ID); err != nil {
			return err
		}

		if err := s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorFor(input.Owner),
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				UserID:        order.UserID,
				TotalCents:    order.TotalCents,
				Currency:      order.Currency,
				CouponCode:    order.CouponCode,
				PaymentMethod: order.PaymentMethod,
				ItemCount:     len(order.Items),
			},
		}); err != nil {
			return err
		}

		created, err = s.deps.Orders.WithTx(tx).FindByID(ctx, order.ID)
		return db.Classify(err, "reload order")
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) logFailure(ctx context.Context, err error) {
	logg := s.deps.Logger
	if logg == nil {
		return
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() == pkgerrors.CodeInternal || typed.Code() == pkgerrors.CodeStorageConflict {
		logg.Error(ctx, "checkout.failed", err)
		return
	}
	logg.Info(logg.WithField(ctx, "code", string(typed.Code())), "checkout.rejected")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case pkgerrors.Is(err, pkgerrors.CodeOutOfStock):
		return "out_of_stock"
	case pkgerrors.Is(err, pkgerrors.CodeCouponRejected):
		return "coupon_rejected"
	case pkgerrors.Is(err, pkgerrors.CodeValidation), pkgerrors.Is(err, pkgerrors.CodeNotFound):
		return "invalid"
	case pkgerrors.Is(err, pkgerrors.CodeStorageConflict):
		return "conflict"
	default:
		return "error"
	}
}

func actorFor(owner cart.Owner) *outbox.ActorRef {
	if owner.IsGuest() {
		session := owner.SessionID
		return &outbox.ActorRef{SessionID: &session, Role: "guest"}
	}
	user := owner.UserID.String()
	return &outbox.ActorRef{UserID: &user, Role: "customer"}
}
