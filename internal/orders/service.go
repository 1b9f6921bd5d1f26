package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// InventoryRestocker restores the stock reserved for an order.
type InventoryRestocker interface {
	Restock(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error)
}

// CouponReleaser gives back one coupon use.
type CouponReleaser interface {
	Release(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) (bool, error)
}

// Service drives orders through the fulfillment and payment state machines.
type Service interface {
	Get(ctx context.Context, id uuid.UUID, requester *Requester) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Order, error)
	AdvanceStatus(ctx context.Context, input AdvanceInput) (*models.Order, error)
	ApplyPaymentResult(ctx context.Context, input PaymentResultInput) (*models.Order, error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Requester scopes an operation to the customer who placed the order. A nil
// requester means an admin or system caller.
type Requester struct {
	UserID    *uuid.UUID
	SessionID string
}

// Owns reports whether the requester placed order.
func (r *Requester) Owns(order *models.Order) bool {
	if r == nil {
		return true
	}
	if r.UserID != nil && order.UserID != nil {
		return *r.UserID == *order.UserID
	}
	if order.UserID == nil && order.SessionID != nil {
		return r.SessionID != "" && r.SessionID == *order.SessionID
	}
	return false
}

// ListResult is one page of a customer's order history.
type ListResult struct {
	Orders     []models.Order
	NextCursor string
}

type CancelInput struct {
	OrderID   uuid.UUID
	Requester *Requester
	Actor     *outbox.ActorRef
	Reason    string
	// UnpaidOnly leaves orders whose payment already succeeded untouched.
	UnpaidOnly bool
}

type AdvanceInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Actor   *outbox.ActorRef
}

type PaymentResultInput struct {
	OrderID   uuid.UUID
	Status    enums.PaymentStatus
	Reference *string
	Actor     *outbox.ActorRef
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory InventoryRestocker
	coupons   CouponReleaser
	outbox    outbox.Emitter
	logg      *logger.Logger
	metrics   *metrics.PipelineMetrics
	nowFn     func() time.Time
}

// NewService builds the lifecycle manager.
func NewService(repo Repository, tx txRunner, inventory InventoryRestocker, coupons CouponReleaser, publisher outbox.Emitter, logg *logger.Logger, pm *metrics.PipelineMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory restocker required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon releaser required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		inventory: inventory,
		coupons:   coupons,
		outbox:    publisher,
		logg:      logg,
		metrics:   pm,
		nowFn:     time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, requester *Requester) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if !requester.Owns(order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// List pages the orders a signed-in customer placed, newest first.
func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListForUser(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, db.Classify(err, "list orders")
	}
	page := pagination.Paginate(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &ListResult{Orders: page.Items, NextCursor: page.NextCursor}, nil
}

// Cancel moves a pending or processing order to cancelled, restores its
// reserved stock and releases the coupon use it redeemed. Cancelling an
// already cancelled order returns it unchanged.
func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		result   *models.Order
		previous enums.OrderStatus
		changed  bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if !input.Requester.Owns(order) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == enums.OrderStatusCancelled {
			result = order
			return nil
		}
		if input.UnpaidOnly && (order.PaymentStatus == enums.PaymentStatusPaid || order.PaymentStatus == enums.PaymentStatusRefunded) {
			result = order
			return nil
		}
		if err := checkStatus(order.Status, enums.OrderStatusCancelled); err != nil {
			return err
		}

		now := s.nowFn().UTC()
		ok, err := repo.CompareAndSetStatus(ctx, order.ID, order.Status, enums.OrderStatusCancelled, map[string]any{"cancelled_at": now})
		if err != nil {
			return db.Classify(err, "cancel order")
		}
		if !ok {
			current, err := s.load(ctx, repo, order.ID)
			if err != nil {
				return err
			}
			if current.Status == enums.OrderStatusCancelled {
				result = current
				return nil
			}
			return checkStatus(current.Status, enums.OrderStatusCancelled)
		}

		if _, err := s.inventory.Restock(ctx, tx, order.ID); err != nil {
			return err
		}

		released := false
		if order.CouponID != nil {
			cleared, err := repo.ClearCouponRedemption(ctx, order.ID)
			if err != nil {
				return db.Classify(err, "clear coupon redemption")
			}
			if cleared {
				if released, err = s.coupons.Release(ctx, tx, *order.CouponID); err != nil {
					return err
				}
			}
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Data: payloads.OrderCancelledEvent{
				OrderID:        order.ID,
				OrderNumber:    order.OrderNumber,
				PreviousStatus: order.Status,
				CouponReleased: released,
				Reason:         input.Reason,
				CancelledAt:    now,
			},
		}); err != nil {
			return err
		}

		previous = order.Status
		changed = true
		result, err = s.load(ctx, repo, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.IncTransition("status", enums.OrderStatusCancelled.String())
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, result.ID.String()), map[string]any{
				"from":   previous.String(),
				"reason": input.Reason,
			})
			s.logg.Info(logCtx, "order.cancelled")
		}
	}
	return result, nil
}

// AdvanceStatus applies a fulfillment transition. Moving to cancelled goes
// through Cancel so stock and coupon usage are restored.
func (s *service) AdvanceStatus(ctx context.Context, input AdvanceInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Status == enums.OrderStatusCancelled {
		return s.Cancel(ctx, CancelInput{OrderID: input.OrderID, Actor: input.Actor, Reason: "admin"})
	}

	var (
		result  *models.Order
		from    enums.OrderStatus
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.Status == input.Status {
			result = order
			return nil
		}
		if err := checkStatus(order.Status, input.Status); err != nil {
			return err
		}

		updates := map[string]any{}
		now := s.nowFn().UTC()
		switch input.Status {
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
		}
		ok, err := repo.CompareAndSetStatus(ctx, order.ID, order.Status, input.Status, updates)
		if err != nil {
			return db.Classify(err, "update order status")
		}
		if !ok {
			current, err := s.load(ctx, repo, order.ID)
			if err != nil {
				return err
			}
			if current.Status == input.Status {
				result = current
				return nil
			}
			return pkgerrors.InvalidTransition("status", current.Status.String(), input.Status.String())
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				From:        order.Status,
				To:          input.Status,
			},
		}); err != nil {
			return err
		}
		from = order.Status
		changed = true
		result, err = s.load(ctx, repo, order.ID)
		return err
	})
	if err != nil {
		s.logRejected(ctx, input.OrderID, "status", input.Status.String(), err)
		return nil, err
	}
	if changed {
		s.metrics.IncTransition("status", input.Status.String())
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, result.ID.String()), map[string]any{
				"from": from.String(),
				"to":   input.Status.String(),
			})
			s.logg.Info(logCtx, "order.status_changed")
		}
	}
	return result, nil
}

// ApplyPaymentResult records a gateway outcome. Payment status moves
// independently of fulfillment status; a replayed result is a no-op.
func (s *service) ApplyPaymentResult(ctx context.Context, input PaymentResultInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Status == enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment result must be paid, failed or refunded")
	}

	var (
		result  *models.Order
		from    enums.PaymentStatus
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == input.Status {
			result = order
			return nil
		}
		if err := checkPayment(order.PaymentStatus, input.Status); err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Reference != nil {
			updates["payment_reference"] = *input.Reference
		}
		if input.Status == enums.PaymentStatusPaid {
			updates["paid_at"] = s.nowFn().UTC()
		}
		ok, err := repo.CompareAndSetPayment(ctx, order.ID, order.PaymentStatus, input.Status, updates)
		if err != nil {
			return db.Classify(err, "update payment status")
		}
		if !ok {
			current, err := s.load(ctx, repo, order.ID)
			if err != nil {
				return err
			}
			if current.PaymentStatus == input.Status {
				result = current
				return nil
			}
			return pkgerrors.InvalidTransition("payment_status", current.PaymentStatus.String(), input.Status.String())
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaymentUpdated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         input.Actor,
			Data: payloads.OrderPaymentUpdatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				From:        order.PaymentStatus,
				To:          input.Status,
				Reference:   input.Reference,
			},
		}); err != nil {
			return err
		}
		from = order.PaymentStatus
		changed = true
		result, err = s.load(ctx, repo, order.ID)
		return err
	})
	if err != nil {
		s.logRejected(ctx, input.OrderID, "payment_status", input.Status.String(), err)
		return nil, err
	}
	if changed {
		s.metrics.IncTransition("payment_status", input.Status.String())
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, result.ID.String()), map[string]any{
				"from": from.String(),
				"to":   input.Status.String(),
			})
			if input.Status == enums.PaymentStatusPaid && result.Status == enums.OrderStatusCancelled {
				s.logg.Warn(logCtx, "order.paid_after_cancel")
			} else {
				s.logg.Info(logCtx, "order.payment_updated")
			}
		}
	}
	return result, nil
}

// ExpireUnpaid cancels pending orders whose payment never succeeded and that
// were placed before cutoff. Orders that moved on in the meantime are skipped.
func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	candidates, err := s.repo.FindUnpaidBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, db.Classify(err, "list unpaid orders")
	}
	var (
		errs      error
		cancelled int
	)
	for _, order := range candidates {
		updated, err := s.Cancel(ctx, CancelInput{
			OrderID:    order.ID,
			Actor:      &outbox.ActorRef{Role: "system"},
			Reason:     "payment_timeout",
			UnpaidOnly: true,
		})
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeInvalidTransition) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if updated.Status == enums.OrderStatusCancelled {
			cancelled++
		}
	}
	return cancelled, errs
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, db.Classify(err, "load order")
	}
	return order, nil
}

func (s *service) logRejected(ctx context.Context, orderID uuid.UUID, field, to string, err error) {
	if s.logg == nil || !pkgerrors.Is(err, pkgerrors.CodeInvalidTransition) {
		return
	}
	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, orderID.String()), map[string]any{
		"field": field,
		"to":    to,
	})
	s.logg.Warn(logCtx, "order.transition_rejected")
}
