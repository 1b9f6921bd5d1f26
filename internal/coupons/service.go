package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var hundredPercent = decimal.NewFromInt(100)

// Service validates, redeems and releases coupons. Methods taking a tx join
// the caller's transaction; a nil tx uses the repository's own handle.
type Service interface {
	Validate(ctx context.Context, tx *gorm.DB, code string, subtotalCents int64) (*models.Coupon, error)
	Redeem(ctx context.Context, tx *gorm.DB, coupon *models.Coupon) error
	Release(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) (bool, error)
	Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error)
}

type service struct {
	repo  Repository
	logg  *logger.Logger
	nowFn func() time.Time
}

// NewService wires the coupon service.
func NewService(repo Repository, logg *logger.Logger, now func() time.Time) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if now == nil {
		now = time.Now
	}
	return &service{repo: repo, logg: logg, nowFn: now}, nil
}

// Validate loads the coupon by normalized code and runs the rule chain. It
// never changes usage.
func (s *service) Validate(ctx context.Context, tx *gorm.DB, code string, subtotalCents int64) (*models.Coupon, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, Rejected(enums.CouponRejectionNotFound, code)
	}
	coupon, err := s.repo.WithTx(tx).FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, Rejected(enums.CouponRejectionNotFound, normalized)
		}
		return nil, db.Classify(err, "load coupon")
	}
	if reason := Check(coupon, subtotalCents, s.nowFn()); reason != "" {
		return nil, Rejected(reason, normalized)
	}
	return coupon, nil
}

// Redeem increments usage with the conditional update. Losing the race for
// the last use is reported as LimitReached.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, coupon *models.Coupon) error {
	if coupon == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "coupon required")
	}
	ok, err := s.repo.WithTx(tx).IncrementUsage(ctx, coupon.ID)
	if err != nil {
		return db.Classify(err, "redeem coupon")
	}
	if !ok {
		return Rejected(enums.CouponRejectionLimitReached, coupon.Code)
	}
	return nil
}

// Release gives back one use. It reports false when there was nothing to
// release, including when the coupon no longer exists.
func (s *service) Release(ctx context.Context, tx *gorm.DB, couponID uuid.UUID) (bool, error) {
	ok, err := s.repo.WithTx(tx).DecrementUsage(ctx, couponID)
	if err != nil {
		return false, db.Classify(err, "release coupon")
	}
	if !ok && s.logg != nil {
		logCtx := s.logg.WithField(ctx, "coupon_id", couponID.String())
		s.logg.Warn(logCtx, "coupon.release_skipped")
	}
	return ok, nil
}

func (s *service) Create(ctx context.Context, coupon *models.Coupon) (*models.Coupon, error) {
	if err := ValidateShape(coupon); err != nil {
		return nil, err
	}
	coupon.Code = NormalizeCode(coupon.Code)
	if err := s.repo.Create(ctx, coupon); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "coupon code already exists")
		}
		return nil, db.Classify(err, "create coupon")
	}
	return coupon, nil
}
