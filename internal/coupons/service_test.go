package coupons

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func newMemoryService(t *testing.T, now time.Time) (Service, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	svc, err := NewService(repo, nil, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo
}

func TestNewServiceRequiresRepo(t *testing.T) {
	if _, err := NewService(nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil repository")
	}
}

func TestValidateNormalizesCodeAndRejectsUnknown(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t, time.Now())

	created, err := svc.Create(ctx, &models.Coupon{Code: " welcome ", Type: enums.CouponTypeFixed, Value: decimal.NewFromInt(500), IsActive: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Code != "WELCOME" {
		t.Fatalf("expected normalized code, got %q", created.Code)
	}

	got, err := svc.Validate(ctx, nil, "Welcome", 100)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("validated a different coupon")
	}

	_, err = svc.Validate(ctx, nil, "nope", 100)
	if reason, ok := pkgerrors.CouponRejectionReason(err); !ok || reason != string(enums.CouponRejectionNotFound) {
		t.Fatalf("expected not_found rejection, got %v", err)
	}

	if _, err := svc.Create(ctx, &models.Coupon{Code: "WELCOME", Type: enums.CouponTypeFixed, Value: decimal.NewFromInt(1)}); !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
}

func TestRedeemRespectsLimitUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	svc, repo := newMemoryService(t, time.Now())
	limit := 1
	coupon, err := svc.Create(ctx, &models.Coupon{Code: "ONCE", Type: enums.CouponTypeFixed, Value: decimal.NewFromInt(100), IsActive: true, UsageLimit: &limit})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	var succeeded, rejected int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := svc.Redeem(ctx, nil, coupon)
			switch {
			case err == nil:
				atomic.AddInt32(&succeeded, 1)
			case pkgerrors.Is(err, pkgerrors.CodeCouponRejected):
				atomic.AddInt32(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || rejected != attempts-1 {
		t.Fatalf("expected exactly one redemption, got %d ok / %d rejected", succeeded, rejected)
	}
	stored, _ := repo.FindByID(ctx, coupon.ID)
	if stored.UsageCount != 1 {
		t.Fatalf("expected usage 1, got %d", stored.UsageCount)
	}
}

func TestReleaseNeverGoesBelowZeroAndToleratesDeletion(t *testing.T) {
	ctx := context.Background()
	svc, repo := newMemoryService(t, time.Now())
	coupon, err := svc.Create(ctx, &models.Coupon{Code: "BACK", Type: enums.CouponTypeFixed, Value: decimal.NewFromInt(100), IsActive: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Redeem(ctx, nil, coupon); err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	if ok, err := svc.Release(ctx, nil, coupon.ID); err != nil || !ok {
		t.Fatalf("expected release to succeed, ok=%v err=%v", ok, err)
	}
	if ok, _ := svc.Release(ctx, nil, coupon.ID); ok {
		t.Fatalf("release below zero must be a no-op")
	}

	repo.Delete(coupon.ID)
	if ok, err := svc.Release(ctx, nil, coupon.ID); err != nil || ok {
		t.Fatalf("release of deleted coupon should be a silent no-op, ok=%v err=%v", ok, err)
	}
}
