package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

const defaultMaxQuantityPerItem = 99

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	GetProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error)
}

// Service exposes cart operations. Carts are single-owner and need no locking
// beyond the transaction wrapping each call.
type Service interface {
	Get(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, input ItemInput) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, owner Owner, input ItemInput) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID, variantID string) (*models.Cart, error)
	Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error
	MergeOnLogin(ctx context.Context, sessionID string, userID uuid.UUID) (*MergeResult, error)
}

// ItemInput addresses one cart line. For updates a zero quantity removes it.
type ItemInput struct {
	ProductID uuid.UUID
	VariantID string
	Quantity  int
}

// MergeResult reports what a login merge did.
type MergeResult struct {
	Cart    *models.Cart
	Merged  int
	Skipped int
}

// Options tunes the service. Zero values take defaults.
type Options struct {
	MaxQuantityPerItem int
	Events             outbox.Emitter
	Logger             *logger.Logger
	Metrics            *metrics.PipelineMetrics
	Now                func() time.Time
}

type service struct {
	repo       CartRepository
	tx         txRunner
	products   productLoader
	maxPerItem int
	events     outbox.Emitter
	logg       *logger.Logger
	metrics    *metrics.PipelineMetrics
	nowFn      func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader, opts Options) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if opts.MaxQuantityPerItem <= 0 {
		opts.MaxQuantityPerItem = defaultMaxQuantityPerItem
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		repo:       repo,
		tx:         tx,
		products:   products,
		maxPerItem: opts.MaxQuantityPerItem,
		events:     opts.Events,
		logg:       opts.Logger,
		metrics:    opts.Metrics,
		nowFn:      opts.Now,
	}, nil
}

// Get returns the owner's cart. An owner without a cart gets an empty,
// unsaved one.
func (s *service) Get(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(owner), nil
		}
		return nil, db.Classify(err, "load cart")
	}
	return cart, nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, input ItemInput) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := s.purchasable(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		cart, err := s.getOrCreate(ctx, repo, owner)
		if err != nil {
			return err
		}

		existing := findItem(cart, input.ProductID, input.VariantID)
		qty := input.Quantity
		if existing != nil {
			qty += existing.Quantity
		}
		if err := s.checkQuantity(product, qty); err != nil {
			return err
		}

		unit := pricing.EffectivePrice(*product, s.nowFn())
		if existing != nil {
			existing.Quantity = qty
			existing.UnitPriceCents = unit
			err = repo.UpdateItem(ctx, existing)
		} else {
			err = repo.CreateItem(ctx, &models.CartItem{
				CartID:         cart.ID,
				ProductID:      input.ProductID,
				VariantID:      keyOf(input.ProductID, input.VariantID).variantID,
				Quantity:       qty,
				UnitPriceCents: unit,
			})
		}
		if err != nil {
			return db.Classify(err, "save cart item")
		}
		result, err = repo.FindByID(ctx, cart.ID)
		return db.Classify(err, "reload cart")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, owner Owner, input ItemInput) (*models.Cart, error) {
	if input.Quantity == 0 {
		return s.RemoveItem(ctx, owner, input.ProductID, input.VariantID)
	}
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, item, err := s.loadItem(ctx, repo, owner, input.ProductID, input.VariantID)
		if err != nil {
			return err
		}
		product, err := s.purchasable(ctx, tx, input.ProductID)
		if err != nil {
			return err
		}
		if err := s.checkQuantity(product, input.Quantity); err != nil {
			return err
		}
		item.Quantity = input.Quantity
		item.UnitPriceCents = pricing.EffectivePrice(*product, s.nowFn())
		if err := repo.UpdateItem(ctx, item); err != nil {
			return db.Classify(err, "update cart item")
		}
		result, err = repo.FindByID(ctx, cart.ID)
		return db.Classify(err, "reload cart")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID, variantID string) (*models.Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	var result *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, item, err := s.loadItem(ctx, repo, owner, productID, variantID)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return db.Classify(err, "delete cart item")
		}
		result, err = repo.FindByID(ctx, cart.ID)
		return db.Classify(err, "reload cart")
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Clear empties a cart inside the caller's transaction. Checkout uses it once
// the order is persisted.
func (s *service) Clear(ctx context.Context, tx *gorm.DB, cartID uuid.UUID) error {
	if err := s.repo.WithTx(tx).ClearItems(ctx, cartID); err != nil {
		return db.Classify(err, "clear cart")
	}
	return nil
}

// MergeOnLogin folds the guest cart for sessionID into the user's cart and
// deletes the guest cart. Lines are matched on (product, variant); summed
// quantities are capped by the per-item maximum and by what stock allows, but
// a merge never lowers a quantity the user already had. A missing or empty
// guest cart makes the call a no-op, so retries are safe.
func (s *service) MergeOnLogin(ctx context.Context, sessionID string, userID uuid.UUID) (*MergeResult, error) {
	guestOwner := GuestOwner(sessionID)
	if err := guestOwner.Validate(); err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	userOwner := UserOwner(userID)

	result := &MergeResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		guest, err := repo.FindByOwner(ctx, guestOwner)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return db.Classify(err, "load guest cart")
		}
		if guest == nil {
			result.Cart, err = s.findOrEmpty(ctx, repo, userOwner)
			return err
		}
		if len(guest.Items) == 0 {
			if err := repo.Delete(ctx, guest.ID); err != nil {
				return db.Classify(err, "delete guest cart")
			}
			result.Cart, err = s.findOrEmpty(ctx, repo, userOwner)
			return err
		}

		target, err := s.getOrCreate(ctx, repo, userOwner)
		if err != nil {
			return err
		}
		lines := append([]models.CartItem(nil), guest.Items...)
		sort.Slice(lines, func(i, j int) bool {
			if lines[i].ProductID != lines[j].ProductID {
				return lines[i].ProductID.String() < lines[j].ProductID.String()
			}
			return lines[i].VariantID < lines[j].VariantID
		})

		for _, line := range lines {
			merged, err := s.mergeLine(ctx, tx, repo, target, line)
			if err != nil {
				return err
			}
			if merged {
				result.Merged++
			} else {
				result.Skipped++
			}
		}

		if err := repo.Delete(ctx, guest.ID); err != nil {
			return db.Classify(err, "delete guest cart")
		}
		result.Cart, err = repo.FindByID(ctx, target.ID)
		if err != nil {
			return db.Classify(err, "reload cart")
		}
		if s.events == nil {
			return nil
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCartMerged,
			AggregateType: enums.AggregateCart,
			AggregateID:   target.ID,
			Actor:         &outbox.ActorRef{UserID: stringPtr(userID.String()), SessionID: stringPtr(guestOwner.SessionID)},
			Data: payloads.CartMergedEvent{
				CartID:      target.ID,
				UserID:      userID,
				SessionID:   guestOwner.SessionID,
				MergedLines: result.Merged,
				Skipped:     result.Skipped,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Merged > 0 || result.Skipped > 0 {
		s.metrics.IncMerge()
		if s.logg != nil {
			logCtx := s.logg.WithFields(s.logg.WithSessionID(s.logg.WithUserID(ctx, userID.String()), guestOwner.SessionID), map[string]any{
				"merged":  result.Merged,
				"skipped": result.Skipped,
			})
			s.logg.Info(logCtx, "cart.merged")
		}
	}
	return result, nil
}

func (s *service) mergeLine(ctx context.Context, tx *gorm.DB, repo CartRepository, target *models.Cart, line models.CartItem) (bool, error) {
	product, err := s.products.GetProduct(ctx, tx, line.ProductID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	if !product.IsActive {
		return false, nil
	}

	limit := s.quantityCap(product)
	existing := findItem(target, line.ProductID, line.VariantID)
	if existing == nil {
		qty := min(line.Quantity, limit)
		if qty <= 0 {
			return false, nil
		}
		item := &models.CartItem{
			CartID:         target.ID,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Quantity:       qty,
			UnitPriceCents: pricing.EffectivePrice(*product, s.nowFn()),
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return false, db.Classify(err, "merge cart item")
		}
		target.Items = append(target.Items, *item)
		return true, nil
	}

	qty := max(min(existing.Quantity+line.Quantity, limit), existing.Quantity)
	if qty == existing.Quantity {
		return false, nil
	}
	existing.Quantity = qty
	existing.UnitPriceCents = pricing.EffectivePrice(*product, s.nowFn())
	if err := repo.UpdateItem(ctx, existing); err != nil {
		return false, db.Classify(err, "merge cart item")
	}
	return true, nil
}

func (s *service) purchasable(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
			WithDetails(map[string]any{"product_id": productID.String()})
	}
	return product, nil
}

// quantityCap is the most a single line may hold for product.
func (s *service) quantityCap(product *models.Product) int {
	limit := s.maxPerItem
	if product.TrackQuantity {
		limit = min(limit, max(product.Stock-product.StockFloor(), 0))
	}
	return limit
}

func (s *service) checkQuantity(product *models.Product, qty int) error {
	if qty > s.maxPerItem {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per item maximum").
			WithDetails(map[string]any{"max_quantity": s.maxPerItem})
	}
	if qty > s.quantityCap(product) {
		return pkgerrors.OutOfStock(product.ID.String())
	}
	return nil
}

func (s *service) getOrCreate(ctx context.Context, repo CartRepository, owner Owner) (*models.Cart, error) {
	cart, err := repo.FindByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, db.Classify(err, "load cart")
	}
	cart = emptyCart(owner)
	if err := repo.Create(ctx, cart); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorageConflict, err, "cart created concurrently")
		}
		return nil, db.Classify(err, "create cart")
	}
	return cart, nil
}

func (s *service) findOrEmpty(ctx context.Context, repo CartRepository, owner Owner) (*models.Cart, error) {
	cart, err := repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(owner), nil
		}
		return nil, db.Classify(err, "load cart")
	}
	return cart, nil
}

func (s *service) loadItem(ctx context.Context, repo CartRepository, owner Owner, productID uuid.UUID, variantID string) (*models.Cart, *models.CartItem, error) {
	cart, err := repo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, db.Classify(err, "load cart")
	}
	item := findItem(cart, productID, variantID)
	if item == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return cart, item, nil
}

func findItem(cart *models.Cart, productID uuid.UUID, variantID string) *models.CartItem {
	want := keyOf(productID, variantID)
	for i := range cart.Items {
		if keyOf(cart.Items[i].ProductID, cart.Items[i].VariantID) == want {
			return &cart.Items[i]
		}
	}
	return nil
}

func emptyCart(owner Owner) *models.Cart {
	cart := &models.Cart{Items: []models.CartItem{}}
	if owner.IsGuest() {
		cart.SessionID = stringPtr(owner.SessionID)
	} else {
		id := *owner.UserID
		cart.UserID = &id
	}
	return cart
}

func stringPtr(v string) *string {
	return &v
}
