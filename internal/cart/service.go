package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
)

var (
	ErrUserIDRequired  = apperr.Validation("userId is required")
	ErrInvalidQuantity = apperr.Validation("quantity must be at least 1")
	ErrInvalidProduct  = apperr.Validation("productId is required")
)

const defaultLoadTimeout = 5 * time.Second

// Service fronts the cart repository with a read-through cache. Every
// mutation drops the cached cart of the affected user.
type Service struct {
	repo        Repository
	cache       Cache
	logger      *zap.Logger
	sfg         singleflight.Group
	loadTimeout time.Duration
}

func NewService(repo Repository, cache Cache, logger *zap.Logger) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, cache: cache, logger: logger, loadTimeout: defaultLoadTimeout}
}

// GetCart coalesces concurrent reads of one user's cart. The shared load
// runs detached from any single caller, so one cancelled request does not
// fail the others waiting on it.
func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	ch := s.sfg.DoChan(userID, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		return s.load(loadCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Cart), nil
	}
}

func (s *Service) load(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.cache.Get(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("cart cache get failed", zap.String("userId", userID), zap.Error(err))
	}

	// The generation must be read before the rows: an invalidation landing
	// during List then turns the Set below into a no-op.
	gen, genErr := s.cache.Generation(ctx, userID)
	if genErr != nil {
		s.logger.Warn("cart cache generation failed", zap.String("userId", userID), zap.Error(genErr))
	}

	items, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	c = newCart(userID, items)

	if genErr != nil {
		return c, nil
	}
	switch err := s.cache.Set(ctx, userID, gen, c); {
	case errors.Is(err, ErrStaleCart):
		s.logger.Debug("cart changed during load, not cached", zap.String("userId", userID))
	case err != nil:
		s.logger.Warn("cart cache set failed", zap.String("userId", userID), zap.Error(err))
	}
	return c, nil
}

func (s *Service) AddToCart(ctx context.Context, userID string, productID int64, quantity int) (Item, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Item{}, ErrUserIDRequired
	}
	if productID <= 0 {
		return Item{}, ErrInvalidProduct
	}
	if quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}

	it, err := s.repo.Add(ctx, userID, productID, quantity)
	if err != nil {
		return Item{}, err
	}
	s.Invalidate(userID)
	return it, nil
}

func (s *Service) UpdateCartItem(ctx context.Context, itemID int64, quantity int) (Item, error) {
	if quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	if itemID <= 0 {
		return Item{}, ErrItemNotFound
	}

	it, err := s.repo.UpdateQuantity(ctx, itemID, quantity)
	if err != nil {
		return Item{}, err
	}
	s.Invalidate(it.UserID)
	return it, nil
}

func (s *Service) RemoveCartItem(ctx context.Context, itemID int64) error {
	if itemID <= 0 {
		return ErrItemNotFound
	}

	it, err := s.repo.Remove(ctx, itemID)
	if err != nil {
		return err
	}
	s.Invalidate(it.UserID)
	return nil
}

// ClearCart succeeds on an empty cart.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}

	n, err := s.repo.Clear(ctx, userID)
	if err != nil {
		return err
	}
	s.logger.Debug("cart cleared", zap.String("userId", userID), zap.Int64("removed", n))
	s.Invalidate(userID)
	return nil
}

// Invalidate drops the cached cart and detaches any in-flight load, so
// reads that start afterwards go to the repository. Failures are logged; a
// stale entry expires with its TTL.
func (s *Service) Invalidate(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cart cache invalidate failed", zap.String("userId", userID), zap.Error(err))
	}
	s.sfg.Forget(userID)
}
