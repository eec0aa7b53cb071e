package service

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
)

type CartService struct {
	repo  repository.CartRepository
	cache cache.SnapshotCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.SnapshotCache) *CartService {
	return &CartService{
		repo:  repo,
		cache: cache,
	}
}

// Snapshot returns the caller's cart joined against current catalog prices.
// Served from cache when possible; concurrent misses for the same caller are
// collapsed via singleflight.
func (s *CartService) Snapshot(ctx context.Context, userRef string) (*domain.CartSnapshot, error) {
	v, err, _ := s.sfg.Do(userRef, func() (interface{}, error) {
		snap, err := s.cache.Get(ctx, userRef)
		if err == nil {
			return snap, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v \n", err) // log cache error but continue
		}

		snap, errGet := s.repo.GetCartSnapshot(ctx, userRef)
		if errGet != nil {
			return nil, errGet
		}

		// Backfill before returning, so the entry cannot land after a
		// concurrent mutation has already invalidated it.
		if errSet := s.cache.Set(ctx, userRef, snap); errSet != nil {
			log.Printf("cache set error: %v \n", errSet)
		}

		return snap, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.CartSnapshot), nil
}

// AddItem increments the caller's (cart, sku) line item by qty and returns
// the resulting quantity. qty must be positive.
func (s *CartService) AddItem(ctx context.Context, userRef, sku string, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	newQty, errAdd := s.repo.AddCartItem(ctx, userRef, sku, qty)
	if errAdd != nil {
		log.Printf("repo add item error: %v \n", errAdd)
		return 0, errAdd
	}

	s.invalidateCache(userRef)
	return newQty, nil
}

// SetItem overwrites the line item quantity; zero deletes the row. Safe to
// retry: applying the same set twice lands on the same state.
func (s *CartService) SetItem(ctx context.Context, userRef, sku string, qty int) (domain.SetOutcome, error) {
	if qty < 0 {
		return "", ErrInvalidQuantity
	}

	outcome, errSet := s.repo.SetCartItem(ctx, userRef, sku, qty)
	if errSet != nil {
		log.Printf("repo set item error: %v \n", errSet)
		return "", errSet
	}

	if outcome != domain.SetNoop {
		s.invalidateCache(userRef)
	}
	return outcome, nil
}

// RemoveItem deletes the line item and reports whether a row was removed.
func (s *CartService) RemoveItem(ctx context.Context, userRef, sku string) (bool, error) {
	removed, errRemove := s.repo.RemoveCartItem(ctx, userRef, sku)
	if errRemove != nil {
		log.Printf("repo remove item error: %v \n", errRemove)
		return false, errRemove
	}

	if removed {
		s.invalidateCache(userRef)
	}
	return removed, nil
}

func (s *CartService) invalidateCache(userRef string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userRef); err != nil {
		log.Printf("cache invalidate error: %v \n", err)
	}
}
