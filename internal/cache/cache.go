package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_storefront/internal/domain"
)

type SnapshotCache interface {
	Get(ctx context.Context, userRef string) (*domain.CartSnapshot, error)
	Set(ctx context.Context, userRef string, snap *domain.CartSnapshot) error
	Delete(ctx context.Context, userRef string) error
}

var ErrCacheMiss = errors.New("cache miss")
