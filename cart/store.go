package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/bulls/metrics"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/notify"
)

// ErrItemNotFound is returned when a quantity update names a product that
// is not in the cart.
var ErrItemNotFound = errors.New("cart item not found")

// Store is the cart of one session. Storage is the only source of truth:
// every call re-reads it, so nothing is cached between calls.
type Store struct {
	mu       *sync.Mutex
	storage  Storage
	notifier notify.Notifier
	metrics  *metrics.Registry
	logger   *zap.Logger
}

func NewStore(storage Storage, notifier notify.Notifier, metrics *metrics.Registry, logger *zap.Logger) *Store {
	return newStore(new(sync.Mutex), storage, notifier, metrics, logger)
}

func newStore(mu *sync.Mutex, storage Storage, notifier notify.Notifier, metrics *metrics.Registry, logger *zap.Logger) *Store {
	if notifier == nil {
		notifier = notify.Nop
	}
	return &Store{
		mu:       mu,
		storage:  storage,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetCart never fails: unreadable storage reads as an empty cart.
func (s *Store) GetCart(ctx context.Context) *models.Cart {
	cart, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("Failed to read cart, using empty cart", zap.Error(err))
		return models.NewCart()
	}
	return cart
}

func (s *Store) GetCartItemCount(ctx context.Context) int {
	return s.GetCart(ctx).ItemCount()
}

func (s *Store) GetCartTotal(ctx context.Context) float64 {
	return s.GetCart(ctx).Total
}

// AddToCart adds quantity units of product, merging with an existing line.
func (s *Store) AddToCart(ctx context.Context, product *models.Product, quantity int) error {
	if product == nil || strings.TrimSpace(product.ID) == "" {
		return models.NewValidationError("id", "product id is required")
	}
	if quantity < 1 {
		return models.NewValidationError("quantity", "must be at least 1")
	}

	return s.mutate(ctx, "add", func(cart *models.Cart) error {
		if i := cart.IndexOf(product.ID); i >= 0 {
			cart.Items[i].Quantity = addQuantity(cart.Items[i].Quantity, quantity)
			return nil
		}

		name := strings.TrimSpace(product.Model)
		if name == "" {
			name = UnknownProduct
		}
		cart.Items = append(cart.Items, models.CartLineItem{
			ID:       product.ID,
			Model:    name,
			Price:    unitPrice(product.Price),
			Quantity: quantity,
		})
		return nil
	})
}

func (s *Store) UpdateCartItemQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return models.NewValidationError("quantity", "must be at least 1")
	}

	return s.mutate(ctx, "update", func(cart *models.Cart) error {
		i := cart.IndexOf(productID)
		if i < 0 {
			return ErrItemNotFound
		}
		cart.Items[i].Quantity = quantity
		return nil
	})
}

// RemoveFromCart succeeds whether or not the product was in the cart.
func (s *Store) RemoveFromCart(ctx context.Context, productID string) error {
	return s.mutate(ctx, "remove", func(cart *models.Cart) error {
		items := cart.Items[:0]
		for _, item := range cart.Items {
			if item.ID != productID {
				items = append(items, item)
			}
		}
		cart.Items = items
		return nil
	})
}

func (s *Store) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, "clear", func(cart *models.Cart) error {
		cart.Items = []models.CartLineItem{}
		return nil
	})
}

func (s *Store) load(ctx context.Context) (*models.Cart, error) {
	raw, err := s.storage.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Heal(raw), nil
}

// mutate applies fn to a freshly read cart and persists the result. The
// change is announced only after the write succeeded and the lock is gone.
func (s *Store) mutate(ctx context.Context, op string, fn func(*models.Cart) error) error {
	if err := s.apply(ctx, fn); err != nil {
		return err
	}
	s.metrics.CartMutation(op)
	s.notifier.Publish()
	return nil
}

func (s *Store) apply(ctx context.Context, fn func(*models.Cart) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cart, err := s.load(ctx)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.Error(err))
		return fmt.Errorf("load cart: %w", err)
	}
	if err = fn(cart); err != nil {
		return err
	}
	cart.Recalculate()

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err = s.storage.Save(ctx, data); err != nil {
		s.logger.Error("Failed to save cart", zap.Error(err))
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}
