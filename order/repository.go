package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gofalre.io/bulls/docstore"
	"gofalre.io/bulls/driver"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/models/enum"
)

// Collection is the document collection orders live in.
const Collection = "orders"

const cacheTTL = 30 * time.Minute

var ErrNotFound = errors.New("order not found")

var _ Repository = (*repository)(nil)

type Repository interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Get(ctx context.Context, orderID string) (*models.Order, error)
	// List returns every order, newest first.
	List(ctx context.Context) ([]*models.Order, error)
	ListByCustomer(ctx context.Context, email string) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status enum.OrderStatus) error
	Update(ctx context.Context, orderID string, fields map[string]any) error
}

type repository struct {
	store  docstore.Store
	cache  driver.Cache
	logger *zap.Logger
}

func NewRepository(store docstore.Store, cache driver.Cache, logger *zap.Logger) Repository {
	if cache == nil {
		cache = driver.NopCache{}
	}
	return &repository{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	data, err := toDocument(order)
	if err != nil {
		return nil, err
	}

	doc, err := r.store.Create(ctx, Collection, data)
	if err != nil {
		r.logger.Error("Failed to create order", zap.Error(err))
		return nil, err
	}

	created, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}

	// 更新快取
	if err := r.cache.Set(ctx, orderKey(created.ID), created, cacheTTL); err != nil {
		r.logger.Warn("Failed to cache order", zap.Error(err))
	}

	return created, nil
}

func (r *repository) Get(ctx context.Context, orderID string) (*models.Order, error) {
	cacheKey := orderKey(orderID)
	var order models.Order

	// 嘗試從快取中獲取
	found, err := r.cache.Get(ctx, cacheKey, &order)
	if err != nil {
		r.logger.Warn("Failed to get order from cache", zap.Error(err))
	}
	if found {
		return &order, nil
	}

	doc, err := r.store.Get(ctx, Collection, orderID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get order", zap.String("order_id", orderID), zap.Error(err))
		return nil, err
	}

	o, err := fromDocument(doc)
	if err != nil {
		return nil, err
	}

	// 更新快取
	if err := r.cache.Set(ctx, cacheKey, o, cacheTTL); err != nil {
		r.logger.Warn("Failed to cache order", zap.Error(err))
	}

	return o, nil
}

func (r *repository) List(ctx context.Context) ([]*models.Order, error) {
	return r.list(ctx, docstore.Filter{NewestFirst: true})
}

func (r *repository) ListByCustomer(ctx context.Context, email string) ([]*models.Order, error) {
	return r.list(ctx, docstore.Filter{Field: "email", Equals: email, NewestFirst: true})
}

func (r *repository) list(ctx context.Context, filter docstore.Filter) ([]*models.Order, error) {
	docs, err := r.store.List(ctx, Collection, filter)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}

	orders := make([]*models.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := fromDocument(doc)
		if err != nil {
			r.logger.Warn("Skipping unreadable order", zap.String("order_id", doc.ID), zap.Error(err))
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID string, status enum.OrderStatus) error {
	if !status.Valid() {
		return models.NewValidationError("status", fmt.Sprintf("unknown order status %q", status))
	}
	return r.Update(ctx, orderID, map[string]any{"status": string(status)})
}

// Update patches the customer details, notes or status of an order. Any
// other field, or a value of the wrong type, is rejected before the write.
func (r *repository) Update(ctx context.Context, orderID string, fields map[string]any) error {
	patch, err := models.NormalizeOrderPatch(fields)
	if err != nil {
		return err
	}

	err = r.store.Patch(ctx, Collection, orderID, patch)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to update order", zap.String("order_id", orderID), zap.Error(err))
		return err
	}

	// 使相關的快取失效
	if err := r.cache.Delete(ctx, orderKey(orderID)); err != nil {
		r.logger.Warn("Failed to invalidate order cache", zap.Error(err), zap.String("order_id", orderID))
	}
	return nil
}

func toDocument(order *models.Order) (map[string]any, error) {
	b, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}
	var data map[string]any
	if err = json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}
	delete(data, "id")
	return data, nil
}

func fromDocument(doc *docstore.Document) (*models.Order, error) {
	b, err := json.Marshal(doc.Timestamps())
	if err != nil {
		return nil, fmt.Errorf("decode order %s: %w", doc.ID, err)
	}
	var o models.Order
	if err = json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("decode order %s: %w", doc.ID, err)
	}
	o.ID = doc.ID
	return &o, nil
}

func orderKey(orderID string) string {
	return fmt.Sprintf("order:%s", orderID)
}
