package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gofalre.io/bulls/docstore"
	"gofalre.io/bulls/driver"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/models/enum"
)

// Collection is the document collection products live in.
const Collection = "products"

const (
	cacheTTL = 30 * time.Minute
	listCacheTTL  = time.Minute
	allProductKey = "products:all"
)

// ErrNotFound is returned when a product id does not exist.
var ErrNotFound = errors.New("product not found")

var _ Repository = (*repository)(nil)

type Repository interface {
	List(ctx context.Context) ([]*models.Product, error)
	ListFresh(ctx context.Context) ([]*models.Product, error)
	ListByCategory(ctx context.Context, category enum.ProductCategory) ([]*models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Patch(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
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

func (r *repository) List(ctx context.Context) ([]*models.Product, error) {
	return r.list(ctx, allProductKey, docstore.Filter{})
}

func (r *repository) ListByCategory(ctx context.Context, category enum.ProductCategory) ([]*models.Product, error) {
	if !category.Valid() {
		return nil, models.NewValidationError("category", fmt.Sprintf("unknown category %q", category))
	}
	if category == enum.ProductCategoryNone {
		return r.List(ctx)
	}
	return r.list(ctx, categoryKey(category), docstore.Filter{Field: "category", Equals: string(category)})
}

func (r *repository) list(ctx context.Context, cacheKey string, filter docstore.Filter) ([]*models.Product, error) {
	var products []*models.Product

	// 嘗試從快取中獲取
	found, err := r.cache.Get(ctx, cacheKey, &products)
	if err != nil {
		r.logger.Warn("Failed to get products from cache", zap.Error(err))
	}
	if found {
		return products, nil
	}

	products, err = r.listStore(ctx, filter)
	if err != nil {
		return nil, err
	}

	// 更新快取
	if err := r.cache.Set(ctx, cacheKey, products, listCacheTTL); err != nil {
		r.logger.Warn("Failed to cache products", zap.Error(err))
	}

	return products, nil
}

// ListFresh reads every product from the store, skipping the cache both
// ways. Operators editing the catalog always see committed values.
func (r *repository) ListFresh(ctx context.Context) ([]*models.Product, error) {
	return r.listStore(ctx, docstore.Filter{})
}

func (r *repository) listStore(ctx context.Context, filter docstore.Filter) ([]*models.Product, error) {
	docs, err := r.store.List(ctx, Collection, filter)
	if err != nil {
		r.logger.Error("Failed to list products", zap.Error(err))
		return nil, err
	}

	products := make([]*models.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, FromDocument(doc))
	}
	return products, nil
}

func (r *repository) Get(ctx context.Context, id string) (*models.Product, error) {
	cacheKey := productKey(id)
	var product models.Product

	// 嘗試從快取中獲取
	found, err := r.cache.Get(ctx, cacheKey, &product)
	if err != nil {
		r.logger.Warn("Failed to get product from cache", zap.Error(err))
	}
	if found {
		return &product, nil
	}

	doc, err := r.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get product", zap.String("product_id", id), zap.Error(err))
		return nil, err
	}

	p := FromDocument(doc)

	// 更新快取
	if err := r.cache.Set(ctx, cacheKey, p, cacheTTL); err != nil {
		r.logger.Warn("Failed to cache product", zap.Error(err))
	}

	return p, nil
}

func (r *repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	doc, err := r.store.Create(ctx, Collection, product.Document())
	if err != nil {
		r.logger.Error("Failed to create product", zap.Error(err))
		return nil, err
	}

	r.invalidateListCache(ctx)
	return FromDocument(doc), nil
}

func (r *repository) Patch(ctx context.Context, id string, fields map[string]any) error {
	err := r.store.Patch(ctx, Collection, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to update product", zap.String("product_id", id), zap.Error(err))
		return err
	}

	// 使相關的快取失效
	r.invalidateProductCache(ctx, id)
	return nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, Collection, id); err != nil {
		r.logger.Error("Failed to delete product", zap.String("product_id", id), zap.Error(err))
		return err
	}

	// 使相關的快取失效
	r.invalidateProductCache(ctx, id)
	return nil
}

// FromDocument decodes a stored product. Malformed fields are coerced, never
// rejected.
func FromDocument(doc *docstore.Document) *models.Product {
	p := new(models.Product)
	p.Apply(doc.Timestamps())
	p.ID = doc.ID
	return p
}

func (r *repository) invalidateProductCache(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, productKey(id)); err != nil {
		r.logger.Warn("Failed to invalidate product cache", zap.Error(err), zap.String("product_id", id))
	}
	r.invalidateListCache(ctx)
}

func (r *repository) invalidateListCache(ctx context.Context) {
	keys := []string{
		allProductKey,
		categoryKey(enum.ProductCategoryEbike),
		categoryKey(enum.ProductCategoryBattery),
		categoryKey(enum.ProductCategoryBike),
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.Warn("Failed to invalidate product list cache", zap.Error(err))
	}
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func categoryKey(category enum.ProductCategory) string {
	return fmt.Sprintf("products:category:%s", category)
}
