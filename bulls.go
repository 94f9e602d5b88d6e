// Package bulls is the storefront core: catalog, per-session carts, order
// placement, the back-office access list and the products table.
package bulls

import (
	"context"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gofalre.io/bulls/access"
	"gofalre.io/bulls/audit"
	"gofalre.io/bulls/cart"
	"gofalre.io/bulls/metrics"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/models/enum"
	"gofalre.io/bulls/notify"
	"gofalre.io/bulls/order"
	"gofalre.io/bulls/product"
	"gofalre.io/bulls/table"
)

const workerPoolSize = 10

type Service interface {
	ListProducts(ctx context.Context, category enum.ProductCategory) ([]*models.Product, error)
	GetProduct(ctx context.Context, productID string) (*models.Product, error)

	Cart(session string) *cart.Store
	SubscribeCart(fn func()) (unsubscribe func())
	PlaceOrder(ctx context.Context, session string, req *models.OrderRequest, user string) (*models.Order, error)

	ListOrders(ctx context.Context) ([]*models.Order, error)
	ListCustomerOrders(ctx context.Context, email string) ([]*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status enum.OrderStatus) error
	UpdateOrder(ctx context.Context, orderID string, fields map[string]any) error

	IsAdmin(email string) bool
	CheckAccess(ctx context.Context, email string) bool
	ListAllowedUsers(ctx context.Context) ([]*models.AccessUser, error)
	AddAllowedUser(ctx context.Context, email string, hasAccess bool) error
	SetUserAccess(ctx context.Context, email string, hasAccess bool) error

	ProductsTable() *table.Table

	Close()
}

type service struct {
	product product.Repository
	order   order.Repository
	access  access.Repository

	carts       *cart.Carts
	broadcaster *notify.Broadcaster
	table       *table.Table

	eventManager *EventManager
	workerPool   *WorkerPool

	adminEmail string
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// NewService wires the storefront. natsConn, auditor and metrics may be nil;
// without NATS cart changes stay local to this process.
func NewService(
	product product.Repository, order order.Repository, access access.Repository, backend cart.Backend,
	auditor audit.Writer, natsConn *nats.Conn, adminEmail string,
	metrics *metrics.Registry, logger *zap.Logger) Service {
	s := &service{
		product:     product,
		order:       order,
		access:      access,
		broadcaster: notify.NewBroadcaster(),
		adminEmail:  strings.ToLower(strings.TrimSpace(adminEmail)),
		metrics:     metrics,
		logger:      logger,
	}
	s.workerPool = NewWorkerPool(workerPoolSize, logger)

	var cartNotifier notify.Notifier = s.broadcaster
	if natsConn != nil {
		s.eventManager = NewEventManager(natsConn, s.broadcaster, logger)
		// 訂閱事件
		if err := s.eventManager.SubscribeToEvents(s.workerPool); err != nil {
			logger.Error("Failed to subscribe to cart events", zap.Error(err))
		}
		cartNotifier = notify.Multi(s.broadcaster, s.eventManager)
	}
	s.carts = cart.NewCarts(backend, cartNotifier, metrics, logger)

	if auditor != nil {
		auditor = &asyncAuditor{pool: s.workerPool, writer: auditor, logger: logger}
	}
	s.table = table.New(freshCatalog{product}, auditor, metrics, logger)

	return s
}

// freshCatalog is the product repository as the products table sees it:
// loads bypass the product cache.
type freshCatalog struct {
	product.Repository
}

func (c freshCatalog) List(ctx context.Context) ([]*models.Product, error) {
	return c.ListFresh(ctx)
}

func (s *service) ListProducts(ctx context.Context, category enum.ProductCategory) ([]*models.Product, error) {
	return s.product.ListByCategory(ctx, category)
}

func (s *service) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	return s.product.Get(ctx, productID)
}

func (s *service) Cart(session string) *cart.Store {
	return s.carts.For(session)
}

func (s *service) SubscribeCart(fn func()) (unsubscribe func()) {
	return s.broadcaster.Subscribe(fn)
}

// PlaceOrder turns the session's cart into a pending order and empties the
// cart. user is the signed-in email, or empty for a guest.
func (s *service) PlaceOrder(ctx context.Context, session string, req *models.OrderRequest, user string) (*models.Order, error) {
	store := s.carts.For(session)

	cartModel := store.GetCart(ctx)
	if cartModel.Empty() {
		return nil, models.NewValidationError("cart", "Your cart is empty. Please add some products before placing an order.")
	}
	if req == nil {
		return nil, models.NewValidationError("order", "order details are required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	created, err := s.order.Create(ctx, models.NewOrder(req, cartModel, strings.TrimSpace(user)))
	if err != nil {
		s.metrics.RemoteFailure("place_order")
		return nil, models.NewRemoteError("place order", err)
	}
	s.metrics.OrderPlaced()
	s.logger.Info("Order placed",
		zap.String("order_id", created.ID),
		zap.String("created_by", created.CreatedBy),
		zap.Float64("total", created.TotalPrice))

	// 訂單已成立，清空購物車失敗只記錄
	if err = store.ClearCart(ctx); err != nil {
		s.logger.Warn("Failed to clear cart after order", zap.String("order_id", created.ID), zap.Error(err))
	}

	return created, nil
}

func (s *service) ListOrders(ctx context.Context) ([]*models.Order, error) {
	return s.order.List(ctx)
}

func (s *service) ListCustomerOrders(ctx context.Context, email string) ([]*models.Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, models.NewValidationError("email", "is required")
	}
	return s.order.ListByCustomer(ctx, email)
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.order.Get(ctx, orderID)
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID string, status enum.OrderStatus) error {
	if err := s.order.UpdateStatus(ctx, orderID, status); err != nil {
		return err
	}
	s.logger.Info("Order status updated", zap.String("order_id", orderID), zap.String("status", string(status)))
	return nil
}

func (s *service) UpdateOrder(ctx context.Context, orderID string, fields map[string]any) error {
	if err := s.order.Update(ctx, orderID, fields); err != nil {
		return err
	}
	s.logger.Info("Order updated", zap.String("order_id", orderID))
	return nil
}

func (s *service) IsAdmin(email string) bool {
	return s.adminEmail != "" && strings.EqualFold(strings.TrimSpace(email), s.adminEmail)
}

// CheckAccess lets the admin in unconditionally and everyone else by the
// access list.
func (s *service) CheckAccess(ctx context.Context, email string) bool {
	if s.IsAdmin(email) {
		return true
	}
	return s.access.Check(ctx, email)
}

func (s *service) ListAllowedUsers(ctx context.Context) ([]*models.AccessUser, error) {
	return s.access.List(ctx)
}

func (s *service) AddAllowedUser(ctx context.Context, email string, hasAccess bool) error {
	return s.access.Add(ctx, email, hasAccess)
}

func (s *service) SetUserAccess(ctx context.Context, email string, hasAccess bool) error {
	return s.access.SetAccess(ctx, email, hasAccess)
}

func (s *service) ProductsTable() *table.Table {
	return s.table
}

// Close stops the NATS bridge and drains the worker pool.
func (s *service) Close() {
	if s.eventManager != nil {
		s.eventManager.Close()
	}
	s.workerPool.Shutdown()
}
