// Package api exposes the storefront and the back-office console over JSON.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gofalre.io/bulls"
	"gofalre.io/bulls/audit"
	"gofalre.io/bulls/cart"
	"gofalre.io/bulls/docstore"
	"gofalre.io/bulls/metrics"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/order"
	"gofalre.io/bulls/product"
)

const (
	// CartCookie carries the cart session id.
	CartCookie = "bulls_cart"
	// UserHeader carries the signed-in email, set by the auth proxy in front.
	UserHeader = "X-User-Email"

	maxBodyBytes = 1 << 20
)

var (
	errUnauthorized = errors.New("sign in required")
	errForbidden    = errors.New("access denied")
)

type handler struct {
	svc     bulls.Service
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewHandler routes the storefront, the admin console and /metrics.
// metrics may be nil.
func NewHandler(svc bulls.Service, metrics *metrics.Registry, logger *zap.Logger) http.Handler {
	h := &handler{svc: svc, metrics: metrics, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)
	mux.HandleFunc("GET /api/cart/events", h.cartEvents)
	mux.HandleFunc("POST /api/cart/items", h.addCartItem)
	mux.HandleFunc("PUT /api/cart/items/{id}", h.updateCartItem)
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.removeCartItem)

	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders", h.customerOrders)

	mux.HandleFunc("GET /api/admin/orders", h.requireAccess(h.listOrders))
	mux.HandleFunc("GET /api/admin/orders/{id}", h.requireAccess(h.getOrder))
	mux.HandleFunc("PATCH /api/admin/orders/{id}", h.requireAccess(h.updateOrder))
	mux.HandleFunc("PUT /api/admin/orders/{id}/status", h.requireAccess(h.updateOrderStatus))
	mux.HandleFunc("GET /api/admin/users", h.requireAccess(h.listUsers))
	mux.HandleFunc("POST /api/admin/users", h.requireAccess(h.addUser))
	mux.HandleFunc("PUT /api/admin/users/{email}", h.requireAdmin(h.setUserAccess))

	h.routeTable(mux)

	return mux
}

func (h *handler) requireAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := signedIn(r)
		if user == "" {
			h.writeError(w, errUnauthorized)
			return
		}
		if !h.svc.CheckAccess(r.Context(), user) {
			h.logger.Warn("Back-office access denied", zap.String("user", user))
			h.writeError(w, errForbidden)
			return
		}
		next(w, r.WithContext(audit.WithActor(r.Context(), user)))
	}
}

func (h *handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := signedIn(r)
		if user == "" {
			h.writeError(w, errUnauthorized)
			return
		}
		if !h.svc.IsAdmin(user) {
			h.writeError(w, errForbidden)
			return
		}
		next(w, r.WithContext(audit.WithActor(r.Context(), user)))
	}
}

func signedIn(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

// cartSession returns the session id from the cookie, issuing a new one when
// the browser has none.
func cartSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CartCookie); err == nil && c.Value != "" {
		return c.Value
	}
	session := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookie,
		Value:    session,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return session
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, errUnauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, errForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, product.ErrNotFound), errors.Is(err, order.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound), errors.Is(err, docstore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case models.IsRemote(err):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("Failed to handle request", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return models.NewValidationError("", "empty request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return models.NewValidationError("", "invalid JSON payload")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
