package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"gofalre.io/bulls/models"
	"gofalre.io/bulls/models/enum"
)

type cartView struct {
	Items []models.CartLineItem `json:"items"`
	Total float64               `json:"total"`
	Count int                   `json:"count"`
}

func newCartView(c *models.Cart) cartView {
	return cartView{Items: c.Items, Total: c.Total, Count: c.ItemCount()}
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (h *handler) listProducts(w http.ResponseWriter, r *http.Request) {
	category := enum.ProductCategory(strings.TrimSpace(r.URL.Query().Get("category")))
	products, err := h.svc.ListProducts(r.Context(), category)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": products})
}

func (h *handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": p})
}

func (h *handler) getCart(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Cart(cartSession(w, r))
	writeJSON(w, http.StatusOK, newCartView(store.GetCart(r.Context())))
}

func (h *handler) clearCart(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Cart(cartSession(w, r))
	if err := store.ClearCart(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(store.GetCart(r.Context())))
}

func (h *handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	p, err := h.svc.GetProduct(r.Context(), strings.TrimSpace(req.ProductID))
	if err != nil {
		h.writeError(w, err)
		return
	}

	store := h.svc.Cart(cartSession(w, r))
	if err := store.AddToCart(r.Context(), p, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(store.GetCart(r.Context())))
}

func (h *handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	store := h.svc.Cart(cartSession(w, r))
	if err := store.UpdateCartItemQuantity(r.Context(), r.PathValue("id"), req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(store.GetCart(r.Context())))
}

func (h *handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	store := h.svc.Cart(cartSession(w, r))
	if err := store.RemoveFromCart(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(store.GetCart(r.Context())))
}

// cartEvents streams the session's cart as server-sent events: once on
// connect and again after every cart change.
func (h *handler) cartEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	store := h.svc.Cart(cartSession(w, r))

	changed := make(chan struct{}, 1)
	unsubscribe := h.svc.SubscribeCart(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	for {
		data, err := json.Marshal(newCartView(store.GetCart(ctx)))
		if err != nil {
			h.logger.Error("Failed to encode cart event", zap.Error(err))
			return
		}
		if _, err = fmt.Fprintf(w, "event: cart\ndata: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

func (h *handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.svc.PlaceOrder(r.Context(), cartSession(w, r), &req, signedIn(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": created})
}

// customerOrders lists the signed-in customer's orders. Listing someone
// else's orders needs back-office access.
func (h *handler) customerOrders(w http.ResponseWriter, r *http.Request) {
	user := signedIn(r)
	if user == "" {
		h.writeError(w, errUnauthorized)
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		email = user
	}
	if !strings.EqualFold(email, user) && !h.svc.CheckAccess(r.Context(), user) {
		h.writeError(w, errForbidden)
		return
	}

	orders, err := h.svc.ListCustomerOrders(r.Context(), email)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": orders})
}
