package api

import (
	"net/http"

	"gofalre.io/bulls/models/enum"
)

type statusRequest struct {
	Status enum.OrderStatus `json:"status"`
}

type userRequest struct {
	Email     string `json:"email"`
	HasAccess bool   `json:"hasAccess"`
}

func (h *handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": orders})
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": o})
}

func (h *handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := decodeJSON(r, &fields); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.UpdateOrder(r.Context(), r.PathValue("id"), fields); err != nil {
		h.writeError(w, err)
		return
	}
	h.getOrder(w, r)
}

func (h *handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.UpdateOrderStatus(r.Context(), r.PathValue("id"), req.Status); err != nil {
		h.writeError(w, err)
		return
	}
	h.getOrder(w, r)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListAllowedUsers(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": users})
}

func (h *handler) addUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.svc.AddAllowedUser(r.Context(), req.Email, req.HasAccess); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": req})
}

func (h *handler) setUserAccess(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	req.Email = r.PathValue("email")
	if err := h.svc.SetUserAccess(r.Context(), req.Email, req.HasAccess); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": req})
}
