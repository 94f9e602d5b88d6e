package api

import (
	"net/http"

	"gofalre.io/bulls/models"
	"gofalre.io/bulls/table"
)

type tableView struct {
	Rows       []*models.Product `json:"rows"`
	Sort       table.SortState   `json:"sort"`
	Selected   []string          `json:"selected"`
	HasChanges bool              `json:"hasChanges"`
	Editing    *table.Cell       `json:"editing,omitempty"`
	Notice     *table.Notice     `json:"notice,omitempty"`
}

func newTableView(t *table.Table) tableView {
	v := tableView{
		Rows:       t.Rows(),
		Sort:       t.SortState(),
		Selected:   t.Selected(),
		HasChanges: t.HasChanges(),
	}
	if cell, ok := t.Editing(); ok {
		v.Editing = &cell
	}
	if n, ok := t.Notice(); ok {
		v.Notice = &n
	}
	return v
}

type cellRequest struct {
	ID    string `json:"id"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

type idsRequest struct {
	IDs []string `json:"ids"`
}

func (h *handler) routeTable(mux *http.ServeMux) {
	const base = "/api/admin/table"

	mux.HandleFunc("GET "+base, h.requireAccess(h.tableRows))
	mux.HandleFunc("POST "+base+"/load", h.requireAccess(h.tableLoad))
	mux.HandleFunc("POST "+base+"/editing", h.requireAccess(h.tableBeginEdit))
	mux.HandleFunc("DELETE "+base+"/editing", h.requireAccess(h.tableEndEdit))
	mux.HandleFunc("POST "+base+"/edits", h.requireAccess(h.tableEdit))
	mux.HandleFunc("DELETE "+base+"/edits", h.requireAccess(h.tableDiscard))
	mux.HandleFunc("GET "+base+"/changes", h.requireAccess(h.tableChanges))
	mux.HandleFunc("POST "+base+"/commit", h.requireAccess(h.tableCommit))
	mux.HandleFunc("POST "+base+"/sort", h.requireAccess(h.tableSort))
	mux.HandleFunc("POST "+base+"/select", h.requireAccess(h.tableSelect))
	mux.HandleFunc("POST "+base+"/select-all", h.requireAccess(h.tableSelectAll))
	mux.HandleFunc("POST "+base+"/delete", h.requireAccess(h.tableBulkDelete))
	mux.HandleFunc("POST "+base+"/delete-selected", h.requireAccess(h.tableDeleteSelected))
	mux.HandleFunc("POST "+base+"/products", h.requireAccess(h.tableCreate))
	mux.HandleFunc("DELETE "+base+"/products/{id}", h.requireAccess(h.tableDelete))
}

func (h *handler) tableRows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newTableView(h.svc.ProductsTable()))
}

// tableResult answers with the table state, or with the error when the
// operation failed. The table keeps its notice either way.
func (h *handler) tableResult(w http.ResponseWriter, t *table.Table, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTableView(t))
}

func (h *handler) tableLoad(w http.ResponseWriter, r *http.Request) {
	t := h.svc.ProductsTable()
	h.tableResult(w, t, t.Load(r.Context()))
}

func (h *handler) tableBeginEdit(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	t := h.svc.ProductsTable()
	h.tableResult(w, t, t.BeginEdit(req.ID, req.Field))
}

func (h *handler) tableEndEdit(w http.ResponseWriter, r *http.Request) {
	t := h.svc.ProductsTable()
	t.EndEdit()
	h.tableResult(w, t, nil)
}

func (h *handler) tableEdit(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	t := h.svc.ProductsTable()
	h.tableResult(w, t, t.EditCell(req.ID, req.Field, req.Value))
}

func (h *handler) tableDiscard(w http.ResponseWriter, r *http.Request) {
	t := h.svc.ProductsTable()
	t.DiscardEdits()
	h.tableResult(w, t, nil)
}

func (h *handler) tableChanges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.svc.ProductsTable().PendingChanges()})
}

func (h *handler) tableCommit(w http.ResponseWriter, r *http.Request) {
	t := h.svc.ProductsTable()
	_, err := t.CommitAll(r.Context())
	h.tableResult(w, t, err)
}

func (h *handler) tableSort(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	t := h.svc.ProductsTable()
	h.tableResult(w, t, t.Sort(req.Field))
}

func (h *handler) tableSelect(w http.ResponseWriter, r *http.Request) {
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	t := h.svc.ProductsTable()
	t.ToggleRowSelection(req.ID)
	h.tableResult(w, t, nil)
}

func (h *handler) tableSelectAll(w http.ResponseWriter, r *http.Request) {
	t := h.svc.ProductsTable()
	t.ToggleSelectAll()
	h.tableResult(w, t, nil)
}

func (h *handler) tableBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req idsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	t := h.svc.ProductsTable()
	_, err := t.BulkDelete(r.Context(), req.IDs)
	h.tableResult(w, t, err)
}

func (h *handler) tableDeleteSelected(w http.ResponseWriter, r *http.Request) {
	t := h.svc.ProductsTable()
	_, err := t.DeleteSelected(r.Context())
	h.tableResult(w, t, err)
}

func (h *handler) tableDelete(w http.ResponseWriter, r *http.Request) {
	t := h.svc.ProductsTable()
	h.tableResult(w, t, t.DeleteProduct(r.Context(), r.PathValue("id")))
}

func (h *handler) tableCreate(w http.ResponseWriter, r *http.Request) {
	var draft models.ProductDraft
	if err := decodeJSON(r, &draft); err != nil {
		h.writeError(w, err)
		return
	}
	created, err := h.svc.ProductsTable().CreateProduct(r.Context(), &draft)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": created})
}
