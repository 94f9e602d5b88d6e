// Package table is the operator's spreadsheet view of the product catalog:
// a working copy of the remote collection, per-cell pending edits kept
// apart from it, sorting, selection, and batched commits.
package table

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"gofalre.io/bulls/audit"
	"gofalre.io/bulls/metrics"
	"gofalre.io/bulls/models"
)

// Repository is the remote collection the table mirrors.
type Repository interface {
	List(ctx context.Context) ([]*models.Product, error)
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	Patch(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is the last user-visible outcome of an operation.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Cell addresses one field of one row.
type Cell struct {
	ID    string `json:"id"`
	Field string `json:"field"`
}

type Table struct {
	mu       sync.Mutex
	repo     Repository
	auditor  audit.Writer
	metrics  *metrics.Registry
	logger   *zap.Logger
	rows     []*models.Product
	pending  map[string]map[string]any
	selected map[string]struct{}
	sort     SortState
	editing  *Cell
	notice   *Notice
}

// New returns an empty table sorted by model ascending. auditor and
// metrics may be nil.
func New(repo Repository, auditor audit.Writer, metrics *metrics.Registry, logger *zap.Logger) *Table {
	return &Table{
		repo:     repo,
		auditor:  auditor,
		metrics:  metrics,
		logger:   logger,
		rows:     make([]*models.Product, 0),
		pending:  make(map[string]map[string]any),
		selected: make(map[string]struct{}),
		sort:     SortState{Field: "model"},
	}
}

// Load replaces the working copy with the remote collection. Pending edits,
// the selection and the editing cell are discarded. On failure the working
// copy is left as it was.
func (t *Table) Load(ctx context.Context) error {
	products, err := t.repo.List(ctx)
	if err != nil {
		return t.remoteFailure("load products", "load", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = products
	t.pending = make(map[string]map[string]any)
	t.selected = make(map[string]struct{})
	t.editing = nil
	t.logger.Info("Products loaded", zap.Int("count", len(products)))
	return nil
}

// Rows returns the sorted working copy with pending edits overlaid.
func (t *Table) Rows() []*models.Product {
	t.mu.Lock()
	defer t.mu.Unlock()

	sorted := t.sortedLocked()
	out := make([]*models.Product, 0, len(sorted))
	for _, row := range sorted {
		view := row.Clone()
		view.Apply(t.pending[row.ID])
		out = append(out, view)
	}
	return out
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// BeginEdit moves the single editing cursor to the given cell.
func (t *Table) BeginEdit(id, field string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rowLocked(id) == nil {
		return unknownRow(id)
	}
	if _, ok := models.ProductFields[field]; !ok {
		return unknownField(field)
	}
	t.editing = &Cell{ID: id, Field: field}
	return nil
}

// EndEdit leaves editing mode. Recorded edits stay pending.
func (t *Table) EndEdit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.editing = nil
}

func (t *Table) Editing() (Cell, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.editing == nil {
		return Cell{}, false
	}
	return *t.editing, true
}

func (t *Table) Notice() (Notice, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.notice == nil {
		return Notice{}, false
	}
	return *t.notice, true
}

func (t *Table) setNotice(kind NoticeKind, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notice = &Notice{Kind: kind, Text: text}
}

// remoteFailure surfaces a failed remote call as a notice and returns it as
// a *models.RemoteError.
func (t *Table) remoteFailure(op, metric string, err error) error {
	remote := models.NewRemoteError(op, err)
	t.logger.Error(remote.Error(), zap.Error(err))
	t.metrics.RemoteFailure(metric)
	t.setNotice(NoticeError, remote.Error())
	return remote
}

func (t *Table) rowLocked(id string) *models.Product {
	for _, row := range t.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

// removeLocked drops ids from the working copy and every structure keyed
// by row id.
func (t *Table) removeLocked(ids map[string]struct{}) {
	rows := t.rows[:0]
	for _, row := range t.rows {
		if _, gone := ids[row.ID]; !gone {
			rows = append(rows, row)
		}
	}
	// 清掉尾端殘留的指標
	for i := len(rows); i < len(t.rows); i++ {
		t.rows[i] = nil
	}
	t.rows = rows

	for id := range ids {
		delete(t.pending, id)
		delete(t.selected, id)
	}
	if t.editing != nil {
		if _, gone := ids[t.editing.ID]; gone {
			t.editing = nil
		}
	}
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func noSelection() error {
	return models.NewValidationError("ids", "no products selected")
}
