package table

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gofalre.io/bulls/audit"
	"gofalre.io/bulls/metrics"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/models/enum"
)

// fakeRepository implements Repository with per-id failure injection.
type fakeRepository struct {
	mu         sync.Mutex
	products   []*models.Product
	failList   error
	failPatch  map[string]error
	failDelete map[string]error
	failCreate error
	patches    map[string]map[string]any
	deletes    []string
	creates    int
	nextID     int
}

func newFakeRepository(products ...*models.Product) *fakeRepository {
	return &fakeRepository{
		products:   products,
		failPatch:  make(map[string]error),
		failDelete: make(map[string]error),
		patches:    make(map[string]map[string]any),
	}
}

func (f *fakeRepository) List(context.Context) ([]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList != nil {
		return nil, f.failList
	}
	out := make([]*models.Product, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (f *fakeRepository) Create(_ context.Context, p *models.Product) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	f.nextID++
	created := p.Clone()
	created.ID = fmt.Sprintf("new-%d", f.nextID)
	f.products = append(f.products, created.Clone())
	return created, nil
}

func (f *fakeRepository) Patch(_ context.Context, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failPatch[id]; err != nil {
		return err
	}
	f.patches[id] = fields
	return nil
}

func (f *fakeRepository) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failDelete[id]; err != nil {
		return err
	}
	f.deletes = append(f.deletes, id)
	return nil
}

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Append(_ context.Context, entries ...audit.Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func catalog() []*models.Product {
	return []*models.Product{
		{ID: "a", Model: "Copperhead", Category: enum.ProductCategoryEbike, Price: 2999},
		{ID: "b", Model: "Aminga", Category: enum.ProductCategoryEbike, Price: 4999},
		{ID: "c", Model: "Battery 500", Category: enum.ProductCategoryBattery, Price: 599},
		{ID: "d", Model: "Sonic", Category: enum.ProductCategoryBike, Price: 1299},
	}
}

func loadedTable(t *testing.T, repo *fakeRepository) (*Table, *recordingAudit) {
	t.Helper()
	rec := &recordingAudit{}
	tbl := New(repo, rec, metrics.NewRegistry(), zap.NewNop())
	require.NoError(t, tbl.Load(context.Background()))
	return tbl, rec
}

func ids(rows []*models.Product) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return out
}

func rowByID(rows []*models.Product, id string) *models.Product {
	for _, row := range rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func TestLoadSortsByModelAscending(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))

	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(tbl.Rows()))
	assert.Equal(t, SortState{Field: "model"}, tbl.SortState())
}

func TestLoadFailureKeepsWorkingCopy(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	tbl, _ := loadedTable(t, repo)
	repo.failList = errors.New("permission denied")

	err := tbl.Load(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsRemote(err))
	assert.Equal(t, 4, tbl.Len())

	notice, ok := tbl.Notice()
	require.True(t, ok)
	assert.Equal(t, NoticeError, notice.Kind)
	assert.Equal(t, "Failed to load products: permission denied", notice.Text)
}

func TestLoadDiscardsPendingAndSelection(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))
	require.NoError(t, tbl.EditCell("a", "price", "3100"))
	tbl.ToggleRowSelection("b")
	require.NoError(t, tbl.BeginEdit("a", "price"))

	require.NoError(t, tbl.Load(context.Background()))
	assert.False(t, tbl.HasChanges())
	assert.Empty(t, tbl.Selected())
	_, editing := tbl.Editing()
	assert.False(t, editing)
}

func TestEditCellIsOptimisticAndLocal(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	tbl, _ := loadedTable(t, repo)

	require.NoError(t, tbl.EditCell("a", "price", "3100.50"))
	require.NoError(t, tbl.EditCell("a", "model", "Copperhead EVO"))

	row := rowByID(tbl.Rows(), "a")
	assert.Equal(t, models.Number(3100.5), row.Price)
	assert.Equal(t, "Copperhead EVO", row.Model)
	assert.Empty(t, repo.patches)

	changes := tbl.PendingChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, Change{ID: "a", Model: "Copperhead", Field: "model", From: "Copperhead", To: "Copperhead EVO"}, changes[0])
	assert.Equal(t, Change{ID: "a", Model: "Copperhead", Field: "price", From: 2999.0, To: 3100.5}, changes[1])
}

func TestEditCellRevertClearsPending(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))

	require.NoError(t, tbl.EditCell("a", "price", 10))
	require.True(t, tbl.HasChanges())
	require.NoError(t, tbl.EditCell("a", "price", "2999"))
	assert.False(t, tbl.HasChanges())
}

func TestEditCellValidation(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))

	assert.True(t, models.IsValidation(tbl.EditCell("missing", "price", 1)))
	assert.True(t, models.IsValidation(tbl.EditCell("a", "id", "x")))
	assert.True(t, models.IsValidation(tbl.EditCell("a", "category", "scooter")))
	assert.NoError(t, tbl.EditCell("a", "category", "bike"))
	assert.NoError(t, tbl.EditCell("a", "discount", "abc"))

	row := rowByID(tbl.Rows(), "a")
	assert.Equal(t, enum.ProductCategoryBike, row.Category)
	assert.Equal(t, models.Number(0), row.Discount)
}

func TestSingleEditingCell(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))

	require.NoError(t, tbl.BeginEdit("a", "price"))
	require.NoError(t, tbl.BeginEdit("b", "model"))
	cell, ok := tbl.Editing()
	require.True(t, ok)
	assert.Equal(t, Cell{ID: "b", Field: "model"}, cell)

	require.NoError(t, tbl.EditCell("b", "model", "Aminga 2"))
	tbl.EndEdit()
	_, ok = tbl.Editing()
	assert.False(t, ok)
	assert.True(t, tbl.HasChanges())

	assert.Error(t, tbl.BeginEdit("zzz", "model"))
}

func TestCommitAllMergesOnSuccess(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	tbl, rec := loadedTable(t, repo)
	ctx := audit.WithActor(context.Background(), "eva@bulls.cz")

	require.NoError(t, tbl.EditCell("a", "price", "3100"))
	require.NoError(t, tbl.EditCell("b", "model", "Aminga EVO"))

	n, err := tbl.CommitAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, tbl.HasChanges())
	assert.Equal(t, map[string]any{"price": 3100.0}, repo.patches["a"])
	assert.Equal(t, map[string]any{"model": "Aminga EVO"}, repo.patches["b"])

	rows := tbl.Rows()
	assert.Equal(t, models.Number(3100), rowByID(rows, "a").Price)
	assert.Equal(t, "Aminga EVO", rowByID(rows, "b").Model)

	notice, _ := tbl.Notice()
	assert.Equal(t, Notice{Kind: NoticeSuccess, Text: "Updated 2 products"}, notice)

	require.Len(t, rec.entries, 2)
	for _, e := range rec.entries {
		assert.Equal(t, "eva@bulls.cz", e.Actor)
	}
}

func TestCommitAllIsAllOrNothing(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	repo.failPatch["a"] = errors.New("network unreachable")
	tbl, rec := loadedTable(t, repo)

	require.NoError(t, tbl.EditCell("a", "price", "3100"))
	require.NoError(t, tbl.EditCell("b", "price", "5100"))

	n, err := tbl.CommitAll(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsRemote(err))
	assert.Equal(t, 0, n)

	// b 的遠端更新成功，但不會併入工作副本
	assert.Contains(t, repo.patches, "b")
	rows := tbl.Rows()
	assert.Equal(t, models.Number(3100), rowByID(rows, "a").Price)
	assert.Equal(t, models.Number(5100), rowByID(rows, "b").Price)

	changes := tbl.PendingChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, 2999.0, changes[0].From)
	assert.Equal(t, 4999.0, changes[1].From)
	assert.Empty(t, rec.entries)

	notice, _ := tbl.Notice()
	assert.Equal(t, NoticeError, notice.Kind)
	assert.Contains(t, notice.Text, "Failed to update products: ")
	assert.Contains(t, notice.Text, "network unreachable")

	// 重試成功後全部併入
	delete(repo.failPatch, "a")
	n, err = tbl.CommitAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, tbl.HasChanges())
}

func TestCommitAllWithoutChanges(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	tbl, _ := loadedTable(t, repo)

	n, err := tbl.CommitAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, repo.patches)
}

func TestDiscardEdits(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))
	require.NoError(t, tbl.EditCell("a", "price", 1))
	tbl.DiscardEdits()
	assert.False(t, tbl.HasChanges())
	assert.Equal(t, models.Number(2999), rowByID(tbl.Rows(), "a").Price)
}

func TestSortToggle(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))

	require.NoError(t, tbl.Sort("price"))
	assert.Equal(t, []string{"c", "d", "a", "b"}, ids(tbl.Rows()))

	require.NoError(t, tbl.Sort("price"))
	assert.Equal(t, []string{"b", "a", "d", "c"}, ids(tbl.Rows()))
	assert.True(t, tbl.SortState().Descending)

	require.NoError(t, tbl.Sort("model"))
	assert.Equal(t, SortState{Field: "model"}, tbl.SortState())
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(tbl.Rows()))

	assert.True(t, models.IsValidation(tbl.Sort("nope")))
}

func TestSortIsNumericForPrices(t *testing.T) {
	repo := newFakeRepository(
		&models.Product{ID: "x", Model: "X", Price: 900},
		&models.Product{ID: "y", Model: "Y", Price: 10000},
		&models.Product{ID: "z", Model: "Z"},
	)
	tbl, _ := loadedTable(t, repo)

	require.NoError(t, tbl.Sort("price"))
	assert.Equal(t, []string{"z", "x", "y"}, ids(tbl.Rows()))
}

func TestSortIsCaseSensitiveForText(t *testing.T) {
	repo := newFakeRepository(
		&models.Product{ID: "1", Model: "bravo"},
		&models.Product{ID: "2", Model: "Alpha"},
		&models.Product{ID: "3", Model: "Charlie"},
	)
	tbl, _ := loadedTable(t, repo)
	assert.Equal(t, []string{"2", "3", "1"}, ids(tbl.Rows()))
}

func TestSelection(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))

	tbl.ToggleRowSelection("a")
	tbl.ToggleRowSelection("c")
	tbl.ToggleRowSelection("missing")
	assert.Equal(t, []string{"c", "a"}, tbl.Selected())

	tbl.ToggleRowSelection("a")
	assert.Equal(t, []string{"c"}, tbl.Selected())

	tbl.ToggleSelectAll()
	assert.Equal(t, []string{"b", "c", "a", "d"}, tbl.Selected())

	tbl.ToggleSelectAll()
	assert.Empty(t, tbl.Selected())
}

func TestBulkDeleteRemovesRowsAndClearsSelection(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	tbl, _ := loadedTable(t, repo)
	tbl.ToggleRowSelection("a")
	tbl.ToggleRowSelection("b")
	tbl.ToggleRowSelection("c")
	require.NoError(t, tbl.EditCell("a", "price", 1))

	n, err := tbl.DeleteSelected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, tbl.Selected())
	assert.Equal(t, []string{"d"}, ids(tbl.Rows()))
	assert.False(t, tbl.HasChanges())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, repo.deletes)

	notice, _ := tbl.Notice()
	assert.Equal(t, "Deleted 3 products", notice.Text)
}

func TestBulkDeleteFailureKeepsWorkingCopy(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	repo.failDelete["b"] = errors.New("permission denied")
	tbl, _ := loadedTable(t, repo)
	tbl.ToggleRowSelection("a")
	tbl.ToggleRowSelection("b")

	_, err := tbl.BulkDelete(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Len(t, tbl.Rows(), 4)
	assert.Len(t, tbl.Selected(), 2)

	notice, _ := tbl.Notice()
	assert.Equal(t, NoticeError, notice.Kind)
	assert.Contains(t, notice.Text, "Failed to delete: ")
}

func TestBulkDeleteRequiresIDs(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))
	_, err := tbl.BulkDelete(context.Background(), nil)
	assert.True(t, models.IsValidation(err))
}

func TestDeleteProductKeepsOtherSelection(t *testing.T) {
	tbl, _ := loadedTable(t, newFakeRepository(catalog()...))
	tbl.ToggleRowSelection("a")
	tbl.ToggleRowSelection("b")

	require.NoError(t, tbl.DeleteProduct(context.Background(), "a"))
	assert.Equal(t, []string{"b"}, tbl.Selected())
	assert.Equal(t, 3, tbl.Len())

	notice, _ := tbl.Notice()
	assert.Equal(t, "Product deleted", notice.Text)
}

func TestCreateProduct(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	tbl, _ := loadedTable(t, repo)

	draft := &models.ProductDraft{Model: "  Tramper  ", Category: enum.ProductCategoryBike, Price: 899}
	created, err := tbl.CreateProduct(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "new-1", created.ID)
	assert.Equal(t, "Tramper", created.Model)
	assert.Equal(t, models.Number(0), created.DiscountPrice)
	assert.Equal(t, 5, tbl.Len())
	assert.NotNil(t, rowByID(tbl.Rows(), "new-1"))

	notice, _ := tbl.Notice()
	assert.Equal(t, "Product created successfully", notice.Text)
}

func TestCreateProductRequiresModel(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	tbl, _ := loadedTable(t, repo)

	_, err := tbl.CreateProduct(context.Background(), &models.ProductDraft{Model: "   "})
	require.Error(t, err)
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, 0, repo.creates)

	notice, _ := tbl.Notice()
	assert.Equal(t, Notice{Kind: NoticeError, Text: "Product model is required"}, notice)
}

func TestCreateProductRemoteFailure(t *testing.T) {
	repo := newFakeRepository(catalog()...)
	repo.failCreate = errors.New("quota exceeded")
	tbl, _ := loadedTable(t, repo)

	_, err := tbl.CreateProduct(context.Background(), &models.ProductDraft{Model: "X"})
	require.Error(t, err)
	assert.Equal(t, "Failed to create product: quota exceeded", err.Error())
	assert.Equal(t, 4, tbl.Len())
}
