package table

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ToggleRowSelection adds or removes id from the selection. Ids that are
// not in the working copy are ignored.
func (t *Table) ToggleRowSelection(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rowLocked(id) == nil {
		return
	}
	if _, ok := t.selected[id]; ok {
		delete(t.selected, id)
		return
	}
	t.selected[id] = struct{}{}
}

// ToggleSelectAll clears the selection when every row is selected and
// otherwise selects every row.
func (t *Table) ToggleSelectAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.rows) > 0 && len(t.selected) == len(t.rows) {
		t.selected = make(map[string]struct{})
		return
	}
	t.selected = make(map[string]struct{}, len(t.rows))
	for _, row := range t.sortedLocked() {
		t.selected[row.ID] = struct{}{}
	}
}

// Selected returns the selected ids in display order.
func (t *Table) Selected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.selected))
	for _, row := range t.sortedLocked() {
		if _, ok := t.selected[row.ID]; ok {
			ids = append(ids, row.ID)
		}
	}
	return ids
}

func (t *Table) IsSelected(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.selected[id]
	return ok
}

// BulkDelete deletes ids in parallel. Only when every delete succeeded are
// the rows removed from the working copy and the selection cleared.
func (t *Table) BulkDelete(ctx context.Context, ids []string) (int, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	if len(set) == 0 {
		return 0, noSelection()
	}

	if err := t.deleteAll(ctx, set); err != nil {
		return 0, err
	}

	t.mu.Lock()
	t.removeLocked(set)
	t.selected = make(map[string]struct{})
	t.mu.Unlock()

	t.metrics.Deleted(len(set))
	t.setNotice(NoticeSuccess, fmt.Sprintf("Deleted %d products", len(set)))
	return len(set), nil
}

func (t *Table) DeleteSelected(ctx context.Context) (int, error) {
	return t.BulkDelete(ctx, t.Selected())
}

// DeleteProduct deletes a single row. The rest of the selection is kept.
func (t *Table) DeleteProduct(ctx context.Context, id string) error {
	if id == "" {
		return unknownRow(id)
	}
	set := map[string]struct{}{id: {}}
	if err := t.deleteAll(ctx, set); err != nil {
		return err
	}

	t.mu.Lock()
	t.removeLocked(set)
	t.mu.Unlock()

	t.metrics.Deleted(1)
	t.setNotice(NoticeSuccess, "Product deleted")
	return nil
}

func (t *Table) deleteAll(ctx context.Context, set map[string]struct{}) error {
	var g errgroup.Group
	for _, id := range sortedIDs(set) {
		g.Go(func() error {
			if err := t.repo.Delete(ctx, id); err != nil {
				return fmt.Errorf("product %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return t.remoteFailure("delete", "delete", err)
	}
	return nil
}
