package table

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gofalre.io/bulls/audit"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/models/enum"
)

// Change is one pending field edit as shown in the review dialog.
type Change struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Field string `json:"field"`
	From  any    `json:"from"`
	To    any    `json:"to"`
}

// EditCell records value as a pending edit. The working copy is not
// touched and nothing is sent to the remote store. Setting a field back to
// its committed value drops the pending entry.
func (t *Table) EditCell(id, field string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := t.rowLocked(id)
	if row == nil {
		return unknownRow(id)
	}
	v, err := coerce(field, value)
	if err != nil {
		return err
	}

	committed, _ := row.Get(field)
	if committed == v {
		if fields, ok := t.pending[id]; ok {
			delete(fields, field)
			if len(fields) == 0 {
				delete(t.pending, id)
			}
		}
		return nil
	}

	fields, ok := t.pending[id]
	if !ok {
		fields = make(map[string]any)
		t.pending[id] = fields
	}
	fields[field] = v
	return nil
}

// PendingChanges lists every pending edit ordered by product id and field.
func (t *Table) PendingChanges() []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	changes := make([]Change, 0)
	for id, fields := range t.pending {
		row := t.rowLocked(id)
		if row == nil {
			continue
		}
		for field, to := range fields {
			from, _ := row.Get(field)
			changes = append(changes, Change{ID: id, Model: row.Model, Field: field, From: from, To: to})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].ID != changes[j].ID {
			return changes[i].ID < changes[j].ID
		}
		return changes[i].Field < changes[j].Field
	})
	return changes
}

func (t *Table) HasChanges() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

func (t *Table) DiscardEdits() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[string]map[string]any)
	t.editing = nil
}

// CommitAll sends one patch per edited product, all in parallel. Edits are
// merged into the working copy only if every patch succeeded; after any
// failure nothing is merged and every edit stays pending for a retry.
func (t *Table) CommitAll(ctx context.Context) (int, error) {
	t.mu.Lock()
	batch := make(map[string]map[string]any, len(t.pending))
	for id, fields := range t.pending {
		patch := make(map[string]any, len(fields))
		for field, v := range fields {
			patch[field] = v
		}
		batch[id] = patch
	}
	t.editing = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}

	start := time.Now()
	var g errgroup.Group
	for id, patch := range batch {
		g.Go(func() error {
			if err := t.repo.Patch(ctx, id, patch); err != nil {
				return fmt.Errorf("product %s: %w", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, t.remoteFailure("update products", "update", err)
	}

	entries := t.merge(batch, audit.ActorFrom(ctx))
	t.metrics.Commit(len(batch), time.Since(start))
	t.setNotice(NoticeSuccess, fmt.Sprintf("Updated %d products", len(batch)))
	t.record(ctx, entries)

	return len(batch), nil
}

// merge folds a committed batch into the working copy. Pending entries are
// cleared only where they still hold the committed value, so edits made
// while the batch was in flight survive.
func (t *Table) merge(batch map[string]map[string]any, actor string) []audit.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()
	entries := make([]audit.Entry, 0, len(batch))
	for id, patch := range batch {
		row := t.rowLocked(id)
		for field, v := range patch {
			if row != nil {
				from, _ := row.Get(field)
				row.Set(field, v)
				entries = append(entries, audit.Entry{ProductID: id, Field: field, From: from, To: v, Actor: actor, At: now})
			}
			if fields, ok := t.pending[id]; ok && fields[field] == v {
				delete(fields, field)
			}
		}
		if len(t.pending[id]) == 0 {
			delete(t.pending, id)
		}
	}
	return entries
}

func (t *Table) record(ctx context.Context, entries []audit.Entry) {
	if t.auditor == nil || len(entries) == 0 {
		return
	}
	if err := t.auditor.Append(ctx, entries...); err != nil {
		t.logger.Warn("Failed to record product changes", zap.Error(err))
		return
	}
	t.metrics.Audited(len(entries))
}

// coerce converts an edited value to the field's kind.
func coerce(field string, value any) (any, error) {
	kind, ok := models.ProductFields[field]
	if !ok {
		return nil, unknownField(field)
	}
	switch kind {
	case models.FieldNumber:
		return models.ParseNumber(value), nil
	case models.FieldCategory:
		category := enum.ProductCategory(stringValue(value))
		if !category.Valid() {
			return nil, models.NewValidationError(field, fmt.Sprintf("unknown category %q", category))
		}
		return string(category), nil
	default:
		return stringValue(value), nil
	}
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func unknownRow(id string) error {
	return models.NewValidationError("id", fmt.Sprintf("unknown product %q", id))
}

func unknownField(field string) error {
	return models.NewValidationError("field", fmt.Sprintf("%q is not an editable field", field))
}
