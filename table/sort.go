package table

import (
	"sort"

	"gofalre.io/bulls/models"
)

type SortState struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// Sort orders rows by field. Sorting the current field again flips the
// direction; a new field always starts ascending.
func (t *Table) Sort(field string) error {
	if _, ok := models.ProductFields[field]; !ok {
		return unknownField(field)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sort.Field == field {
		t.sort.Descending = !t.sort.Descending
		return nil
	}
	t.sort = SortState{Field: field}
	return nil
}

func (t *Table) SortState() SortState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sort
}

// sortedLocked orders the committed rows. Number columns compare
// numerically, everything else as case-sensitive strings.
func (t *Table) sortedLocked() []*models.Product {
	rows := make([]*models.Product, len(t.rows))
	copy(rows, t.rows)

	field, desc := t.sort.Field, t.sort.Descending
	numeric := models.ProductFields[field] == models.FieldNumber
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if desc {
			a, b = b, a
		}
		if numeric {
			return numberOf(a, field) < numberOf(b, field)
		}
		return textOf(a, field) < textOf(b, field)
	})
	return rows
}

func numberOf(p *models.Product, field string) float64 {
	v, _ := p.Get(field)
	return models.ParseNumber(v)
}

func textOf(p *models.Product, field string) string {
	v, _ := p.Get(field)
	return stringValue(v)
}
