package table

import (
	"context"
	"errors"

	"gofalre.io/bulls/models"
)

// CreateProduct validates draft, creates it remotely and appends the stored
// record, with its assigned id, to the working copy.
func (t *Table) CreateProduct(ctx context.Context, draft *models.ProductDraft) (*models.Product, error) {
	if draft == nil {
		draft = &models.ProductDraft{}
	}
	if err := draft.Validate(); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			t.setNotice(NoticeError, ve.Message)
		}
		return nil, err
	}

	created, err := t.repo.Create(ctx, draft.Product())
	if err == nil && created == nil {
		err = errors.New("no data returned")
	}
	if err != nil {
		return nil, t.remoteFailure("create product", "create", err)
	}

	t.mu.Lock()
	t.rows = append(t.rows, created)
	t.mu.Unlock()

	t.setNotice(NoticeSuccess, "Product created successfully")
	return created.Clone(), nil
}
