package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gofalre.io/bulls/docstore"
	"gofalre.io/bulls/models"
	"gofalre.io/bulls/models/enum"
)

func steppingClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newOrder(email string, total float64) *models.Order {
	req := &models.OrderRequest{
		FullName: "Jan Novák",
		Email:    email,
		Phone:    "+420 777 000 111",
		Address:  "Dlouhá 1",
		City:     "Praha",
		ZipCode:  "11000",
		Country:  "CZ",
	}
	cart := &models.Cart{
		Items: []models.CartLineItem{{ID: "p1", Model: "Bulls Sonic", Price: total, Quantity: 1}},
		Total: total,
	}
	return models.NewOrder(req, cart, "")
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(docstore.NewMemory(), nil, zap.NewNop())

	created, err := repo.Create(ctx, newOrder("jan@bulls.cz", 3999))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPending, got.Status)
	assert.Equal(t, "guest", got.CreatedBy)
	assert.Equal(t, 3999.0, got.TotalPrice)
	assert.Equal(t, models.OrderCurrency, got.Currency)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].ID)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirstAndByCustomer(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(docstore.NewMemory().WithClock(steppingClock()), nil, zap.NewNop())

	first, err := repo.Create(ctx, newOrder("jan@bulls.cz", 100))
	require.NoError(t, err)
	_, err = repo.Create(ctx, newOrder("eva@bulls.cz", 200))
	require.NoError(t, err)
	third, err := repo.Create(ctx, newOrder("jan@bulls.cz", 300))
	require.NoError(t, err)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)
	assert.Equal(t, first.ID, all[2].ID)

	jan, err := repo.ListByCustomer(ctx, "jan@bulls.cz")
	require.NoError(t, err)
	require.Len(t, jan, 2)
	assert.Equal(t, third.ID, jan[0].ID)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(docstore.NewMemory(), nil, zap.NewNop())

	created, err := repo.Create(ctx, newOrder("jan@bulls.cz", 100))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, created.ID, enum.OrderStatusShipped))
	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusShipped, got.Status)

	err = repo.UpdateStatus(ctx, created.ID, "lost")
	assert.True(t, models.IsValidation(err))

	err = repo.UpdateStatus(ctx, "missing", enum.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateFields(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(docstore.NewMemory(), nil, zap.NewNop())

	created, err := repo.Create(ctx, newOrder("jan@bulls.cz", 100))
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, created.ID, map[string]any{"notes": "Deliver after 5pm"}))
	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Deliver after 5pm", got.Notes)
	assert.Equal(t, "Praha", got.City)
}

func TestUpdateRejectsUnsafeFields(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(docstore.NewMemory(), nil, zap.NewNop())

	created, err := repo.Create(ctx, newOrder("jan@bulls.cz", 100))
	require.NoError(t, err)

	tests := []struct {
		name   string
		fields map[string]any
		field  string
	}{
		{"total is not editable", map[string]any{"totalPrice": "abc"}, "totalPrice"},
		{"items are not editable", map[string]any{"items": []any{}}, "items"},
		{"created by is not editable", map[string]any{"createdBy": "eva@bulls.cz"}, "createdBy"},
		{"wrong type", map[string]any{"notes": 5.0}, "notes"},
		{"blank required field", map[string]any{"fullName": "  "}, "fullName"},
		{"invalid email", map[string]any{"email": "nope"}, "email"},
		{"unknown status", map[string]any{"status": "lost"}, "status"},
		{"one bad field rejects all", map[string]any{"city": "Brno", "currency": "eur"}, "currency"},
		{"empty patch", map[string]any{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Update(ctx, created.ID, tt.fields)
			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	// 被拒絕的修改不會寫入，訂單仍可讀取
	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.TotalPrice)
	assert.Equal(t, "Praha", got.City)
	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Update(ctx, created.ID, map[string]any{"city": " Brno ", "notes": ""}))
	got, err = repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Brno", got.City)
	assert.Empty(t, got.Notes)
}
