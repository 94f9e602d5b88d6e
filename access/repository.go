package access

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"gofalre.io/bulls/docstore"
	"gofalre.io/bulls/models"
)

// Collection holds one document per allowed back-office user, keyed by email.
const Collection = "access"

var _ Repository = (*repository)(nil)

type Repository interface {
	// Check reports whether email may use the back office. Lookup failures
	// deny access.
	Check(ctx context.Context, email string) bool
	List(ctx context.Context) ([]*models.AccessUser, error)
	// Add writes the access entry, replacing whatever was stored for email.
	Add(ctx context.Context, email string, hasAccess bool) error
	// SetAccess changes only the hasAccess flag of the entry.
	SetAccess(ctx context.Context, email string, hasAccess bool) error
}

type repository struct {
	store  docstore.Store
	logger *zap.Logger
}

func NewRepository(store docstore.Store, logger *zap.Logger) Repository {
	return &repository{
		store:  store,
		logger: logger,
	}
}

func (r *repository) Check(ctx context.Context, email string) bool {
	email = normalizeEmail(email)
	if email == "" {
		return false
	}

	doc, err := r.store.Get(ctx, Collection, email)
	if err != nil {
		if !errors.Is(err, docstore.ErrNotFound) {
			r.logger.Error("Failed to check user access", zap.String("email", email), zap.Error(err))
		}
		return false
	}
	hasAccess, _ := doc.Data["hasAccess"].(bool)
	return hasAccess
}

func (r *repository) List(ctx context.Context) ([]*models.AccessUser, error) {
	docs, err := r.store.List(ctx, Collection, docstore.Filter{})
	if err != nil {
		r.logger.Error("Failed to get allowed users", zap.Error(err))
		return nil, err
	}

	users := make([]*models.AccessUser, 0, len(docs))
	for _, doc := range docs {
		hasAccess, _ := doc.Data["hasAccess"].(bool)
		users = append(users, &models.AccessUser{
			Email:     doc.ID,
			HasAccess: hasAccess,
			UpdatedAt: doc.UpdatedAt,
		})
	}
	return users, nil
}

func (r *repository) Add(ctx context.Context, email string, hasAccess bool) error {
	email, err := validEmail(email)
	if err != nil {
		return err
	}

	data := map[string]any{"email": email, "hasAccess": hasAccess}
	if err = r.store.Set(ctx, Collection, email, data, false); err != nil {
		r.logger.Error("Failed to add allowed user", zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) SetAccess(ctx context.Context, email string, hasAccess bool) error {
	email, err := validEmail(email)
	if err != nil {
		return err
	}

	if err = r.store.Set(ctx, Collection, email, map[string]any{"hasAccess": hasAccess}, true); err != nil {
		r.logger.Error("Failed to set user access", zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", models.NewValidationError("email", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", models.NewValidationError("email", "is not a valid email address")
	}
	return email, nil
}
