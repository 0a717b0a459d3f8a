package orders

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/pagination"
)

// ErrStatusChanged reports a status update that found the order in an unexpected state.
var ErrStatusChanged = errors.New("order status changed concurrently")

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	TransitionStatus(ctx context.Context, orderID string, from, to enums.OrderStatus, updates map[string]any) error
	FindByID(ctx context.Context, sessionKey, orderID string) (*models.Order, error)
	ListBySession(ctx context.Context, sessionKey string, limit int, cursor *pagination.Cursor) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateOrder inserts the order together with its line items.
func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// TransitionStatus moves an order from one status to another, applying extra column updates.
func (r *repository) TransitionStatus(ctx context.Context, orderID string, from, to enums.OrderStatus, updates map[string]any) error {
	values := map[string]any{"status": to}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStatusChanged
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, sessionKey, orderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ? AND session_key = ?", orderID, sessionKey).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListBySession returns the newest orders of a session first, starting at cursor when set.
func (r *repository) ListBySession(ctx context.Context, sessionKey string, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	var orders []models.Order
	query := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("session_key = ?", sessionKey)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id <= ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	query = query.
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
