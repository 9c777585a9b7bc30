package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shashiranjanraj/catalog/app/models"
	"gorm.io/gorm"
)

type gormProductStore struct {
	db *gorm.DB
}

func (r *gormProductStore) Create(ctx context.Context, product *models.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("products: create: %w", translateGorm(err))
	}
	return nil
}

func (r *gormProductStore) FindByID(ctx context.Context, id string) (models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	return product, translateGorm(err)
}

func (r *gormProductStore) Update(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	if _, err := r.FindByID(ctx, id); err != nil {
		return models.Product{}, err
	}

	if !patch.Empty() {
		updates := map[string]any{"updated_at": time.Now()}
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Quantity != nil {
			updates["quantity"] = *patch.Quantity
		}
		if patch.Price != nil {
			updates["price"] = *patch.Price
		}
		err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error
		if err != nil {
			return models.Product{}, fmt.Errorf("products: update %s: %w", id, translateGorm(err))
		}
	}
	return r.FindByID(ctx, id)
}

func (r *gormProductStore) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return fmt.Errorf("products: delete %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormProductStore) List(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Product{})
	for field, value := range q.Filters {
		col, ok := gormColumns[field]
		if !ok {
			return nil, 0, fmt.Errorf("products: unknown filter field %q", field)
		}
		base = base.Where(col+" = ?", value)
	}
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		base = base.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	base = base.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("products: count: %w", err)
	}

	order := "created_at"
	if col, ok := gormColumns[q.Sort]; ok {
		order = col
	}
	if q.Desc {
		order += " desc"
	}

	var items []models.Product
	err := base.Order(order).Order("id").Limit(q.Limit).Offset(q.Offset).Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("products: list: %w", err)
	}
	return items, total, nil
}

func (r *gormProductStore) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []string
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("products: existing: %w", err)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}
