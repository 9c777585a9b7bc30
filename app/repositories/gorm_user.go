package repositories

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/catalog/app/models"
	"gorm.io/gorm"
)

type gormUserStore struct {
	db *gorm.DB
}

func (r *gormUserStore) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("users: create: %w", translateGorm(err))
	}
	return nil
}

func (r *gormUserStore) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	return user, translateGorm(err)
}

func (r *gormUserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return user, translateGorm(err)
}

func (r *gormUserStore) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []string
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("users: existing: %w", err)
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}
