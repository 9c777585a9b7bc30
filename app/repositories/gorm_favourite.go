package repositories

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/catalog/app/models"
	"gorm.io/gorm"
)

type gormFavouriteStore struct {
	db *gorm.DB
}

func (r *gormFavouriteStore) Add(ctx context.Context, userID, productID string) (models.Favourite, error) {
	fav := models.Favourite{UserID: userID, ProductID: productID}
	if err := r.db.WithContext(ctx).Create(&fav).Error; err != nil {
		return models.Favourite{}, translateGorm(err)
	}
	return fav, nil
}

func (r *gormFavouriteStore) Remove(ctx context.Context, userID, productID string) error {
	res := r.byKey(ctx, userID, productID).Delete(&models.Favourite{})
	if res.Error != nil {
		return fmt.Errorf("favourites: remove: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Toggle deletes first and inserts only when nothing was deleted. Losing an
// insert race to the unique index means the row exists, which is the state
// the caller asked for.
func (r *gormFavouriteStore) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	res := r.byKey(ctx, userID, productID).Delete(&models.Favourite{})
	if res.Error != nil {
		return false, fmt.Errorf("favourites: toggle: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return false, nil
	}

	fav := models.Favourite{UserID: userID, ProductID: productID}
	if err := r.db.WithContext(ctx).Create(&fav).Error; err != nil {
		if isDuplicate(err) {
			return true, nil
		}
		return false, fmt.Errorf("favourites: toggle: %w", err)
	}
	return true, nil
}

func (r *gormFavouriteStore) IsFavourited(ctx context.Context, userID, productID string) (bool, error) {
	var n int64
	if err := r.byKey(ctx, userID, productID).Model(&models.Favourite{}).Count(&n).Error; err != nil {
		return false, fmt.Errorf("favourites: exists: %w", err)
	}
	return n > 0, nil
}

func (r *gormFavouriteStore) ListForUser(ctx context.Context, userID string) ([]models.Favourite, error) {
	var favs []models.Favourite
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at desc").Order("id").Find(&favs).Error
	if err != nil {
		return nil, fmt.Errorf("favourites: list for %s: %w", userID, err)
	}
	return favs, nil
}

func (r *gormFavouriteStore) CountForProduct(ctx context.Context, productID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Favourite{}).Where("product_id = ?", productID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("favourites: count for %s: %w", productID, err)
	}
	return n, nil
}

func (r *gormFavouriteStore) DeleteAllForProduct(ctx context.Context, productID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.Favourite{})
	if res.Error != nil {
		return 0, fmt.Errorf("favourites: delete for product %s: %w", productID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormFavouriteStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Favourite{})
	if res.Error != nil {
		return 0, fmt.Errorf("favourites: delete for user %s: %w", userID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormFavouriteStore) ProductIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Favourite{}).Distinct("product_id").Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("favourites: product ids: %w", err)
	}
	return ids, nil
}

func (r *gormFavouriteStore) UserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Favourite{}).Distinct("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("favourites: user ids: %w", err)
	}
	return ids, nil
}

func (r *gormFavouriteStore) byKey(ctx context.Context, userID, productID string) *gorm.DB {
	return r.db.WithContext(ctx).Where("user_id = ? AND product_id = ?", userID, productID)
}
