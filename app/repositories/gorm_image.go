package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/shashiranjanraj/catalog/app/models"
	"gorm.io/gorm"
)

type gormImageStore struct {
	db *gorm.DB
}

func (r *gormImageStore) AddImage(ctx context.Context, productID, ref string, isPrimary bool, position int) (models.ProductImage, error) {
	img := models.ProductImage{
		ProductID: productID,
		ImageURL:  ref,
		IsPrimary: isPrimary,
		Position:  position,
	}
	if err := r.db.WithContext(ctx).Create(&img).Error; err != nil {
		return models.ProductImage{}, fmt.Errorf("images: add: %w", translateGorm(err))
	}
	return img, nil
}

func (r *gormImageStore) GetImage(ctx context.Context, imageID string) (models.ProductImage, error) {
	var img models.ProductImage
	err := r.db.WithContext(ctx).Where("id = ?", imageID).First(&img).Error
	return img, translateGorm(err)
}

func (r *gormImageStore) ListImages(ctx context.Context, productID string) ([]models.ProductImage, error) {
	var imgs []models.ProductImage
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("position").Order("created_at").Order("id").
		Find(&imgs).Error
	if err != nil {
		return nil, fmt.Errorf("images: list %s: %w", productID, err)
	}
	return imgs, nil
}

func (r *gormImageStore) GetPrimary(ctx context.Context, productID string) (models.ProductImage, error) {
	var img models.ProductImage
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_primary = ?", productID, true).
		Order("position").Order("created_at").Order("id").
		First(&img).Error
	return img, translateGorm(err)
}

// SetPrimary clears and sets the flag inside one transaction so no reader
// observes zero or two primaries.
func (r *gormImageStore) SetPrimary(ctx context.Context, productID, imageID string) (models.ProductImage, error) {
	var img models.ProductImage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND product_id = ?", imageID, productID).First(&img).Error; err != nil {
			return translateGorm(err)
		}
		if err := tx.Model(&models.ProductImage{}).
			Where("product_id = ? AND id <> ?", productID, imageID).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ProductImage{}).
			Where("id = ?", imageID).
			Update("is_primary", true).Error; err != nil {
			return err
		}
		img.IsPrimary = true
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.ProductImage{}, ErrNotFound
		}
		return models.ProductImage{}, fmt.Errorf("images: set primary %s: %w", imageID, err)
	}
	return img, nil
}

func (r *gormImageStore) UpdateImage(ctx context.Context, imageID string, patch models.ImagePatch) (models.ProductImage, error) {
	updates := map[string]any{}
	if patch.IsPrimary != nil {
		updates["is_primary"] = *patch.IsPrimary
	}
	if patch.ImageURL != nil {
		updates["image_url"] = *patch.ImageURL
	}
	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&models.ProductImage{}).Where("id = ?", imageID).Updates(updates)
		if res.Error != nil {
			return models.ProductImage{}, fmt.Errorf("images: update %s: %w", imageID, res.Error)
		}
	}
	return r.GetImage(ctx, imageID)
}

func (r *gormImageStore) DeleteImage(ctx context.Context, imageID string) error {
	res := r.db.WithContext(ctx).Where("id = ?", imageID).Delete(&models.ProductImage{})
	if res.Error != nil {
		return fmt.Errorf("images: delete %s: %w", imageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormImageStore) DeleteAllForProduct(ctx context.Context, productID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.ProductImage{})
	if res.Error != nil {
		return 0, fmt.Errorf("images: delete for product %s: %w", productID, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormImageStore) ProductIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.ProductImage{}).Distinct("product_id").Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("images: product ids: %w", err)
	}
	return ids, nil
}
