package services

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
)

// FavouriteService manages a user's favourite products.
type FavouriteService struct {
	favourites repositories.FavouriteStore
	products   *ProductService
}

func NewFavouriteService(stores repositories.Stores, products *ProductService) *FavouriteService {
	return &FavouriteService{favourites: stores.Favourites, products: products}
}

// Add favourites an existing product. A second add is a Conflict.
func (s *FavouriteService) Add(ctx context.Context, userID, productID string) (models.Favourite, error) {
	if _, err := s.products.find(ctx, productID); err != nil {
		return models.Favourite{}, err
	}

	fav, err := s.favourites.Add(ctx, userID, productID)
	if errors.Is(err, repositories.ErrAlreadyExists) {
		return models.Favourite{}, apperr.Conflict("Product already favourited")
	}
	if err != nil {
		return models.Favourite{}, apperr.Internal("Failed to add favourite", err)
	}
	return fav, nil
}

// Remove un-favourites a product. Removing an absent favourite is NotFound.
func (s *FavouriteService) Remove(ctx context.Context, userID, productID string) error {
	err := s.favourites.Remove(ctx, userID, productID)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound("Product already not favourited")
	}
	if err != nil {
		return apperr.Internal("Failed to remove favourite", err)
	}
	return nil
}

// Toggle flips the favourite state of an existing product.
func (s *FavouriteService) Toggle(ctx context.Context, userID, productID string) (models.ToggleResult, error) {
	if _, err := s.products.find(ctx, productID); err != nil {
		return models.ToggleResult{}, err
	}

	on, err := s.favourites.Toggle(ctx, userID, productID)
	if err != nil {
		return models.ToggleResult{}, apperr.Internal("Failed to toggle favourite", err)
	}

	if on {
		metrics.FavouriteToggles.WithLabelValues("on").Inc()
		return models.ToggleResult{IsFavourited: true, Message: "Added to favourites"}, nil
	}
	metrics.FavouriteToggles.WithLabelValues("off").Inc()
	return models.ToggleResult{IsFavourited: false, Message: "Removed from favourites"}, nil
}

// List returns the user's favourite products, newest favourite first, each
// with images and owner. Favourites of vanished products are skipped.
func (s *FavouriteService) List(ctx context.Context, userID string) ([]models.ProductView, error) {
	favs, err := s.favourites.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to list favourites", err)
	}

	owners := make(map[string]*models.PublicUser)
	out := make([]models.ProductView, 0, len(favs))
	for _, fav := range favs {
		product, err := s.products.products.FindByID(ctx, fav.ProductID)
		if errors.Is(err, repositories.ErrNotFound) {
			logger.WithCtx(ctx).Warn("favourite references missing product", "product_id", fav.ProductID, "orphaned", true)
			continue
		}
		if err != nil {
			return nil, apperr.Internal("Failed to load product", err)
		}

		v, err := s.products.view(ctx, "", product, owners)
		if err != nil {
			return nil, err
		}
		v.Favourite = true
		out = append(out, v)
	}
	return out, nil
}
