package services

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
)

// SweepReport summarises one orphan sweep.
type SweepReport struct {
	DryRun            bool     `json:"dryRun"`
	OrphanProductIDs  []string `json:"orphanProductIds"`
	OrphanUserIDs     []string `json:"orphanUserIds"`
	ImagesRemoved     int64    `json:"imagesRemoved"`
	FavouritesRemoved int64    `json:"favouritesRemoved"`
}

// MaintenanceService reconciles rows left behind by partially failed
// delete cascades.
type MaintenanceService struct {
	users      repositories.UserStore
	products   repositories.ProductStore
	images     repositories.ImageStore
	favourites repositories.FavouriteStore
}

func NewMaintenanceService(stores repositories.Stores) *MaintenanceService {
	return &MaintenanceService{users: stores.Users, products: stores.Products, images: stores.Images, favourites: stores.Favourites}
}

// SweepOrphans deletes images and favourites whose product no longer
// exists, and favourites whose user no longer exists. With dryRun it only
// reports them.
func (s *MaintenanceService) SweepOrphans(ctx context.Context, dryRun bool) (SweepReport, error) {
	report := SweepReport{DryRun: dryRun, OrphanProductIDs: []string{}, OrphanUserIDs: []string{}}

	imageOwners, err := s.images.ProductIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("sweep: image product ids: %w", err)
	}
	favOwners, err := s.favourites.ProductIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("sweep: favourite product ids: %w", err)
	}

	seen := make(map[string]bool, len(imageOwners)+len(favOwners))
	var ids []string
	for _, id := range append(imageOwners, favOwners...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	existing, err := s.products.Existing(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("sweep: existing products: %w", err)
	}

	log := logger.WithCtx(ctx)
	for _, id := range ids {
		if existing[id] {
			continue
		}
		report.OrphanProductIDs = append(report.OrphanProductIDs, id)
		if dryRun {
			continue
		}

		n, err := s.images.DeleteAllForProduct(ctx, id)
		if err != nil {
			return report, fmt.Errorf("sweep: images of %s: %w", id, err)
		}
		report.ImagesRemoved += n

		m, err := s.favourites.DeleteAllForProduct(ctx, id)
		if err != nil {
			return report, fmt.Errorf("sweep: favourites of %s: %w", id, err)
		}
		report.FavouritesRemoved += m
	}

	if err := s.sweepUsers(ctx, dryRun, &report); err != nil {
		return report, err
	}

	metrics.OrphansSwept.WithLabelValues("images").Add(float64(report.ImagesRemoved))
	metrics.OrphansSwept.WithLabelValues("favourites").Add(float64(report.FavouritesRemoved))
	log.Info("orphan sweep finished",
		"dry_run", dryRun,
		"orphan_products", len(report.OrphanProductIDs),
		"orphan_users", len(report.OrphanUserIDs),
		"images_removed", report.ImagesRemoved,
		"favourites_removed", report.FavouritesRemoved,
	)
	return report, nil
}

func (s *MaintenanceService) sweepUsers(ctx context.Context, dryRun bool, report *SweepReport) error {
	ids, err := s.favourites.UserIDs(ctx)
	if err != nil {
		return fmt.Errorf("sweep: favourite user ids: %w", err)
	}
	existing, err := s.users.Existing(ctx, ids)
	if err != nil {
		return fmt.Errorf("sweep: existing users: %w", err)
	}
	for _, id := range ids {
		if existing[id] {
			continue
		}
		report.OrphanUserIDs = append(report.OrphanUserIDs, id)
		if dryRun {
			continue
		}
		n, err := s.favourites.DeleteAllForUser(ctx, id)
		if err != nil {
			return fmt.Errorf("sweep: favourites of user %s: %w", id, err)
		}
		report.FavouritesRemoved += n
	}
	return nil
}
