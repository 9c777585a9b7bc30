package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/apperr"
	"github.com/shashiranjanraj/catalog/pkg/bind"
	"github.com/shashiranjanraj/catalog/pkg/imaging"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
	"github.com/shashiranjanraj/catalog/pkg/storage"
)

// ImageSaver validates and stores uploads. *imaging.Processor satisfies it.
// Prepare must not write anything.
type ImageSaver interface {
	Prepare(ctx context.Context, uploads []imaging.Upload) ([]imaging.Encoded, error)
	Store(ctx context.Context, disk storage.Disk, e imaging.Encoded) (string, error)
}

// ProductInput is the payload of a create request.
type ProductInput struct {
	Name              string  `json:"name" validate:"required,max=255"`
	Description       string  `json:"description" validate:"required,max=5000"`
	Quantity          int     `json:"quantity" validate:"gte=0"`
	Price             float64 `json:"price" validate:"gt=0"`
	PrimaryImageIndex int     `json:"primaryImageIndex"`
}

// UpdateInput is the payload of an update request. When Uploads is non-empty
// it replaces every existing image and ImageIDsToDelete is ignored.
type UpdateInput struct {
	Patch             models.ProductPatch
	Uploads           []imaging.Upload
	ImageIDsToDelete  []string
	PrimaryImageIndex *int
}

// ProductService owns the product lifecycle: records, their images and the
// delete cascade to favourites.
type ProductService struct {
	products   repositories.ProductStore
	images     repositories.ImageStore
	favourites repositories.FavouriteStore
	users      repositories.UserStore
	disk       storage.Disk
	imager     ImageSaver
	newSKU     func() string
}

func NewProductService(stores repositories.Stores, disk storage.Disk, imager ImageSaver) *ProductService {
	return &ProductService{
		products:   stores.Products,
		images:     stores.Images,
		favourites: stores.Favourites,
		users:      stores.Users,
		disk:       disk,
		imager:     imager,
		newSKU:     GenerateSKU,
	}
}

const skuAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSKU returns PRD- followed by six random upper-case characters.
func GenerateSKU() string {
	b := make([]byte, 6)
	max := big.NewInt(int64(len(skuAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			n = big.NewInt(time.Now().UnixNano() % int64(len(skuAlphabet)))
		}
		b[i] = skuAlphabet[n.Int64()]
	}
	return "PRD-" + string(b)
}

const skuAttempts = 5

// Create transforms every upload, stores the product record, then its
// images concurrently. The image at in.PrimaryImageIndex becomes primary, or
// the first one when the index is out of range. A failure after the record
// is written removes it again.
func (s *ProductService) Create(ctx context.Context, actor models.Principal, in ProductInput, uploads []imaging.Upload) (models.ProductView, error) {
	if err := bind.Struct(in); err != nil {
		return models.ProductView{}, err
	}
	encoded, err := s.prepare(ctx, uploads)
	if err != nil {
		return models.ProductView{}, err
	}

	product := models.Product{
		Name:        in.Name,
		Description: in.Description,
		Quantity:    in.Quantity,
		Price:       in.Price,
		UserID:      actor.UserID,
	}

	for attempt := 0; attempt < skuAttempts; attempt++ {
		product.ID = ""
		product.SKU = s.newSKU()
		if err = s.products.Create(ctx, &product); !errors.Is(err, repositories.ErrAlreadyExists) {
			break
		}
	}
	if err != nil {
		return models.ProductView{}, apperr.Internal("Failed to create product", err)
	}

	log := logger.WithCtx(ctx).With("product_id", product.ID)

	primary := primaryIndex(in.PrimaryImageIndex, len(encoded))
	if _, err := s.storeImages(ctx, product.ID, encoded, primary); err != nil {
		log.Error("product images failed", "error", err)
		if derr := s.products.Delete(ctx, product.ID); derr != nil {
			log.Error("remove product after failed images", "orphaned", true, "error", derr)
		}
		return models.ProductView{}, classify("Failed to store product images", err)
	}

	metrics.ProductsCreated.Inc()
	log.Info("product created", "sku", product.SKU, "images", len(encoded))
	return s.view(ctx, actor.UserID, product, nil)
}

// prepare validates and transforms uploads without writing anything.
func (s *ProductService) prepare(ctx context.Context, uploads []imaging.Upload) ([]imaging.Encoded, error) {
	start := time.Now()
	encoded, err := s.imager.Prepare(ctx, uploads)
	metrics.ObserveSince(metrics.ImageProcessing, start)
	if err != nil {
		metrics.ImagesStored.WithLabelValues("rejected").Add(float64(len(uploads)))
		return nil, classify("Failed to process product images", err)
	}
	return encoded, nil
}

// classify keeps classified errors as they are and wraps the rest as
// Internal with msg.
func classify(msg string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Internal(msg, err)
}

// primaryIndex returns p when it addresses one of n images, else 0.
func primaryIndex(p, n int) int {
	if p < 0 || p >= n {
		return 0
	}
	return p
}

// storeImages writes and records encoded images concurrently. primary is
// the index flagged primary on insert; -1 inserts every image non-primary.
// The result is indexed like encoded. On failure every image it recorded is
// removed again.
func (s *ProductService) storeImages(ctx context.Context, productID string, encoded []imaging.Encoded, primary int) ([]models.ProductImage, error) {
	saved := make([]models.ProductImage, len(encoded))
	g, gctx := errgroup.WithContext(ctx)

	for i, e := range encoded {
		i, e := i, e
		g.Go(func() error {
			ref, err := s.imager.Store(gctx, s.disk, e)
			if err != nil {
				metrics.ImagesStored.WithLabelValues("failed").Inc()
				return fmt.Errorf("store %s: %w", e.Filename, err)
			}

			img, err := s.images.AddImage(gctx, productID, ref, i == primary, i)
			if err != nil {
				metrics.ImagesStored.WithLabelValues("failed").Inc()
				s.removeFiles(ctx, ref)
				return fmt.Errorf("record %s: %w", e.Filename, err)
			}
			metrics.ImagesStored.WithLabelValues("stored").Inc()
			saved[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discardImages(ctx, saved)
		return nil, err
	}
	return saved, nil
}

// discardImages deletes the recorded entries of imgs and their files.
func (s *ProductService) discardImages(ctx context.Context, imgs []models.ProductImage) {
	for _, img := range imgs {
		if img.ID == "" {
			continue
		}
		if err := s.images.DeleteImage(ctx, img.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logger.WithCtx(ctx).Error("discard image failed", "image_id", img.ID, "orphaned", true, "error", err)
		}
		s.removeFiles(ctx, img.ImageURL)
	}
}

// Update applies the patch and the image changes. See UpdateInput.
func (s *ProductService) Update(ctx context.Context, actor models.Principal, id string, in UpdateInput) (models.ProductView, error) {
	product, err := s.owned(ctx, actor, id)
	if err != nil {
		return models.ProductView{}, err
	}
	if err := validatePatch(in.Patch); err != nil {
		return models.ProductView{}, err
	}

	if len(in.Uploads) > 0 {
		err = s.replaceImages(ctx, id, in)
	} else {
		err = s.pruneImages(ctx, id, in)
	}
	if err != nil {
		return models.ProductView{}, err
	}

	if !in.Patch.Empty() {
		product, err = s.products.Update(ctx, id, in.Patch)
		if err != nil {
			return models.ProductView{}, apperr.Internal("Failed to update product", err)
		}
	}

	logger.WithCtx(ctx).Info("product updated", "product_id", id)
	return s.view(ctx, actor.UserID, product, nil)
}

func validatePatch(p models.ProductPatch) error {
	fields := map[string]string{}
	if p.Name != nil && (*p.Name == "" || len(*p.Name) > 255) {
		fields["name"] = "must be 1 to 255 characters"
	}
	if p.Description != nil && (*p.Description == "" || len(*p.Description) > 5000) {
		fields["description"] = "must be 1 to 5000 characters"
	}
	if p.Quantity != nil && *p.Quantity < 0 {
		fields["quantity"] = "must be greater than or equal to 0"
	}
	if p.Price != nil && *p.Price <= 0 {
		fields["price"] = "must be greater than 0"
	}
	if len(fields) > 0 {
		return apperr.Validation("Validation failed", fields)
	}
	return nil
}

// replaceImages swaps every existing image for the uploads. The new set is
// transformed and stored non-primary first, so a failure leaves the old set
// and its primary untouched. Then the old images are deleted and the
// requested new one promoted.
func (s *ProductService) replaceImages(ctx context.Context, productID string, in UpdateInput) error {
	encoded, err := s.prepare(ctx, in.Uploads)
	if err != nil {
		return err
	}

	old, err := s.images.ListImages(ctx, productID)
	if err != nil {
		return apperr.Internal("Failed to load product images", err)
	}

	saved, err := s.storeImages(ctx, productID, encoded, -1)
	if err != nil {
		logger.WithCtx(ctx).Error("replacement images failed", "product_id", productID, "error", err)
		return classify("Failed to store product images", err)
	}

	for _, img := range old {
		if err := s.images.DeleteImage(ctx, img.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			s.restorePrimary(ctx, productID)
			return apperr.Internal("Failed to replace product images", err)
		}
	}
	s.removeFiles(ctx, refs(old)...)

	p := 0
	if in.PrimaryImageIndex != nil {
		p = primaryIndex(*in.PrimaryImageIndex, len(saved))
	}
	if _, err := s.images.SetPrimary(ctx, productID, saved[p].ID); err != nil {
		s.restorePrimary(ctx, productID)
		return apperr.Internal("Failed to set primary image", err)
	}
	return nil
}

// pruneImages deletes the listed images, which must all belong to the
// product, then re-selects the primary among the rest.
func (s *ProductService) pruneImages(ctx context.Context, productID string, in UpdateInput) error {
	current, err := s.images.ListImages(ctx, productID)
	if err != nil {
		return apperr.Internal("Failed to load product images", err)
	}

	if len(in.ImageIDsToDelete) > 0 {
		byID := make(map[string]models.ProductImage, len(current))
		for _, img := range current {
			byID[img.ID] = img
		}
		var foreign []string
		for _, imgID := range in.ImageIDsToDelete {
			if _, ok := byID[imgID]; !ok {
				foreign = append(foreign, imgID)
			}
		}
		if len(foreign) > 0 {
			return apperr.Validation("Invalid image ids",
				map[string]string{"imageIdsToDelete": fmt.Sprintf("%v do not belong to this product", foreign)})
		}

		removed := make([]string, 0, len(in.ImageIDsToDelete))
		for _, imgID := range in.ImageIDsToDelete {
			if err := s.images.DeleteImage(ctx, imgID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return apperr.Internal("Failed to delete image", err)
			}
			removed = append(removed, byID[imgID].ImageURL)
		}
		s.removeFiles(ctx, removed...)

		if current, err = s.images.ListImages(ctx, productID); err != nil {
			return apperr.Internal("Failed to load product images", err)
		}
	}

	if in.PrimaryImageIndex != nil && *in.PrimaryImageIndex >= 0 && *in.PrimaryImageIndex < len(current) {
		target := current[*in.PrimaryImageIndex]
		if !target.IsPrimary || countPrimary(current) != 1 {
			if _, err := s.images.SetPrimary(ctx, productID, target.ID); err != nil {
				return apperr.Internal("Failed to set primary image", err)
			}
		}
		return nil
	}
	return s.ensurePrimary(ctx, productID, current)
}

func countPrimary(imgs []models.ProductImage) int {
	n := 0
	for _, img := range imgs {
		if img.IsPrimary {
			n++
		}
	}
	return n
}

// ensurePrimary promotes the first image when none is primary.
func (s *ProductService) ensurePrimary(ctx context.Context, productID string, imgs []models.ProductImage) error {
	if len(imgs) == 0 || countPrimary(imgs) == 1 {
		return nil
	}
	if _, err := s.images.SetPrimary(ctx, productID, imgs[0].ID); err != nil {
		return apperr.Internal("Failed to set primary image", err)
	}
	return nil
}

// restorePrimary re-establishes a single primary after a partial failure.
func (s *ProductService) restorePrimary(ctx context.Context, productID string) {
	imgs, err := s.images.ListImages(ctx, productID)
	if err == nil {
		err = s.ensurePrimary(ctx, productID, imgs)
	}
	if err != nil {
		logger.WithCtx(ctx).Error("restore primary image failed", "product_id", productID, "error", err)
	}
}

// SetPrimaryImage makes imageID the only primary image of the product.
func (s *ProductService) SetPrimaryImage(ctx context.Context, actor models.Principal, productID, imageID string) (models.ProductView, error) {
	product, err := s.owned(ctx, actor, productID)
	if err != nil {
		return models.ProductView{}, err
	}
	if _, err := s.images.SetPrimary(ctx, productID, imageID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.ProductView{}, apperr.NotFound("Image not found")
		}
		return models.ProductView{}, apperr.Internal("Failed to set primary image", err)
	}
	return s.view(ctx, actor.UserID, product, nil)
}

// RemoveImage deletes one image. Removing the primary promotes the first
// remaining image.
func (s *ProductService) RemoveImage(ctx context.Context, actor models.Principal, productID, imageID string) (models.ProductView, error) {
	product, err := s.owned(ctx, actor, productID)
	if err != nil {
		return models.ProductView{}, err
	}

	img, err := s.images.GetImage(ctx, imageID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && img.ProductID != productID) {
		return models.ProductView{}, apperr.NotFound("Image not found")
	}
	if err != nil {
		return models.ProductView{}, apperr.Internal("Failed to load image", err)
	}

	if err := s.images.DeleteImage(ctx, imageID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return models.ProductView{}, apperr.Internal("Failed to delete image", err)
	}
	s.removeFiles(ctx, img.ImageURL)

	_, err = s.images.GetPrimary(ctx, productID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		rest, err := s.images.ListImages(ctx, productID)
		if err != nil {
			return models.ProductView{}, apperr.Internal("Failed to load product images", err)
		}
		if err := s.ensurePrimary(ctx, productID, rest); err != nil {
			return models.ProductView{}, err
		}
	case err != nil:
		return models.ProductView{}, apperr.Internal("Failed to load primary image", err)
	}
	return s.view(ctx, actor.UserID, product, nil)
}

// cascade step names, also used as metric labels.
const (
	stepProduct    = "product"
	stepImages     = "images"
	stepFavourites = "favourites"
)

// Delete removes the product, its images and its favourites concurrently.
// Steps do not roll back: every failed step is logged as a possible orphan
// and counted, and the joined error is returned as Internal.
func (s *ProductService) Delete(ctx context.Context, actor models.Principal, id string) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}

	log := logger.WithCtx(ctx).With("product_id", id)

	imgs, err := s.images.ListImages(ctx, id)
	if err != nil {
		log.Warn("list images before delete failed", "error", err)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{stepProduct, func() error { return s.products.Delete(ctx, id) }},
		{stepImages, func() error { _, err := s.images.DeleteAllForProduct(ctx, id); return err }},
		{stepFavourites, func() error { _, err := s.favourites.DeleteAllForProduct(ctx, id); return err }},
	}

	errs := make([]error, len(steps))
	var wg sync.WaitGroup
	for i, step := range steps {
		i, step := i, step
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := step.run(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", step.name, err)
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			metrics.CascadeFailures.WithLabelValues(steps[i].name).Inc()
			log.Error("product delete step failed", "step", steps[i].name, "orphaned", true, "error", err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return apperr.Internal("Failed to delete product", err)
	}

	s.removeFiles(ctx, refs(imgs)...)
	log.Info("product deleted", "images", len(imgs))
	return nil
}

// Get returns one product enriched for viewerID, with its favourite count.
func (s *ProductService) Get(ctx context.Context, viewerID, id string) (models.ProductView, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return models.ProductView{}, err
	}
	view, err := s.view(ctx, viewerID, product, nil)
	if err != nil {
		return models.ProductView{}, err
	}
	count, err := s.favourites.CountForProduct(ctx, id)
	if err != nil {
		return models.ProductView{}, apperr.Internal("Failed to count favourites", err)
	}
	view.FavouriteCount = &count
	return view, nil
}

func (s *ProductService) find(ctx context.Context, id string) (models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Product{}, apperr.NotFound("Product not found")
	}
	if err != nil {
		return models.Product{}, apperr.Internal("Failed to load product", err)
	}
	return product, nil
}

// owned loads the product and checks actor may mutate it.
func (s *ProductService) owned(ctx context.Context, actor models.Principal, id string) (models.Product, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	if product.UserID != actor.UserID && !actor.IsAdmin() {
		return models.Product{}, apperr.Forbidden("You do not own this product")
	}
	return product, nil
}

// view enriches p with images, owner and the viewer's favourite flag.
// owners caches owner lookups across one call; nil disables caching.
func (s *ProductService) view(ctx context.Context, viewerID string, p models.Product, owners map[string]*models.PublicUser) (models.ProductView, error) {
	imgs, err := s.images.ListImages(ctx, p.ID)
	if err != nil {
		return models.ProductView{}, apperr.Internal("Failed to load product images", err)
	}

	v := models.ProductView{Product: p, Images: make([]models.ImageView, 0, len(imgs))}
	for _, img := range imgs {
		v.Images = append(v.Images, models.ImageView{ProductImage: img, URL: s.disk.URL(img.ImageURL)})
	}

	owner, cached := owners[p.UserID]
	if !cached {
		u, err := s.users.FindByID(ctx, p.UserID)
		switch {
		case err == nil:
			pub := u.Public()
			owner = &pub
		case !errors.Is(err, repositories.ErrNotFound):
			return models.ProductView{}, apperr.Internal("Failed to load product owner", err)
		}
		if owners != nil {
			owners[p.UserID] = owner
		}
	}
	v.User = owner

	if viewerID != "" {
		fav, err := s.favourites.IsFavourited(ctx, viewerID, p.ID)
		if err != nil {
			return models.ProductView{}, apperr.Internal("Failed to load favourite state", err)
		}
		v.Favourite = fav
	}
	return v, nil
}

// removeFiles deletes stored files best-effort.
func (s *ProductService) removeFiles(ctx context.Context, names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := s.disk.Delete(ctx, name); err != nil {
			logger.WithCtx(ctx).Warn("stored image not removed", "file", name, "error", err)
		}
	}
}

func refs(imgs []models.ProductImage) []string {
	out := make([]string, 0, len(imgs))
	for _, img := range imgs {
		out = append(out, img.ImageURL)
	}
	return out
}
