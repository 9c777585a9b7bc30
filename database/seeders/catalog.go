package seeders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/logger"
)

func init() {
	Register("demo_catalog", SeedDemoCatalog)
}

// DemoVendorEmail owns every demo product.
const DemoVendorEmail = "vendor@example.com"

type demoProduct struct {
	name        string
	description string
	quantity    int
	price       float64
	image       string
}

var demoProducts = []demoProduct{
	{"Pastel Pen Set", "Set of 4 smooth-writing pens in beautiful pastel colors", 100, 12.99, "product-img-1.png"},
	{"Premium Notebooks", "High-quality hardcover notebooks with ribbon bookmarks", 50, 24.99, "product-img-2.png"},
	{"Floral Planner", "Beautiful spiral-bound planner with floral design and gold accents", 75, 19.99, "product-img-3.png"},
	{"Classic Notebook Set", "Set of minimalist notebooks in earth tones", 60, 29.99, "product-img-4.png"},
	{"Art Supply Set", "Complete stationery set with notebook and art supplies", 40, 39.99, "product-img-5.png"},
}

// SeedDemoCatalog creates the demo vendor and five products, each with one
// primary image reference. Products the vendor already has are skipped, so
// running it twice changes nothing.
func SeedDemoCatalog(ctx context.Context, stores repositories.Stores) error {
	vendor, err := demoVendor(ctx, stores.Users)
	if err != nil {
		return err
	}

	for _, d := range demoProducts {
		_, total, err := stores.Products.List(ctx, repositories.ProductQuery{
			Filters: map[repositories.Field]any{
				repositories.FieldName:   d.name,
				repositories.FieldUserID: vendor.ID,
			},
			Limit: 1,
		})
		if err != nil {
			return err
		}
		if total > 0 {
			continue
		}

		p := models.Product{
			Name:        d.name,
			Description: d.description,
			SKU:         services.GenerateSKU(),
			Quantity:    d.quantity,
			Price:       d.price,
			UserID:      vendor.ID,
		}
		if err := stores.Products.Create(ctx, &p); err != nil {
			return fmt.Errorf("create %s: %w", d.name, err)
		}
		if _, err := stores.Images.AddImage(ctx, p.ID, d.image, true, 0); err != nil {
			return fmt.Errorf("image for %s: %w", d.name, err)
		}
		logger.WithCtx(ctx).Info("seeded product", "name", p.Name, "sku", p.SKU, "price", p.Price)
	}
	return nil
}

func demoVendor(ctx context.Context, users repositories.UserStore) (models.User, error) {
	u, err := users.FindByEmail(ctx, DemoVendorEmail)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, err
	}

	hash, err := auth.HashPassword("vendor123")
	if err != nil {
		return models.User{}, err
	}
	u = models.User{Name: "Test Vendor", Email: DemoVendorEmail, Password: hash, Role: models.RoleVendor}
	if err := users.Create(ctx, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}
