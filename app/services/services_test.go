package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/imaging"
	"github.com/shashiranjanraj/catalog/pkg/storage"
	"github.com/shashiranjanraj/catalog/pkg/testkit"
	"github.com/shashiranjanraj/catalog/pkg/workerpool"
)

type fixture struct {
	stores     repositories.Stores
	disk       *storage.LocalDisk
	imager     *imaging.Processor
	products   *ProductService
	favourites *FavouriteService
	vendor     models.Principal
	shopper    models.Principal
	admin      models.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stores := repositories.NewGormStores(testkit.NewDB(t))
	disk, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	pool := workerpool.New(2)
	t.Cleanup(pool.Shutdown)
	opts := imaging.DefaultOptions()
	opts.MaxWidth, opts.MaxHeight = 120, 80
	proc := imaging.NewProcessor(opts, pool)

	products := NewProductService(stores, disk, proc)
	f := &fixture{
		stores:     stores,
		disk:       disk,
		imager:     proc,
		products:   products,
		favourites: NewFavouriteService(stores, products),
	}
	f.vendor = f.user(t, "vendor@example.com", models.RoleVendor)
	f.shopper = f.user(t, "shopper@example.com", models.RoleShopper)
	f.admin = f.user(t, "admin@example.com", models.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, email, role string) models.Principal {
	t.Helper()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	u := models.User{Name: role, Email: email, Password: hash, Role: role}
	require.NoError(t, f.stores.Users.Create(context.Background(), &u))
	return models.Principal{UserID: u.ID, Role: u.Role}
}

func uploads(t *testing.T, n int) []imaging.Upload {
	t.Helper()
	out := make([]imaging.Upload, n)
	for i := range out {
		out[i] = imaging.Upload{Filename: fmt.Sprintf("img-%d.png", i), Data: testkit.PNG(t, 8+i, 8)}
	}
	return out
}

func pen() ProductInput {
	return ProductInput{
		Name:        "Pastel Pen Set",
		Description: "Set of 4 smooth-writing pens in beautiful pastel colors",
		Quantity:    100,
		Price:       12.99,
	}
}

func primaryOf(t *testing.T, v models.ProductView) (int, models.ImageView) {
	t.Helper()
	n, idx := 0, -1
	for i, img := range v.Images {
		if img.IsPrimary {
			n++
			idx = i
		}
	}
	require.Equal(t, 1, n, "exactly one primary among %d images", len(v.Images))
	return idx, v.Images[idx]
}
