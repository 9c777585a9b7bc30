package repositories_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
)

// runContract executes every store test against fresh stores from factory.
func runContract(t *testing.T, factory func(*testing.T) repositories.Stores) {
	for _, tc := range contract {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, factory(t))
		})
	}
}

var contract = []struct {
	name string
	fn   func(*testing.T, repositories.Stores)
}{
	{"ImageStore_SetPrimaryIsExclusive", testImageStoreSetPrimaryIsExclusive},
	{"ImageStore_SetPrimaryAtomicForReaders", testImageStoreSetPrimaryAtomicForReaders},
	{"ImageStore_GetPrimary", testImageStoreGetPrimary},
	{"ImageStore_SetPrimaryForeignImageChangesNothing", testImageStoreSetPrimaryForeignImageChangesNothing},
	{"ImageStore_DeleteDoesNotRepromote", testImageStoreDeleteDoesNotRepromote},
	{"ImageStore_UpdateAndDeleteAll", testImageStoreUpdateAndDeleteAll},
	{"FavouriteStore_AddTwiceConflicts", testFavouriteStoreAddTwiceConflicts},
	{"FavouriteStore_RemoveMissing", testFavouriteStoreRemoveMissing},
	{"FavouriteStore_ToggleIdempotence", testFavouriteStoreToggleIdempotence},
	{"FavouriteStore_ConcurrentTogglesNeverDuplicate", testFavouriteStoreConcurrentTogglesNeverDuplicate},
	{"FavouriteStore_ListAndBulkDelete", testFavouriteStoreListAndBulkDelete},
	{"ProductStore_ListFiltersSortsAndPages", testProductStoreListFiltersSortsAndPages},
	{"ProductStore_UpdateAndDelete", testProductStoreUpdateAndDelete},
	{"UserStore_UniqueEmail", testUserStoreUniqueEmail},
}

func seedProduct(t *testing.T, s repositories.Stores, name string) models.Product {
	t.Helper()
	p := models.Product{Name: name, SKU: "PRD-" + name, Quantity: 1, Price: 1, UserID: "owner"}
	require.NoError(t, s.Products.Create(context.Background(), &p))
	return p
}

func primaries(imgs []models.ProductImage) int {
	n := 0
	for _, img := range imgs {
		if img.IsPrimary {
			n++
		}
	}
	return n
}

func testImageStoreSetPrimaryAtomicForReaders(t *testing.T, s repositories.Stores) {
	ctx := context.Background()
	p := seedProduct(t, s, "flip")

	a, err := s.Images.AddImage(ctx, p.ID, "a.png", true, 0)
	require.NoError(t, err)
	b, err := s.Images.AddImage(ctx, p.ID, "b.png", false, 1)
	require.NoError(t, err)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		for i := 0; i < 50; i++ {
			target := a.ID
			if i%2 == 0 {
				target = b.ID
			}
			_, err := s.Images.SetPrimary(ctx, p.ID, target)
			assert.NoError(t, err)
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				imgs, err := s.Images.ListImages(ctx, p.ID)
				if assert.NoError(t, err) {
					assert.Equal(t, 1, primaries(imgs), "reader saw %d primaries", primaries(imgs))
				}
				select {
				case <-done:
					return
				default:
				}
			}
		}()
	}
	wg.Wait()

	got, err := s.Images.GetPrimary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID, "last flip targets a")
}

func testImageStoreGetPrimary(t *testing.T, s repositories.Stores) {
	ctx := context.Background()
	p := seedProduct(t, s, "cups")

	_, err := s.Images.GetPrimary(ctx, p.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound, "no images")

	a, err := s.Images.AddImage(ctx, p.ID, "a.png", false, 0)
	require.NoError(t, err)
	_, err = s.Images.GetPrimary(ctx, p.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound, "no primary")

	b, err := s.Images.AddImage(ctx, p.ID, "b.png", true, 1)
	require.NoError(t, err)
	got, err := s.Images.GetPrimary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = s.Images.SetPrimary(ctx, p.ID, a.ID)
	require.NoError(t, err)
	got, err = s.Images.GetPrimary(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, got.IsPrimary)

	require.NoError(t, s.Images.DeleteImage(ctx, a.ID))
	_, err = s.Images.GetPrimary(ctx, p.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound, "delete does not re-promote")
}

func testImageStoreSetPrimaryIsExclusive(t *testing.T, s repositories.Stores) {
	ctx := context.Background()
	p := seedProduct(t, s, "pens")

	a, err := s.Images.AddImage(ctx, p.ID, "a.png", true, 0)
	require.NoError(t, err)
	b, err := s.Images.AddImage(ctx, p.ID, "b.png", false, 1)
	require.NoError(t, err)

	got, err := s.Images.SetPrimary(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPrimary)

	imgs, err := s.Images.ListImages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, 1, primaries(imgs))
	assert.Equal(t, a.ID, imgs[0].ID)
	assert.False(t, imgs[0].IsPrimary)
	assert.True(t, imgs[1].IsPrimary)
}

func testImageStoreSetPrimaryForeignImageChangesNothing(t *testing.T, s repositories.Stores) {
	ctx := context.Background()
	p := seedProduct(t, s, "pens")
	other := seedProduct(t, s, "books")

	a, err := s.Images.AddImage(ctx, p.ID, "a.png", true, 0)
	require.NoError(t, err)
	foreign, err := s.Images.AddImage(ctx, other.ID, "x.png", true, 0)
	require.NoError(t, err)

	_, err = s.Images.SetPrimary(ctx, p.ID, foreign.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	got, err := s.Images.GetImage(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPrimary)
	got, err = s.Images.GetImage(ctx, foreign.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPrimary)
}

func testImageStoreDeleteDoesNotRepromote(t *testing.T, s repositories.Stores) {
	ctx := context.Background()
	p := seedProduct(t, s, "pens")

	a, _ := s.Images.AddImage(ctx, p.ID, "a.png", true, 0)
	_, _ = s.Images.AddImage(ctx, p.ID, "b.png", false, 1)

	require.NoError(t, s.Images.DeleteImage(ctx, a.ID))
	assert.ErrorIs(t, s.Images.DeleteImage(ctx, a.ID), repositories.ErrNotFound)

	imgs, err := s.Images.ListImages(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 1)
	assert.Zero(t, primaries(imgs))
}

func testImageStoreUpdateAndDeleteAll(t *testing.T, s repositories.Stores) {
	ctx := context.Background()
	p := seedProduct(t, s, "pens")

	a, _ := s.Images.AddImage(ctx, p.ID, "a.png", false, 0)
	ref := "a2.png"
	primary := true
	got, err := s.Images.UpdateImage(ctx, a.ID, models.ImagePatch{ImageURL: &ref, IsPrimary: &primary})
	require.NoError(t, err)
	assert.Equal(t, "a2.png", got.ImageURL)
	assert.True(t, got.IsPrimary)

	_, _ = s.Images.AddImage(ctx, p.ID, "b.png", false, 1)
	n, err := s.Images.DeleteAllForProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	imgs, err := s.Images.ListImages(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, imgs)
}

func testFavouriteStoreAddTwiceConflicts(t *testing.T, s repositories.Stores) {
	ctx := context.Background()

	_, err := s.Favourites.Add(ctx, "u1", "p1")
	require.NoError(t, err)
	_, err = s.Favourites.Add(ctx, "u1", "p1")
	assert.ErrorIs(t, err, repositories.ErrAlreadyExists)

	n, err := s.Favourites.CountForProduct(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testFavouriteStoreRemoveMissing(t *testing.T, s repositories.Stores) {
	assert.ErrorIs(t, s.Favourites.Remove(context.Background(), "u1", "p1"), repositories.ErrNotFound)
}

func testFavouriteStoreToggleIdempotence(t *testing.T, s repositories.Stores) {
	ctx := context.Background()

	on, err := s.Favourites.Toggle(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.True(t, on)

	off, err := s.Favourites.Toggle(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.False(t, off)

	exists, err := s.Favourites.IsFavourited(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func testFavouriteStoreConcurrentTogglesNeverDuplicate(t *testing.T, s repositories.Stores) {
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Favourites.Toggle(ctx, "u1", "p1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.Favourites.CountForProduct(ctx, "p1")
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(1))
}

func testFavouriteStoreListAndBulkDelete(t *testing.T, s repositories.Stores) {
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Favourites.Add(ctx, "u1", fmt.Sprintf("p%d", i))
		require.NoError(t, err)
	}
	_, err := s.Favourites.Add(ctx, "u2", "p0")
	require.NoError(t, err)

	favs, err := s.Favourites.ListForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, favs, 3)

	n, err := s.Favourites.DeleteAllForProduct(ctx, "p0")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	ids, err := s.Favourites.ProductIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, ids)

	users, err := s.Favourites.UserIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1"}, users)

	n, err = s.Favourites.DeleteAllForUser(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	users, err = s.Favourites.UserIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func testProductStoreListFiltersSortsAndPages(t *testing.T, s repositories.Stores) {
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		p := models.Product{Name: fmt.Sprintf("item-%d", i), SKU: fmt.Sprintf("PRD-%d", i), Quantity: i % 2, Price: float64(i), UserID: "v1"}
		require.NoError(t, s.Products.Create(ctx, &p))
	}

	items, total, err := s.Products.List(ctx, repositories.ProductQuery{Sort: repositories.FieldPrice, Desc: true, Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, items, 2)
	assert.Equal(t, 5.0, items[0].Price)
	assert.Equal(t, 4.0, items[1].Price)

	items, total, err = s.Products.List(ctx, repositories.ProductQuery{
		Filters: map[repositories.Field]any{repositories.FieldQuantity: 1},
		Sort:    repositories.FieldPrice,
		Limit:   10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 3)
	assert.Equal(t, 1.0, items[0].Price)

	notebook := models.Product{Name: "Premium Notebooks", Description: "A5 dotted", SKU: "PRD-NB", UserID: "v2"}
	require.NoError(t, s.Products.Create(ctx, &notebook))

	items, total, err = s.Products.List(ctx, repositories.ProductQuery{Search: "DOTTED", Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, notebook.ID, items[0].ID)

	_, total, err = s.Products.List(ctx, repositories.ProductQuery{
		Search:  "notebook",
		Filters: map[repositories.Field]any{repositories.FieldUserID: "v1"},
		Limit:   10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func testProductStoreUpdateAndDelete(t *testing.T, s repositories.Stores) {
	ctx := context.Background()
	p := seedProduct(t, s, "pens")

	name := "Pastel Pen Set"
	price := 12.99
	got, err := s.Products.Update(ctx, p.ID, models.ProductPatch{Name: &name, Price: &price})
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, price, got.Price)
	assert.Equal(t, p.Quantity, got.Quantity)

	_, err = s.Products.Update(ctx, "missing", models.ProductPatch{Name: &name})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	existing, err := s.Products.Existing(ctx, []string{p.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{p.ID: true}, existing)

	require.NoError(t, s.Products.Delete(ctx, p.ID))
	assert.ErrorIs(t, s.Products.Delete(ctx, p.ID), repositories.ErrNotFound)
}

func testUserStoreUniqueEmail(t *testing.T, s repositories.Stores) {
	ctx := context.Background()

	u := models.User{Name: "Vendor", Email: "vendor@example.com", Password: "hash", Role: models.RoleVendor}
	require.NoError(t, s.Users.Create(ctx, &u))
	assert.NotEmpty(t, u.ID)

	dup := models.User{Name: "Other", Email: "vendor@example.com", Password: "hash"}
	assert.ErrorIs(t, s.Users.Create(ctx, &dup), repositories.ErrAlreadyExists)

	got, err := s.Users.FindByEmail(ctx, "vendor@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Users.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	existing, err := s.Users.Existing(ctx, []string{u.ID, "nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{u.ID: true}, existing)

	empty, err := s.Users.Existing(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
