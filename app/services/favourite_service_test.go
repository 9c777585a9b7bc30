package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/pkg/apperr"
)

func TestFavourites_AddTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.products.Create(ctx, f.vendor, pen(), nil)
	require.NoError(t, err)

	_, err = f.favourites.Add(ctx, f.shopper.UserID, v.ID)
	require.NoError(t, err)
	_, err = f.favourites.Add(ctx, f.shopper.UserID, v.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	n, err := f.stores.Favourites.CountForProduct(ctx, v.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.favourites.Add(ctx, f.shopper.UserID, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFavourites_RemoveAbsentIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.products.Create(ctx, f.vendor, pen(), nil)
	require.NoError(t, err)

	err = f.favourites.Remove(ctx, f.shopper.UserID, v.ID)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindNotFound, e.Kind)
	assert.Equal(t, "Product already not favourited", e.Message)

	_, err = f.favourites.Add(ctx, f.shopper.UserID, v.ID)
	require.NoError(t, err)
	assert.NoError(t, f.favourites.Remove(ctx, f.shopper.UserID, v.ID))
}

func TestFavourites_ToggleIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.products.Create(ctx, f.vendor, pen(), nil)
	require.NoError(t, err)

	on, err := f.favourites.Toggle(ctx, f.shopper.UserID, v.ID)
	require.NoError(t, err)
	assert.True(t, on.IsFavourited)
	assert.Equal(t, "Added to favourites", on.Message)

	off, err := f.favourites.Toggle(ctx, f.shopper.UserID, v.ID)
	require.NoError(t, err)
	assert.False(t, off.IsFavourited)

	ok, err := f.stores.Favourites.IsFavourited(ctx, f.shopper.UserID, v.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.favourites.Toggle(ctx, f.shopper.UserID, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFavourites_ConcurrentTogglesLeaveAtMostOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.products.Create(ctx, f.vendor, pen(), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.favourites.Toggle(ctx, f.shopper.UserID, v.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := f.stores.Favourites.CountForProduct(ctx, v.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(1))
}

func TestFavourites_ListExpandsProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.products.Create(ctx, f.vendor, pen(), uploads(t, 1))
	require.NoError(t, err)
	_, err = f.favourites.Add(ctx, f.shopper.UserID, v.ID)
	require.NoError(t, err)

	list, err := f.favourites.List(ctx, f.shopper.UserID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, v.ID, list[0].ID)
	assert.True(t, list[0].Favourite)
	require.NotNil(t, list[0].User)
	assert.Equal(t, f.vendor.UserID, list[0].User.ID)
	assert.Len(t, list[0].Images, 1)

	require.NoError(t, f.stores.Products.Delete(ctx, v.ID))
	list, err = f.favourites.List(ctx, f.shopper.UserID)
	require.NoError(t, err)
	assert.Empty(t, list, "orphaned favourite skipped")

	empty, err := f.favourites.List(ctx, f.vendor.UserID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
