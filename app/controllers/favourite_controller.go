package controllers

import (
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/pkg/ctx"
)

type FavouriteController struct {
	favourites *services.FavouriteService
}

func NewFavouriteController(favourites *services.FavouriteService) *FavouriteController {
	return &FavouriteController{favourites: favourites}
}

// Index handles GET /api/products/favourites.
func (c *FavouriteController) Index(x *ctx.Context) {
	items, err := c.favourites.List(x.Context(), x.Principal().UserID)
	if err != nil {
		x.Fail(err)
		return
	}
	x.Success(items)
}

// Store handles POST /api/products/favourites/{id}.
func (c *FavouriteController) Store(x *ctx.Context) {
	fav, err := c.favourites.Add(x.Context(), x.Principal().UserID, x.Param("id"))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Created(fav)
}

// Destroy handles DELETE /api/products/favourites/{id}.
func (c *FavouriteController) Destroy(x *ctx.Context) {
	if err := c.favourites.Remove(x.Context(), x.Principal().UserID, x.Param("id")); err != nil {
		x.Fail(err)
		return
	}
	x.Message("Removed from favourites", nil)
}

// Toggle handles POST /api/products/favourites/{id}/toggle.
func (c *FavouriteController) Toggle(x *ctx.Context) {
	result, err := c.favourites.Toggle(x.Context(), x.Principal().UserID, x.Param("id"))
	if err != nil {
		x.Fail(err)
		return
	}
	x.Message(result.Message, result)
}
