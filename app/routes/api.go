package routes

import (
	"github.com/shashiranjanraj/catalog/app/controllers"
	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/ctx"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/rbac"
	"github.com/shashiranjanraj/catalog/pkg/router"
)

// Controllers are the handlers mounted under /api.
type Controllers struct {
	Auth       *controllers.AuthController
	Products   *controllers.ProductController
	Favourites *controllers.FavouriteController
}

// RegisterAPI mounts the public auth endpoints and the authenticated
// catalog endpoints.
func RegisterAPI(r *router.Router, c Controllers, authn *middleware.Auth) {
	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", "auth.register", ctx.Wrap(c.Auth.Register))
	authGroup.Post("/login", "auth.login", ctx.Wrap(c.Auth.Login))
	authGroup.Post("/logout", "auth.logout", ctx.Wrap(c.Auth.Logout))

	protected := api.Group("", authn.Required)
	protected.Get("/users/me", "users.me", ctx.Wrap(c.Auth.Me))

	// /products/favourites before /products/{id}.
	favs := protected.Group("/products/favourites")
	favs.Get("", "favourites.index", ctx.Wrap(c.Favourites.Index))
	favs.Post("/{id}", "favourites.store", ctx.Wrap(c.Favourites.Store))
	favs.Delete("/{id}", "favourites.destroy", ctx.Wrap(c.Favourites.Destroy))
	favs.Post("/{id}/toggle", "favourites.toggle", ctx.Wrap(c.Favourites.Toggle))

	products := protected.Group("/products")
	products.Get("", "products.index", ctx.Wrap(c.Products.Index))
	products.Post("", "products.store", ctx.Wrap(c.Products.Store),
		rbac.HasRole(models.RoleVendor, models.RoleAdmin))
	products.Get("/{id}", "products.show", ctx.Wrap(c.Products.Show))
	products.Put("/{id}", "products.update", ctx.Wrap(c.Products.Update))
	products.Delete("/{id}", "products.destroy", ctx.Wrap(c.Products.Destroy))
	products.Put("/{id}/images/{imageId}/primary", "products.images.primary", ctx.Wrap(c.Products.SetPrimaryImage))
	products.Delete("/{id}/images/{imageId}", "products.images.destroy", ctx.Wrap(c.Products.RemoveImage))
}
