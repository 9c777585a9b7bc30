// Package repositories holds the persistence contracts of the catalog and
// their GORM and MongoDB implementations.
package repositories

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/catalog/app/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Field is a logical product attribute usable in filters and sorting.
// Backends translate it to their own column or document key.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldSKU         Field = "sku"
	FieldUserID      Field = "userId"
	FieldQuantity    Field = "quantity"
	FieldPrice       Field = "price"
	FieldCreatedAt   Field = "createdAt"
)

// ProductQuery is an equality-filtered, sorted page request.
type ProductQuery struct {
	Filters map[Field]any
	// Search is a case-insensitive substring matched against name or description.
	Search  string
	Sort    Field
	Desc    bool
	Limit   int
	Offset  int
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// Existing returns the subset of ids that still resolve to a user.
	Existing(ctx context.Context, ids []string) (map[string]bool, error)
}

type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id string) (models.Product, error)
	Update(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q ProductQuery) ([]models.Product, int64, error)
	// Existing returns the subset of ids that still resolve to a product.
	Existing(ctx context.Context, ids []string) (map[string]bool, error)
}

// ImageStore owns the images of each product. Only SetPrimary touches more
// than one row atomically; deletes never re-derive the primary.
type ImageStore interface {
	AddImage(ctx context.Context, productID, ref string, isPrimary bool, position int) (models.ProductImage, error)
	GetImage(ctx context.Context, imageID string) (models.ProductImage, error)
	ListImages(ctx context.Context, productID string) ([]models.ProductImage, error)
	// GetPrimary returns ErrNotFound when the product has no primary image.
	GetPrimary(ctx context.Context, productID string) (models.ProductImage, error)
	SetPrimary(ctx context.Context, productID, imageID string) (models.ProductImage, error)
	UpdateImage(ctx context.Context, imageID string, patch models.ImagePatch) (models.ProductImage, error)
	DeleteImage(ctx context.Context, imageID string) error
	DeleteAllForProduct(ctx context.Context, productID string) (int64, error)
	ProductIDs(ctx context.Context) ([]string, error)
}

// FavouriteStore manages the unique (user, product) relation.
type FavouriteStore interface {
	Add(ctx context.Context, userID, productID string) (models.Favourite, error)
	Remove(ctx context.Context, userID, productID string) error
	Toggle(ctx context.Context, userID, productID string) (bool, error)
	IsFavourited(ctx context.Context, userID, productID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]models.Favourite, error)
	CountForProduct(ctx context.Context, productID string) (int64, error)
	DeleteAllForProduct(ctx context.Context, productID string) (int64, error)
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	ProductIDs(ctx context.Context) ([]string, error)
	UserIDs(ctx context.Context) ([]string, error)
}

// Stores bundles one backend's implementations.
type Stores struct {
	Users      UserStore
	Products   ProductStore
	Images     ImageStore
	Favourites FavouriteStore
}
