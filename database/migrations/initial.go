package migrations

import (
	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/migration"
	"gorm.io/gorm"
)

func init() {
	migration.Register("20260101000000_create_users_table", &CreateUsersTable{})
	migration.Register("20260101000001_create_products_table", &CreateProductsTable{})
	migration.Register("20260101000002_create_product_images_table", &CreateProductImagesTable{})
	migration.Register("20260101000003_create_favourites_table", &CreateFavouritesTable{})
}

// -------- 0001: users --------

type CreateUsersTable struct{}

func (m *CreateUsersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{})
}

func (m *CreateUsersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.User{})
}

// -------- 0002: products --------

type CreateProductsTable struct{}

func (m *CreateProductsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Product{})
}

func (m *CreateProductsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.Product{})
}

// -------- 0003: product images --------

type CreateProductImagesTable struct{}

func (m *CreateProductImagesTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.ProductImage{})
}

func (m *CreateProductImagesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.ProductImage{})
}

// -------- 0004: favourites --------

type CreateFavouritesTable struct{}

func (m *CreateFavouritesTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Favourite{})
}

func (m *CreateFavouritesTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&models.Favourite{})
}
