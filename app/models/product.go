package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog entry owned by a vendor.
type Product struct {
	ID          string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Name        string    `gorm:"size:255;not null;index" bson:"name" json:"name"`
	Description string    `gorm:"type:text" bson:"description" json:"description"`
	SKU         string    `gorm:"size:100;uniqueIndex" bson:"sku" json:"sku"`
	Quantity    int       `gorm:"not null;default:0" bson:"quantity" json:"quantity"`
	Price       float64   `gorm:"not null;default:0" bson:"price" json:"price"`
	UserID      string    `gorm:"size:36;not null;index" bson:"userId" json:"userId"`
	CreatedAt   time.Time `gorm:"index" bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProductPatch carries the optional fields of an update. Nil means unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Quantity    *int
	Price       *float64
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Quantity == nil && p.Price == nil
}

// ProductView is a product enriched for a particular viewer.
type ProductView struct {
	Product
	User           *PublicUser `json:"user,omitempty"`
	Images         []ImageView `json:"images"`
	Favourite      bool        `json:"favourite"`
	FavouriteCount *int64      `json:"favouriteCount,omitempty"`
}
