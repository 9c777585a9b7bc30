package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductImage references a stored file. For a product with images exactly
// one row has IsPrimary set.
type ProductImage struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	ProductID string    `gorm:"size:36;not null;index" bson:"productId" json:"productId"`
	ImageURL  string    `gorm:"size:512;not null" bson:"imageUrl" json:"imageUrl"`
	IsPrimary bool      `gorm:"not null;default:false" bson:"isPrimary" json:"isPrimary"`
	Position  int       `gorm:"not null;default:0" bson:"position" json:"position"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (i *ProductImage) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// ImagePatch is a partial update of an image.
type ImagePatch struct {
	IsPrimary *bool
	ImageURL  *string
}

// ImageView adds the public URL of the stored file.
type ImageView struct {
	ProductImage
	URL string `json:"url"`
}
