package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Favourite links a user to a product. The pair is unique.
type Favourite struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_favourite_user_product" bson:"userId" json:"userId"`
	ProductID string    `gorm:"size:36;not null;uniqueIndex:idx_favourite_user_product;index" bson:"productId" json:"productId"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

func (f *Favourite) BeforeCreate(*gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// ToggleResult reports the state after a toggle.
type ToggleResult struct {
	IsFavourited bool   `json:"isFavourited"`
	Message      string `json:"message"`
}
