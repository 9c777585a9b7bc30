package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var gormColumns = map[Field]string{
	FieldName:        "name",
	FieldDescription: "description",
	FieldSKU:         "sku",
	FieldUserID:      "user_id",
	FieldQuantity:    "quantity",
	FieldPrice:       "price",
	FieldCreatedAt:   "created_at",
}

// NewGormStores returns the relational implementations backed by db.
func NewGormStores(db *gorm.DB) Stores {
	return Stores{
		Users:      &gormUserStore{db: db},
		Products:   &gormProductStore{db: db},
		Images:     &gormImageStore{db: db},
		Favourites: &gormFavouriteStore{db: db},
	}
}

func translateGorm(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isDuplicate(err):
		return ErrAlreadyExists
	default:
		return err
	}
}

// isDuplicate recognises unique-index violations across the supported
// dialects, with or without gorm's error translation enabled.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
