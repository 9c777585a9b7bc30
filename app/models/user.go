package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles recognised by the catalog.
const (
	RoleVendor  = "vendor"
	RoleShopper = "shopper"
	RoleAdmin   = "admin"
)

// User is an account that can own products and favourite them.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Name      string    `gorm:"size:255;not null" bson:"name" json:"name"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" bson:"email" json:"email"`
	Password  string    `gorm:"size:255;not null" bson:"password" json:"-"` // hashed, never serialised
	Role      string    `gorm:"size:50;default:shopper" bson:"role" json:"role"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Public projects the user without credentials.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// PublicUser is the only shape in which a user leaves the service layer.
type PublicUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Principal is the authenticated caller carried on the request context.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
