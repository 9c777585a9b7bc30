package repositories

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/catalog/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoUserStore struct {
	col *mongo.Collection
}

func (r *mongoUserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newObjectID()
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	if _, err := r.col.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("users: create: %w", translateMongo(err))
	}
	return nil
}

func (r *mongoUserStore) FindByID(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	return user, translateMongo(err)
}

func (r *mongoUserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	return user, translateMongo(err)
}

func (r *mongoUserStore) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	out, err := existingIDs(ctx, r.col, ids)
	if err != nil {
		return nil, fmt.Errorf("users: existing: %w", err)
	}
	return out, nil
}
