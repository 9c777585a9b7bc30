package repositories

import (
	"context"
	"fmt"

	"github.com/shashiranjanraj/catalog/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoFavouriteStore struct {
	col *mongo.Collection
}

func (r *mongoFavouriteStore) Add(ctx context.Context, userID, productID string) (models.Favourite, error) {
	fav := models.Favourite{ID: newObjectID(), UserID: userID, ProductID: productID, CreatedAt: now()}
	if _, err := r.col.InsertOne(ctx, fav); err != nil {
		return models.Favourite{}, translateMongo(err)
	}
	return fav, nil
}

func (r *mongoFavouriteStore) Remove(ctx context.Context, userID, productID string) error {
	res, err := r.col.DeleteOne(ctx, key(userID, productID))
	if err != nil {
		return fmt.Errorf("favourites: remove: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Toggle mirrors the relational implementation: delete first, then insert,
// with the unique index settling concurrent inserts.
func (r *mongoFavouriteStore) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, key(userID, productID))
	if err != nil {
		return false, fmt.Errorf("favourites: toggle: %w", err)
	}
	if res.DeletedCount > 0 {
		return false, nil
	}

	fav := models.Favourite{ID: newObjectID(), UserID: userID, ProductID: productID, CreatedAt: now()}
	if _, err := r.col.InsertOne(ctx, fav); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return true, nil
		}
		return false, fmt.Errorf("favourites: toggle: %w", err)
	}
	return true, nil
}

func (r *mongoFavouriteStore) IsFavourited(ctx context.Context, userID, productID string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, key(userID, productID), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("favourites: exists: %w", err)
	}
	return n > 0, nil
}

func (r *mongoFavouriteStore) ListForUser(ctx context.Context, userID string) ([]models.Favourite, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("favourites: list for %s: %w", userID, err)
	}
	favs := []models.Favourite{}
	if err := cur.All(ctx, &favs); err != nil {
		return nil, fmt.Errorf("favourites: decode: %w", err)
	}
	return favs, nil
}

func (r *mongoFavouriteStore) CountForProduct(ctx context.Context, productID string) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"productId": productID})
	if err != nil {
		return 0, fmt.Errorf("favourites: count for %s: %w", productID, err)
	}
	return n, nil
}

func (r *mongoFavouriteStore) DeleteAllForProduct(ctx context.Context, productID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"productId": productID})
	if err != nil {
		return 0, fmt.Errorf("favourites: delete for product %s: %w", productID, err)
	}
	return res.DeletedCount, nil
}

func (r *mongoFavouriteStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("favourites: delete for user %s: %w", userID, err)
	}
	return res.DeletedCount, nil
}

func (r *mongoFavouriteStore) ProductIDs(ctx context.Context) ([]string, error) {
	ids, err := distinctStrings(ctx, r.col, "productId")
	if err != nil {
		return nil, fmt.Errorf("favourites: product ids: %w", err)
	}
	return ids, nil
}

func (r *mongoFavouriteStore) UserIDs(ctx context.Context) ([]string, error) {
	ids, err := distinctStrings(ctx, r.col, "userId")
	if err != nil {
		return nil, fmt.Errorf("favourites: user ids: %w", err)
	}
	return ids, nil
}

func key(userID, productID string) bson.M {
	return bson.M{"userId": userID, "productId": productID}
}
