package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names shared with the reset command and the seeders.
const (
	CollectionUsers      = "users"
	CollectionProducts   = "products"
	CollectionImages     = "productimages"
	CollectionFavourites = "favourites"
)

var mongoKeys = map[Field]string{
	FieldName:        "name",
	FieldDescription: "description",
	FieldSKU:         "sku",
	FieldUserID:      "userId",
	FieldQuantity:    "quantity",
	FieldPrice:       "price",
	FieldCreatedAt:   "createdAt",
}

// NewMongoStores returns the document implementations backed by db.
// SetPrimary needs a replica set or sharded cluster for transactions.
func NewMongoStores(db *mongo.Database) Stores {
	return Stores{
		Users:      &mongoUserStore{col: db.Collection(CollectionUsers)},
		Products:   &mongoProductStore{col: db.Collection(CollectionProducts)},
		Images:     &mongoImageStore{col: db.Collection(CollectionImages)},
		Favourites: &mongoFavouriteStore{col: db.Collection(CollectionFavourites)},
	}
}

// EnsureMongoIndexes creates the unique and lookup indexes. It is idempotent.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		CollectionUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		CollectionProducts: {
			{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		CollectionImages: {
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "position", Value: 1}}},
		},
		CollectionFavourites: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "productId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "productId", Value: 1}}},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: indexes on %s: %w", name, err)
		}
	}
	return nil
}

func newObjectID() string {
	return primitive.NewObjectID().Hex()
}

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrAlreadyExists
	default:
		return err
	}
}

func distinctStrings(ctx context.Context, col *mongo.Collection, key string) ([]string, error) {
	raw, err := col.Distinct(ctx, key, bson.M{})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func existingIDs(ctx context.Context, col *mongo.Collection, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = true
	}
	return out, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
