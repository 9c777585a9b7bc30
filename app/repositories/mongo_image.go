package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/shashiranjanraj/catalog/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoImageStore struct {
	col *mongo.Collection
}

func (r *mongoImageStore) AddImage(ctx context.Context, productID, ref string, isPrimary bool, position int) (models.ProductImage, error) {
	img := models.ProductImage{
		ID:        newObjectID(),
		ProductID: productID,
		ImageURL:  ref,
		IsPrimary: isPrimary,
		Position:  position,
		CreatedAt: now(),
	}
	if _, err := r.col.InsertOne(ctx, img); err != nil {
		return models.ProductImage{}, fmt.Errorf("images: add: %w", translateMongo(err))
	}
	return img, nil
}

func (r *mongoImageStore) GetImage(ctx context.Context, imageID string) (models.ProductImage, error) {
	var img models.ProductImage
	err := r.col.FindOne(ctx, bson.M{"_id": imageID}).Decode(&img)
	return img, translateMongo(err)
}

func (r *mongoImageStore) ListImages(ctx context.Context, productID string) ([]models.ProductImage, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "position", Value: 1},
		{Key: "createdAt", Value: 1},
		{Key: "_id", Value: 1},
	})
	cur, err := r.col.Find(ctx, bson.M{"productId": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("images: list %s: %w", productID, err)
	}
	imgs := []models.ProductImage{}
	if err := cur.All(ctx, &imgs); err != nil {
		return nil, fmt.Errorf("images: decode %s: %w", productID, err)
	}
	return imgs, nil
}

func (r *mongoImageStore) GetPrimary(ctx context.Context, productID string) (models.ProductImage, error) {
	var img models.ProductImage
	opts := options.FindOne().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "createdAt", Value: 1}})
	err := r.col.FindOne(ctx, bson.M{"productId": productID, "isPrimary": true}, opts).Decode(&img)
	return img, translateMongo(err)
}

// SetPrimary runs clear-then-set in a session transaction.
func (r *mongoImageStore) SetPrimary(ctx context.Context, productID, imageID string) (models.ProductImage, error) {
	sess, err := r.col.Database().Client().StartSession()
	if err != nil {
		return models.ProductImage{}, fmt.Errorf("images: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	out, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var img models.ProductImage
		if err := r.col.FindOne(sc, bson.M{"_id": imageID, "productId": productID}).Decode(&img); err != nil {
			return nil, translateMongo(err)
		}
		_, err := r.col.UpdateMany(sc,
			bson.M{"productId": productID, "_id": bson.M{"$ne": imageID}},
			bson.M{"$set": bson.M{"isPrimary": false}},
		)
		if err != nil {
			return nil, err
		}
		if _, err := r.col.UpdateOne(sc, bson.M{"_id": imageID}, bson.M{"$set": bson.M{"isPrimary": true}}); err != nil {
			return nil, err
		}
		img.IsPrimary = true
		return img, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return models.ProductImage{}, ErrNotFound
		}
		return models.ProductImage{}, fmt.Errorf("images: set primary %s: %w", imageID, err)
	}
	return out.(models.ProductImage), nil
}

func (r *mongoImageStore) UpdateImage(ctx context.Context, imageID string, patch models.ImagePatch) (models.ProductImage, error) {
	set := bson.M{}
	if patch.IsPrimary != nil {
		set["isPrimary"] = *patch.IsPrimary
	}
	if patch.ImageURL != nil {
		set["imageUrl"] = *patch.ImageURL
	}
	if len(set) == 0 {
		return r.GetImage(ctx, imageID)
	}

	var img models.ProductImage
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": imageID}, bson.M{"$set": set}, opts).Decode(&img)
	return img, translateMongo(err)
}

func (r *mongoImageStore) DeleteImage(ctx context.Context, imageID string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": imageID})
	if err != nil {
		return fmt.Errorf("images: delete %s: %w", imageID, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoImageStore) DeleteAllForProduct(ctx context.Context, productID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"productId": productID})
	if err != nil {
		return 0, fmt.Errorf("images: delete for product %s: %w", productID, err)
	}
	return res.DeletedCount, nil
}

func (r *mongoImageStore) ProductIDs(ctx context.Context) ([]string, error) {
	ids, err := distinctStrings(ctx, r.col, "productId")
	if err != nil {
		return nil, fmt.Errorf("images: product ids: %w", err)
	}
	return ids, nil
}
