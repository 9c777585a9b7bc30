package repositories

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shashiranjanraj/catalog/app/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoProductStore struct {
	col *mongo.Collection
}

func (r *mongoProductStore) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = newObjectID()
	}
	product.CreatedAt = now()
	product.UpdatedAt = product.CreatedAt
	if _, err := r.col.InsertOne(ctx, product); err != nil {
		return fmt.Errorf("products: create: %w", translateMongo(err))
	}
	return nil
}

func (r *mongoProductStore) FindByID(ctx context.Context, id string) (models.Product, error) {
	var product models.Product
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	return product, translateMongo(err)
}

func (r *mongoProductStore) Update(ctx context.Context, id string, patch models.ProductPatch) (models.Product, error) {
	if patch.Empty() {
		return r.FindByID(ctx, id)
	}

	set := bson.M{"updatedAt": now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Quantity != nil {
		set["quantity"] = *patch.Quantity
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}

	var product models.Product
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&product)
	if err != nil {
		return models.Product{}, translateMongo(err)
	}
	return product, nil
}

func (r *mongoProductStore) Delete(ctx context.Context, id string) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("products: delete %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProductStore) List(ctx context.Context, q ProductQuery) ([]models.Product, int64, error) {
	filter := bson.M{}
	for field, value := range q.Filters {
		key, ok := mongoKeys[field]
		if !ok {
			return nil, 0, fmt.Errorf("products: unknown filter field %q", field)
		}
		filter[key] = value
	}
	if q.Search != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{bson.M{"name": rx}, bson.M{"description": rx}}
	}

	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("products: count: %w", err)
	}

	sortKey := "createdAt"
	if key, ok := mongoKeys[q.Sort]; ok {
		sortKey = key
	}
	dir := 1
	if q.Desc {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: sortKey, Value: dir}, {Key: "_id", Value: 1}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("products: list: %w", err)
	}
	items := []models.Product{}
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("products: decode: %w", err)
	}
	return items, total, nil
}

func (r *mongoProductStore) Existing(ctx context.Context, ids []string) (map[string]bool, error) {
	out, err := existingIDs(ctx, r.col, ids)
	if err != nil {
		return nil, fmt.Errorf("products: existing: %w", err)
	}
	return out, nil
}
