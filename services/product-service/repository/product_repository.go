package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

type ProductRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{
		collection: db.Collection("products"),
	}
}

func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, product)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateProduct, err)
	}
	return err
}

// EnsureIndexes creates the unique slug and SKU indexes the importer relies
// on to reject duplicates.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "seo.slug", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_seo_slug"),
		},
		{
			Keys:    bson.D{{Key: "variants.sizes.sku", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_variant_sku"),
		},
		{
			Keys: bson.D{{Key: "productCategoryId", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	return err
}
