package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

// DynamoWriter is the subset of the DynamoDB client the adapter uses.
type DynamoWriter interface {
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoAdapter stores products in a single table keyed by `product_id`.
// Uniqueness of slug and SKUs is enforced with guard items ("slug#..",
// "sku#..") written in the same transaction as the product.
type DynamoAdapter struct {
	client DynamoWriter
	table  string
}

func NewDynamoAdapter(client DynamoWriter, table string) *DynamoAdapter {
	return &DynamoAdapter{client: client, table: table}
}

// DynamoDB caps a transaction at 100 items.
const maxTransactItems = 100

type ddbProduct struct {
	ProductID            string       `dynamodbav:"product_id"`
	Kind                 string       `dynamodbav:"kind"`
	Name                 string       `dynamodbav:"name"`
	Description          string       `dynamodbav:"description"`
	Brand                string       `dynamodbav:"brand,omitempty"`
	ProductCategoryID    string       `dynamodbav:"product_category_id"`
	ProductSubCategoryID string       `dynamodbav:"product_subcategory_id"`
	Variants             []ddbVariant `dynamodbav:"variants"`
	Material             string       `dynamodbav:"material"`
	FitType              string       `dynamodbav:"fit_type,omitempty"`
	AgeGroup             string       `dynamodbav:"age_group,omitempty"`
	Gender               string       `dynamodbav:"gender"`
	Highlights           []string     `dynamodbav:"highlights,omitempty"`
	CareInstructions     []string     `dynamodbav:"care_instructions,omitempty"`
	ProductTags          []string     `dynamodbav:"product_tags,omitempty"`
	Status               string       `dynamodbav:"status"`
	IsFeatured           bool         `dynamodbav:"is_featured"`
	IsNew                bool         `dynamodbav:"is_new"`
	IsBestSeller         bool         `dynamodbav:"is_best_seller"`
	IsTrending           bool         `dynamodbav:"is_trending"`
	Slug                 string       `dynamodbav:"slug"`
	MetaTitle            string       `dynamodbav:"meta_title,omitempty"`
	MetaDescription      string       `dynamodbav:"meta_description,omitempty"`
	MetaKeywords         []string     `dynamodbav:"meta_keywords,omitempty"`
	CreatedAt            string       `dynamodbav:"created_at"`
	UpdatedAt            string       `dynamodbav:"updated_at"`
}

type ddbVariant struct {
	ColorName string    `dynamodbav:"color_name"`
	HexCode   string    `dynamodbav:"hex_code"`
	Images    []string  `dynamodbav:"images,omitempty"`
	Sizes     []ddbSize `dynamodbav:"sizes"`
}

type ddbSize struct {
	Size  string  `dynamodbav:"size"`
	Stock int     `dynamodbav:"stock"`
	SKU   string  `dynamodbav:"sku"`
	Price float64 `dynamodbav:"price"`
}

type ddbGuard struct {
	ProductID string `dynamodbav:"product_id"`
	Kind      string `dynamodbav:"kind"`
	Owner     string `dynamodbav:"owner"`
}

func toDDBProduct(p *models.Product) ddbProduct {
	dp := ddbProduct{
		ProductID:            p.ID.Hex(),
		Kind:                 "product",
		Name:                 p.Name,
		Description:          p.Description,
		Brand:                p.Brand,
		ProductCategoryID:    p.ProductCategoryID.Hex(),
		ProductSubCategoryID: p.ProductSubCategoryID.Hex(),
		Material:             p.Material,
		FitType:              p.FitType,
		AgeGroup:             p.AgeGroup,
		Gender:               p.Gender,
		Highlights:           p.Highlights,
		CareInstructions:     p.CareInstructions,
		ProductTags:          p.ProductTags,
		Status:               p.Status,
		IsFeatured:           p.IsFeatured,
		IsNew:                p.IsNew,
		IsBestSeller:         p.IsBestSeller,
		IsTrending:           p.IsTrending,
		Slug:                 p.SEO.Slug,
		MetaTitle:            p.SEO.MetaTitle,
		MetaDescription:      p.SEO.MetaDescription,
		MetaKeywords:         p.SEO.MetaKeywords,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            p.UpdatedAt.Format(time.RFC3339),
	}
	for _, v := range p.Variants {
		dv := ddbVariant{ColorName: v.Color.Name, HexCode: v.Color.HexCode, Images: v.Images}
		for _, s := range v.Sizes {
			dv.Sizes = append(dv.Sizes, ddbSize{Size: s.Size, Stock: s.Stock, SKU: s.SKU, Price: s.Price})
		}
		dp.Variants = append(dp.Variants, dv)
	}
	return dp
}

func (d *DynamoAdapter) Create(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	owner := product.ID.Hex()

	item, err := attributevalue.MarshalMap(toDDBProduct(product))
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	cond := aws.String("attribute_not_exists(product_id)")
	ops := []types.TransactWriteItem{{
		Put: &types.Put{TableName: &d.table, Item: item, ConditionExpression: cond},
	}}

	guards := []string{"slug#" + product.SEO.Slug}
	seen := map[string]bool{}
	for _, sku := range product.SKUs() {
		// a product may list a SKU more than once; one guard is enough
		if seen[sku] {
			continue
		}
		seen[sku] = true
		guards = append(guards, "sku#"+sku)
	}
	for _, key := range guards {
		g, err := attributevalue.MarshalMap(ddbGuard{ProductID: key, Kind: "guard", Owner: owner})
		if err != nil {
			return fmt.Errorf("marshal guard: %w", err)
		}
		ops = append(ops, types.TransactWriteItem{
			Put: &types.Put{TableName: &d.table, Item: g, ConditionExpression: cond},
		})
	}
	if len(ops) > maxTransactItems {
		return fmt.Errorf("product has %d SKUs, at most %d fit in one write", len(seen), maxTransactItems-2)
	}

	_, err = d.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: ops})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			for _, r := range tce.CancellationReasons {
				if aws.ToString(r.Code) == "ConditionalCheckFailed" {
					return fmt.Errorf("%w: slug or sku already taken", ErrDuplicateProduct)
				}
			}
		}
		return fmt.Errorf("dynamodb TransactWriteItems failed: %w", err)
	}
	return nil
}

// EnsureIndexes is a no-op: table and key schema come from infrastructure.
func (d *DynamoAdapter) EnsureIndexes(ctx context.Context) error {
	return nil
}
