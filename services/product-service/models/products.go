package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ProductStatusDraft    = "draft"
	ProductStatusActive   = "active"
	ProductStatusInactive = "inactive"
)

// Product is the catalog document created by the import worker. The
// validate tags only hold what grouping guarantees; everything else is
// whatever the spreadsheet coerced to.
type Product struct {
	ID                   primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name                 string             `json:"name" bson:"name" validate:"required"`
	Description          string             `json:"description" bson:"description"`
	Brand                string             `json:"brand,omitempty" bson:"brand,omitempty"`
	ProductCategoryID    primitive.ObjectID `json:"productCategoryId" bson:"productCategoryId"`
	ProductSubCategoryID primitive.ObjectID `json:"productSubCategoryId" bson:"productSubCategoryId"`
	Variants             []Variant          `json:"variants" bson:"variants" validate:"min=1,dive"`
	Material             string             `json:"material" bson:"material"`
	FitType              string             `json:"fitType,omitempty" bson:"fitType,omitempty"`
	AgeGroup             string             `json:"ageGroup,omitempty" bson:"ageGroup,omitempty"`
	Gender               string             `json:"gender" bson:"gender"`
	Highlights           []string           `json:"highlights" bson:"highlights"`
	CareInstructions     []string           `json:"careInstructions" bson:"careInstructions"`
	ProductTags          []string           `json:"productTags" bson:"productTags"`
	Rating               Rating             `json:"rating" bson:"rating"`
	Status               string             `json:"status" bson:"status"`
	IsFeatured           bool               `json:"isFeatured" bson:"isFeatured"`
	IsNew                bool               `json:"isNew" bson:"isNew"`
	IsBestSeller         bool               `json:"isBestSeller" bson:"isBestSeller"`
	IsTrending           bool               `json:"isTrending" bson:"isTrending"`
	SEO                  SEO                `json:"seo" bson:"seo"`
	Analytics            Analytics          `json:"analytics" bson:"analytics"`
	CreatedAt            time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt            time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Variant is one color of a product.
type Variant struct {
	Color  Color         `json:"color" bson:"color"`
	Images []string      `json:"images" bson:"images"`
	Sizes  []VariantSize `json:"sizes" bson:"sizes" validate:"min=1"`
}

type Color struct {
	Name    string `json:"name" bson:"name"`
	HexCode string `json:"hexCode" bson:"hexCode"`
}

// VariantSize is one sellable unit. SKU is unique across the catalog.
type VariantSize struct {
	Size  string  `json:"size" bson:"size"`
	Stock int     `json:"stock" bson:"stock"`
	SKU   string  `json:"sku" bson:"sku"`
	Price float64 `json:"price" bson:"price"`
}

type Rating struct {
	Average float64 `json:"average" bson:"average"`
	Count   int     `json:"count" bson:"count"`
}

type SEO struct {
	Slug            string   `json:"slug" bson:"slug" validate:"required"`
	MetaTitle       string   `json:"metaTitle,omitempty" bson:"metaTitle,omitempty"`
	MetaDescription string   `json:"metaDescription,omitempty" bson:"metaDescription,omitempty"`
	MetaKeywords    []string `json:"metaKeywords,omitempty" bson:"metaKeywords,omitempty"`
}

type Analytics struct {
	Views int `json:"views" bson:"views"`
	Sold  int `json:"sold" bson:"sold"`
}

// SKUs returns every SKU of the product in variant then size order.
func (p *Product) SKUs() []string {
	var skus []string
	for _, v := range p.Variants {
		for _, s := range v.Sizes {
			skus = append(skus, s.SKU)
		}
	}
	return skus
}
