package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductDraft is a product assembled from spreadsheet rows, not yet persisted.
// Key is name + "__" + slug.
type ProductDraft struct {
	Key              string
	Name             string
	Description      string
	Brand            string
	CategoryID       primitive.ObjectID
	SubCategoryID    primitive.ObjectID
	Material         string
	FitType          string
	Gender           string
	AgeGroup         string
	Highlights       []string
	CareInstructions []string
	ProductTags      []string
	Slug             string
	SEOMeta          SEOMeta
	IsFeatured       bool
	IsNew            bool
	IsBestSeller     bool
	IsTrending       bool

	// Variants keep first-seen color order; ColorKey is unique.
	Variants []VariantDraft

	// RowCount is the number of rows folded into this draft.
	RowCount int
}

// VariantDraft groups sizes of one color.
type VariantDraft struct {
	ColorKey  string
	ColorName string
	HexCode   string
	Images    []string
	Sizes     []SizeDraft
}

type SizeDraft struct {
	Size  string
	SKU   string
	Price float64
	Stock int
}

// SEOMeta is the optional JSON-encoded SEO cell.
type SEOMeta struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	MetaKeywords    []string `json:"metaKeywords"`
}

// Variant returns the variant for colorKey.
func (d *ProductDraft) Variant(colorKey string) (VariantDraft, bool) {
	for _, v := range d.Variants {
		if v.ColorKey == colorKey {
			return v, true
		}
	}
	return VariantDraft{}, false
}

// Clone returns a deep copy.
func (d *ProductDraft) Clone() ProductDraft {
	c := *d
	c.Highlights = cloneStrings(d.Highlights)
	c.CareInstructions = cloneStrings(d.CareInstructions)
	c.ProductTags = cloneStrings(d.ProductTags)
	c.SEOMeta.MetaKeywords = cloneStrings(d.SEOMeta.MetaKeywords)
	c.Variants = make([]VariantDraft, len(d.Variants))
	for i, v := range d.Variants {
		v.Images = cloneStrings(v.Images)
		v.Sizes = append([]SizeDraft(nil), v.Sizes...)
		c.Variants[i] = v
	}
	return c
}

// ToProduct builds the document to persist. Size labels and hex codes are
// stored uppercase; imported products go live immediately.
func (d *ProductDraft) ToProduct(now time.Time) *Product {
	p := &Product{
		Name:                 d.Name,
		Description:          d.Description,
		Brand:                d.Brand,
		ProductCategoryID:    d.CategoryID,
		ProductSubCategoryID: d.SubCategoryID,
		Material:             d.Material,
		FitType:              d.FitType,
		AgeGroup:             d.AgeGroup,
		Gender:               d.Gender,
		Highlights:           nonNil(d.Highlights),
		CareInstructions:     nonNil(d.CareInstructions),
		ProductTags:          nonNil(d.ProductTags),
		Status:               ProductStatusActive,
		IsFeatured:           d.IsFeatured,
		IsNew:                d.IsNew,
		IsBestSeller:         d.IsBestSeller,
		IsTrending:           d.IsTrending,
		SEO: SEO{
			Slug:            d.Slug,
			MetaTitle:       d.SEOMeta.MetaTitle,
			MetaDescription: d.SEOMeta.MetaDescription,
			MetaKeywords:    cloneStrings(d.SEOMeta.MetaKeywords),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	p.Variants = make([]Variant, 0, len(d.Variants))
	for _, v := range d.Variants {
		variant := Variant{
			Color:  Color{Name: v.ColorName, HexCode: strings.ToUpper(v.HexCode)},
			Images: nonNil(v.Images),
			Sizes:  make([]VariantSize, 0, len(v.Sizes)),
		}
		for _, s := range v.Sizes {
			variant.Sizes = append(variant.Sizes, VariantSize{
				Size:  strings.ToUpper(s.Size),
				Stock: s.Stock,
				SKU:   s.SKU,
				Price: s.Price,
			})
		}
		p.Variants = append(p.Variants, variant)
	}
	return p
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return cloneStrings(in)
}
