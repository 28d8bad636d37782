package services

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

// Spreadsheet columns understood by the importer.
const (
	ColProductName   = "product_name"
	ColSEOSlug       = "seo_slug"
	ColDescription   = "description"
	ColBrand         = "brand"
	ColCategoryID    = "category_id"
	ColSubCategoryID = "subcategory_id"
	ColMaterial      = "material"
	ColFitType       = "fit_type"
	ColGender        = "gender"
	ColAgeGroup      = "age_group"
	ColHighlight1    = "highlight_1"
	ColHighlight2    = "highlight_2"
	ColCare1         = "care_1"
	ColCare2         = "care_2"
	ColTag1          = "tag_1"
	ColTag2          = "tag_2"
	ColIsFeatured    = "is_featured"
	ColIsNew         = "is_new"
	ColIsBestSeller  = "is_best_seller"
	ColIsTrending    = "is_trending"
	ColColorName     = "color_name"
	ColColorHex      = "color_hex"
	ColImageURLs     = "image_urls"
	ColSize          = "size"
	ColSKU           = "sku"
	ColPrice         = "price"
	ColStock         = "stock"
	ColSEOMeta       = "seo_meta"
	ColMetaKeywords  = "meta_keywords"
)

// ParseError describes a cell that could not be coerced.
type ParseError struct {
	Column string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %q", e.Reason, e.Value)
	}
	return fmt.Sprintf("%s: %s: %q", e.Column, e.Reason, e.Value)
}

// Result is a coerced value together with the error that forced a fallback.
// Value always holds something usable.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the value was parsed rather than defaulted.
func (r Result[T]) OK() bool { return r.Err == nil }

// OrElse returns Value, or fallback when parsing failed.
func (r Result[T]) OrElse(fallback T) T {
	if r.Err != nil {
		return fallback
	}
	return r.Value
}

func (r Result[T]) column(col string) Result[T] {
	if pe, ok := r.Err.(*ParseError); ok && pe.Column == "" {
		pe.Column = col
	}
	return r
}

// ParseJSON decodes a JSON cell. Blank cells yield fallback without error.
func ParseJSON[T any](cell string, fallback T) Result[T] {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return Result[T]{Value: fallback}
	}
	var v T
	if err := json.Unmarshal([]byte(cell), &v); err != nil {
		return Result[T]{Value: fallback, Err: &ParseError{Value: cell, Reason: "invalid JSON"}}
	}
	return Result[T]{Value: v}
}

// SplitCSV splits a comma separated cell and trims each element.
// Empty elements are kept, matching how list cells have always been read.
func SplitCSV(cell string) []string {
	if cell == "" {
		return []string{}
	}
	parts := strings.Split(cell, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// CellList collects non-empty cells, trimmed.
func CellList(cells ...string) []string {
	out := make([]string, 0, len(cells))
	for _, c := range cells {
		if c == "" {
			continue
		}
		out = append(out, strings.TrimSpace(c))
	}
	return out
}

// ParseBool accepts only "true" and "TRUE", ignoring surrounding blanks.
func ParseBool(cell string) bool {
	s := strings.TrimSpace(cell)
	return s == "true" || s == "TRUE"
}

var objectIDWrapper = regexp.MustCompile(`^ObjectId\(\s*["']?([^"')]*)["']?\s*\)$`)

// ParseObjectID coerces a reference cell, accepting values exported as
// ObjectId("..."). Blank cells give NilObjectID without error.
func ParseObjectID(cell string) Result[primitive.ObjectID] {
	s := strings.TrimSpace(cell)
	if m := objectIDWrapper.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if s == "" {
		return Result[primitive.ObjectID]{Value: primitive.NilObjectID}
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return Result[primitive.ObjectID]{Value: primitive.NilObjectID, Err: &ParseError{Value: cell, Reason: "invalid ObjectId"}}
	}
	return Result[primitive.ObjectID]{Value: id}
}

// ParseNumber reads a numeric cell. Blank is 0, the way spreadsheet
// exports have always treated empty price cells.
func ParseNumber(cell string) Result[float64] {
	s := strings.TrimSpace(cell)
	if s == "" {
		return Result[float64]{}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Result[float64]{Err: &ParseError{Value: cell, Reason: "not a number"}}
	}
	return Result[float64]{Value: f}
}

// ParseInt reads a whole-number cell ("10" and "10.0" are both 10).
func ParseInt(cell string) Result[int] {
	n := ParseNumber(cell)
	if n.Err != nil {
		return Result[int]{Err: n.Err}
	}
	if n.Value != math.Trunc(n.Value) {
		return Result[int]{Err: &ParseError{Value: cell, Reason: "not a whole number"}}
	}
	return Result[int]{Value: int(n.Value)}
}

// NormalizedRow is one ImportRow coerced into typed fields.
type NormalizedRow struct {
	Index int

	Name             string
	Slug             string
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
	SEOMeta          models.SEOMeta
	IsFeatured       bool
	IsNew            bool
	IsBestSeller     bool
	IsTrending       bool

	ColorName string
	ColorHex  string
	Images    []string

	Size  string
	SKU   string
	Price float64
	Stock int

	// Warnings name every cell that fell back to its default.
	Warnings []string
}

// NormalizeRow coerces a raw row. It never fails: a bad cell is replaced by
// its zero value and noted in Warnings.
func NormalizeRow(index int, row models.ImportRow) NormalizedRow {
	get := func(col string) string { return strings.TrimSpace(row[col]) }

	n := NormalizedRow{
		Index:            index,
		Name:             get(ColProductName),
		Slug:             get(ColSEOSlug),
		Description:      row[ColDescription],
		Brand:            get(ColBrand),
		Material:         get(ColMaterial),
		FitType:          get(ColFitType),
		Gender:           get(ColGender),
		AgeGroup:         get(ColAgeGroup),
		Highlights:       CellList(row[ColHighlight1], row[ColHighlight2]),
		CareInstructions: CellList(row[ColCare1], row[ColCare2]),
		ProductTags:      CellList(row[ColTag1], row[ColTag2]),
		IsFeatured:       ParseBool(row[ColIsFeatured]),
		IsNew:            ParseBool(row[ColIsNew]),
		IsBestSeller:     ParseBool(row[ColIsBestSeller]),
		IsTrending:       ParseBool(row[ColIsTrending]),
		ColorName:        get(ColColorName),
		ColorHex:         get(ColColorHex),
		Images:           SplitCSV(row[ColImageURLs]),
		Size:             get(ColSize),
		SKU:              get(ColSKU),
	}

	category := ParseObjectID(row[ColCategoryID]).column(ColCategoryID)
	n.CategoryID = category.Value
	if !category.OK() {
		n.Warnings = append(n.Warnings, category.Err.Error())
	}
	subCategory := ParseObjectID(row[ColSubCategoryID]).column(ColSubCategoryID)
	n.SubCategoryID = subCategory.Value
	if !subCategory.OK() {
		n.Warnings = append(n.Warnings, subCategory.Err.Error())
	}

	meta := ParseJSON(row[ColSEOMeta], models.SEOMeta{}).column(ColSEOMeta)
	n.SEOMeta = meta.Value
	if !meta.OK() {
		n.Warnings = append(n.Warnings, meta.Err.Error())
	}
	if kw := row[ColMetaKeywords]; kw != "" {
		n.SEOMeta.MetaKeywords = append(n.SEOMeta.MetaKeywords, SplitCSV(kw)...)
	}

	price := ParseNumber(row[ColPrice]).column(ColPrice)
	n.Price = price.Value
	if !price.OK() {
		n.Warnings = append(n.Warnings, price.Err.Error())
	}
	stock := ParseInt(row[ColStock]).column(ColStock)
	n.Stock = stock.Value
	if !stock.OK() {
		n.Warnings = append(n.Warnings, stock.Err.Error())
	}

	return n
}
