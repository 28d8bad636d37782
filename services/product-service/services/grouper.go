package services

import (
	"fmt"
	"strings"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

// ProductKey is the grouping key of a product.
func ProductKey(name, slug string) string {
	return name + "__" + slug
}

// Grouping is the immutable outcome of folding import rows into drafts.
type Grouping struct {
	keys     []string
	drafts   map[string]*models.ProductDraft
	rejected []models.RejectedRow
	warnings []string
	rows     int
}

// Len returns the number of products.
func (g *Grouping) Len() int { return len(g.keys) }

// TotalRows returns the number of input rows, rejected ones included.
func (g *Grouping) TotalRows() int { return g.rows }

// Keys returns product keys in first-seen order.
func (g *Grouping) Keys() []string {
	return append([]string(nil), g.keys...)
}

// Get returns a copy of the draft stored under key.
func (g *Grouping) Get(key string) (models.ProductDraft, bool) {
	d, ok := g.drafts[key]
	if !ok {
		return models.ProductDraft{}, false
	}
	return d.Clone(), true
}

// Drafts returns copies of all drafts in first-seen order.
func (g *Grouping) Drafts() []models.ProductDraft {
	out := make([]models.ProductDraft, 0, len(g.keys))
	for _, k := range g.keys {
		out = append(out, g.drafts[k].Clone())
	}
	return out
}

// Rejected returns rows that could not be assigned to a product.
func (g *Grouping) Rejected() []models.RejectedRow {
	return append([]models.RejectedRow(nil), g.rejected...)
}

// Warnings returns non-fatal coercion notes.
func (g *Grouping) Warnings() []string {
	return append([]string(nil), g.warnings...)
}

// GroupRows folds rows (one per size of one color of one product) into
// product drafts keyed by name and slug. Scalar fields come from the first
// row of each product; later rows only add variants and sizes. Sizes are
// appended as-is, duplicates included.
//
// Rows without a product name or slug are rejected instead of being merged
// under a blank key.
func GroupRows(rows []models.ImportRow) *Grouping {
	g := &Grouping{
		drafts: make(map[string]*models.ProductDraft),
		rows:   len(rows),
	}
	for i, raw := range rows {
		g.fold(NormalizeRow(i+1, raw))
	}
	return g
}

func (g *Grouping) fold(row NormalizedRow) {
	for _, w := range row.Warnings {
		g.warnings = append(g.warnings, fmt.Sprintf("row %d: %s", row.Index, w))
	}

	switch {
	case row.Name == "" && row.Slug == "":
		g.reject(row.Index, "missing product_name and seo_slug")
		return
	case row.Name == "":
		g.reject(row.Index, "missing product_name")
		return
	case row.Slug == "":
		g.reject(row.Index, "missing seo_slug")
		return
	}

	key := ProductKey(row.Name, row.Slug)
	draft, ok := g.drafts[key]
	if !ok {
		draft = newDraft(key, row)
		g.drafts[key] = draft
		g.keys = append(g.keys, key)
	}
	draft.RowCount++

	colorKey := strings.ToLower(row.ColorName)
	idx := -1
	for i := range draft.Variants {
		if draft.Variants[i].ColorKey == colorKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		draft.Variants = append(draft.Variants, models.VariantDraft{
			ColorKey:  colorKey,
			ColorName: row.ColorName,
			HexCode:   row.ColorHex,
			Images:    row.Images,
		})
		idx = len(draft.Variants) - 1
	}

	draft.Variants[idx].Sizes = append(draft.Variants[idx].Sizes, models.SizeDraft{
		Size:  row.Size,
		SKU:   row.SKU,
		Price: row.Price,
		Stock: row.Stock,
	})
}

func (g *Grouping) reject(index int, reason string) {
	g.rejected = append(g.rejected, models.RejectedRow{Row: index, Error: reason})
}

func newDraft(key string, row NormalizedRow) *models.ProductDraft {
	return &models.ProductDraft{
		Key:              key,
		Name:             row.Name,
		Description:      row.Description,
		Brand:            row.Brand,
		CategoryID:       row.CategoryID,
		SubCategoryID:    row.SubCategoryID,
		Material:         row.Material,
		FitType:          row.FitType,
		Gender:           row.Gender,
		AgeGroup:         row.AgeGroup,
		Highlights:       row.Highlights,
		CareInstructions: row.CareInstructions,
		ProductTags:      row.ProductTags,
		Slug:             row.Slug,
		SEOMeta:          row.SEOMeta,
		IsFeatured:       row.IsFeatured,
		IsNew:            row.IsNew,
		IsBestSeller:     row.IsBestSeller,
		IsTrending:       row.IsTrending,
	}
}
