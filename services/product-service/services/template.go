package services

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TemplateColumn is one header of the downloadable import workbook.
type TemplateColumn struct {
	Name     string
	Required bool
	Example  string
}

// TemplateColumns lists every column ParseWorkbook and NormalizeRow understand,
// in the order they appear in the template. Required columns are the ones a
// product cannot be grouped without.
var TemplateColumns = []TemplateColumn{
	{ColProductName, true, "Classic Tee"},
	{ColSEOSlug, true, "classic-tee"},
	{ColDescription, false, "Soft cotton t-shirt"},
	{ColBrand, false, "Mayaa"},
	{ColCategoryID, false, "65f1c0ffee0000000000a001"},
	{ColSubCategoryID, false, "65f1c0ffee0000000000b001"},
	{ColMaterial, false, "Cotton"},
	{ColFitType, false, "Regular"},
	{ColGender, false, "Unisex"},
	{ColAgeGroup, false, "Adults"},
	{ColHighlight1, false, "Breathable"},
	{ColHighlight2, false, ""},
	{ColCare1, false, "Machine wash cold"},
	{ColCare2, false, ""},
	{ColTag1, false, "summer"},
	{ColTag2, false, ""},
	{ColIsFeatured, false, "FALSE"},
	{ColIsNew, false, "TRUE"},
	{ColIsBestSeller, false, "FALSE"},
	{ColIsTrending, false, "FALSE"},
	{ColColorName, true, "Red"},
	{ColColorHex, false, "#FF0000"},
	{ColImageURLs, false, "https://cdn.example.com/tee-red-1.jpg,https://cdn.example.com/tee-red-2.jpg"},
	{ColSize, true, "M"},
	{ColSKU, true, "TEE-RED-M"},
	{ColPrice, true, "499"},
	{ColStock, true, "25"},
	{ColSEOMeta, false, `{"metaTitle":"Classic Tee"}`},
	{ColMetaKeywords, false, "tee,cotton"},
}

// BuildImportTemplate renders a workbook with a bold header row on the
// Products sheet and one example line. Required headers carry " *".
func BuildImportTemplate() (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ProductsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for i, col := range TemplateColumns {
		header, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		example, _ := excelize.CoordinatesToCellName(i+1, 2)

		title := col.Name
		if col.Required {
			title += " *"
		}
		if err := f.SetCellStr(ProductsSheet, header, title); err != nil {
			return nil, fmt.Errorf("write header %s: %w", col.Name, err)
		}
		if err := f.SetCellStr(ProductsSheet, example, col.Example); err != nil {
			return nil, fmt.Errorf("write example %s: %w", col.Name, err)
		}
	}

	last, _ := excelize.CoordinatesToCellName(len(TemplateColumns), 1)
	if err := f.SetCellStyle(ProductsSheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	_ = f.SetPanes(ProductsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	return buf, nil
}
