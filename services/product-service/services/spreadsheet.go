package services

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

var (
	// ErrUnreadableWorkbook wraps any failure to open or read the upload.
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
	// ErrNoSheets is returned for a workbook without worksheets.
	ErrNoSheets = errors.New("no sheets found in Excel file")
)

// ProductsSheet is read when present; otherwise the first sheet is used.
const ProductsSheet = "Products"

// ParseWorkbook reads the first worksheet of an .xlsx stream into rows keyed
// by header. Headers are lowercased with a trailing " *" (required marker)
// removed. Every header is present in every row, blank cells as "". Fully
// blank lines are skipped. A sheet with only a header yields no rows.
func ParseWorkbook(r io.Reader) ([]models.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, ProductsSheet) {
			sheet = name
			break
		}
	}

	lines, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	if len(lines) == 0 {
		return []models.ImportRow{}, nil
	}

	headers := make([]string, len(lines[0]))
	for i, h := range lines[0] {
		h = strings.ToLower(strings.TrimSpace(h))
		headers[i] = strings.TrimSpace(strings.TrimSuffix(h, " *"))
	}

	rows := make([]models.ImportRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if blankLine(line) {
			continue
		}
		row := make(models.ImportRow, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			if i < len(line) {
				row[h] = line[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blankLine(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
