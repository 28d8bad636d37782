package controllers

import (
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/samirvithlani/mayaa-backend/services/common/errors"
	"github.com/samirvithlani/mayaa-backend/services/product-service/models"
)

// Validation constants
const (
	MaxPageSize   = 100
	MaxUploadSize = 50 * 1024 * 1024 // 50MB
)

var (
	allowedExcelExtensions = map[string]bool{
		".xlsx": true,
		".xlsm": true,
		".xls":  true,
	}

	allowedExcelTypes = map[string]bool{
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
		"application/vnd.ms-excel.sheet.macroenabled.12":                    true,
		"application/vnd.ms-excel":                                          true,
	}

	allowedJobStates = map[string]bool{
		string(models.JobStateCompleted): true,
		string(models.JobStateFailed):    true,
	}
)

// RequestValidator handles all input validation
type RequestValidator struct{}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{}
}

// IsValidExcelFile checks the upload by content type, then by extension.
func (rv *RequestValidator) IsValidExcelFile(file *multipart.FileHeader) bool {
	if allowedExcelTypes[strings.ToLower(file.Header.Get("Content-Type"))] {
		return true
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	return allowedExcelExtensions[ext]
}

// ValidateFileSize checks if file size is within limits
func (rv *RequestValidator) ValidateFileSize(file *multipart.FileHeader) error {
	if file.Size > MaxUploadSize {
		return apperrors.ErrFileTooLarge.Wrap(fmt.Errorf("max %dMB", MaxUploadSize/(1024*1024)))
	}
	return nil
}

// ParseHistoryFilter reads page, page_size and state query parameters.
func (rv *RequestValidator) ParseHistoryFilter(c *gin.Context) (models.ImportRunFilter, error) {
	filter := models.ImportRunFilter{Page: 1, PageSize: 20}

	if v := c.Query("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, apperrors.New(400, "invalid page", err)
		}
		filter.Page = page
	}
	if v := c.Query("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > MaxPageSize {
			return filter, apperrors.New(400, fmt.Sprintf("page_size must be between 1 and %d", MaxPageSize), err)
		}
		filter.PageSize = size
	}
	if v := strings.ToLower(strings.TrimSpace(c.Query("state"))); v != "" {
		if !allowedJobStates[v] {
			return filter, apperrors.New(400, "state must be completed or failed", nil)
		}
		filter.State = v
	}
	return filter, nil
}
