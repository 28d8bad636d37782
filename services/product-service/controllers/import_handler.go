package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/samirvithlani/mayaa-backend/services/common/errors"
	"github.com/samirvithlani/mayaa-backend/services/common/logger"
	"github.com/samirvithlani/mayaa-backend/services/product-service/services"
)

// ImportHandler serves the spreadsheet import endpoints.
type ImportHandler struct {
	producer  ImportStarter
	status    JobStatusAPI
	validator *RequestValidator
	timeout   time.Duration
}

func NewImportHandler(producer ImportStarter, status JobStatusAPI, validator *RequestValidator) *ImportHandler {
	return &ImportHandler{
		producer:  producer,
		status:    status,
		validator: validator,
		timeout:   DefaultContextTimeout,
	}
}

// StartImport accepts a workbook in the multipart field "file" and queues it.
func (h *ImportHandler) StartImport(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		apperrors.Respond(c, apperrors.ErrFileRequired)
		return
	}
	if !h.validator.IsValidExcelFile(file) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file type. Only Excel files are allowed"})
		return
	}
	if err := h.validator.ValidateFileSize(file); err != nil {
		apperrors.Respond(c, err)
		return
	}

	fileHandle, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
		return
	}
	defer fileHandle.Close()

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	ticket, err := h.producer.StartImport(ctx, fileHandle, file.Filename)
	if err != nil {
		appErr := apperrors.From(err)
		if appErr.Code >= http.StatusInternalServerError {
			logger.FromContext(c.Request.Context()).Error("Product import error", zap.Error(err))
		}
		apperrors.Respond(c, appErr)
		return
	}

	c.JSON(http.StatusOK, StartImportResponse{
		Success:   true,
		Message:   "Product import started",
		JobID:     ticket.JobID,
		TotalRows: ticket.TotalRows,
	})
}

// GetStatus returns {jobId, state, progress}.
func (h *ImportHandler) GetStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), StatusContextTimeout)
	defer cancel()

	status, err := h.status.GetStatus(ctx, strings.TrimSpace(c.Param("jobId")))
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetResult returns the full job view once it is finished.
func (h *ImportHandler) GetResult(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), StatusContextTimeout)
	defer cancel()

	view, err := h.status.GetResult(ctx, strings.TrimSpace(c.Param("jobId")))
	if errors.Is(err, apperrors.ErrJobNotFinished) && view != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":    apperrors.ErrJobNotFinished.Message,
			"state":    view.State,
			"progress": view.Progress,
		})
		return
	}
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListHistory pages through finished imports.
func (h *ImportHandler) ListHistory(c *gin.Context) {
	filter, err := h.validator.ParseHistoryFilter(c)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), StatusContextTimeout)
	defer cancel()

	runs, total, err := h.status.History(ctx, filter)
	if err != nil {
		h.respondLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Runs: runs, Total: total, Page: filter.Page, PageSize: filter.PageSize})
}

// DownloadTemplate serves an empty workbook with the expected headers.
func (h *ImportHandler) DownloadTemplate(c *gin.Context) {
	buf, err := services.BuildImportTemplate()
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("Failed to build import template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate template"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="product_import_template.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ImportHandler) respondLookupError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Code >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("Failed to read import job", zap.Error(err))
	}
	apperrors.Respond(c, appErr)
}
