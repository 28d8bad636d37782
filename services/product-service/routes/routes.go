package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/samirvithlani/mayaa-backend/services/product-service/controllers"
)

// RouteOptions carries the middleware that guards import routes.
type RouteOptions struct {
	// Auth, when set, runs before every import route.
	Auth gin.HandlerFunc
	// UploadLimit, when set, runs before the upload routes only.
	UploadLimit gin.HandlerFunc
}

// RegisterImportRoutes mounts the import endpoints under /products.
// /products/import is kept as an alias of /products/import-excel.
func RegisterImportRoutes(r *gin.Engine, h *controllers.ImportHandler, opts RouteOptions) {
	products := r.Group("/products")
	if opts.Auth != nil {
		products.Use(opts.Auth)
	}

	upload := []gin.HandlerFunc{h.StartImport}
	if opts.UploadLimit != nil {
		upload = append([]gin.HandlerFunc{opts.UploadLimit}, upload...)
	}

	{
		products.POST("/import-excel", upload...)
		products.POST("/import", upload...)
		products.GET("/import-template", h.DownloadTemplate)
		products.GET("/import-status/:jobId", h.GetStatus)
		products.GET("/import-status/:jobId/result", h.GetResult)
		products.GET("/import-history", h.ListHistory)
	}
}
