package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"statement-import-backend/internal/filestore"
	handler "statement-import-backend/internal/handlers"
	"statement-import-backend/internal/repository"
	"statement-import-backend/internal/services/alias"
	"statement-import-backend/internal/services/imports"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, files filestore.Store, opts imports.Options) {
	importService := imports.NewService(db, files, opts)
	aliasStore := alias.NewStore(repository.NewAliasRepository(db))

	importHandler := handler.NewImportHandler(importService)
	aliasHandler := handler.NewAliasHandler(aliasStore)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authed := api.Group("", handler.RequireUser())

	// Statement imports
	imp := authed.Group("/imports")
	imp.POST("", importHandler.Analyze)
	imp.GET("", importHandler.List)
	imp.GET("/:id", importHandler.Get)
	imp.POST("/:id/confirm", importHandler.Confirm)

	// Payee aliases
	aliases := authed.Group("/aliases")
	{
		aliases.GET("", aliasHandler.List)
		aliases.POST("", aliasHandler.Create)
	}
}
