package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/baodantech/design-review-backend/internal/handlers"
)

type RouterConfig struct {
	ReviewHandler *handlers.ReviewHandler
	GoodsHandler  *handlers.GoodsHandler
	LabelHandler  *handlers.LabelHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Goods review surface
		goods := api.Group("/goods")
		{
			goods.GET("", cfg.GoodsHandler.List)
			goods.GET("/statistics", cfg.GoodsHandler.Statistics)
			goods.GET("/first-pending-upload", cfg.GoodsHandler.FirstPendingUpload)
			goods.GET("/:id", cfg.GoodsHandler.Detail)
			goods.POST("/batch-save", cfg.GoodsHandler.BatchReSave)
			goods.POST("/:id/approve", cfg.GoodsHandler.Approve)
			goods.POST("/:id/discard", cfg.GoodsHandler.Discard)
			goods.POST("/:id/save", cfg.GoodsHandler.Save)
			goods.POST("/:id/swap-image", cfg.GoodsHandler.SwapImage)
			goods.POST("/:id/remove-image", cfg.GoodsHandler.RemoveImage)
			goods.POST("/:id/replace-main-image", cfg.GoodsHandler.ReplaceMainImage)
			goods.POST("/:id/re-save", cfg.GoodsHandler.ReSave)
		}

		// Design review sessions and records
		review := api.Group("/review")
		{
			review.POST("/sessions", cfg.ReviewHandler.RegisterSession)
			review.GET("/sessions/:session_id", cfg.ReviewHandler.GetBySession)
			review.GET("/records", cfg.ReviewHandler.ListRecords)
			review.GET("/records/:id", cfg.ReviewHandler.GetRecord)
			review.POST("/records/:id/candidates", cfg.ReviewHandler.MergeCandidates)
			review.PUT("/records/:id/excluded-references", cfg.ReviewHandler.SetExcludedReferences)
			review.PUT("/records/:id/excluded-candidates", cfg.ReviewHandler.SetExcludedCandidates)
			review.POST("/records/:id/check-results", cfg.ReviewHandler.RecordCheckResults)
			review.POST("/records/:id/check-results/reset", cfg.ReviewHandler.ResetChecks)
			review.POST("/records/:id/reference-images", cfg.ReviewHandler.AddReferenceImages)
			review.POST("/records/:id/design-candidates", cfg.ReviewHandler.AddDesignCandidates)
			review.POST("/records/:id/recommend", cfg.ReviewHandler.Recommend)
			review.POST("/records/:id/status", cfg.ReviewHandler.MarkDetected)
			review.POST("/records/:id/approve", cfg.ReviewHandler.Approve)
			review.POST("/records/:id/fail", cfg.ReviewHandler.Fail)
			review.POST("/records/:id/switch-tab", cfg.ReviewHandler.SwitchTab)
			review.POST("/records/:id/complete", cfg.ReviewHandler.Complete)
		}

		// Labels and category rules
		api.POST("/labels/by-url", cfg.LabelHandler.FetchByURLs)
		api.POST("/labels", cfg.LabelHandler.WriteLabel)
		api.GET("/images/listings", cfg.LabelHandler.ListingsForImage)
		api.GET("/category-rules", cfg.LabelHandler.ListCategoryRules)
		api.POST("/category-rules", cfg.LabelHandler.CreateCategoryRules)
		api.POST("/category-rules/resolve", cfg.LabelHandler.ResolveCategory)
	}

	return router
}
