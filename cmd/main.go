package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/baodantech/design-review-backend/internal/clients/catalog"
	"github.com/baodantech/design-review-backend/internal/clients/labelstore"
	"github.com/baodantech/design-review-backend/internal/db"
	"github.com/baodantech/design-review-backend/internal/handlers"
	"github.com/baodantech/design-review-backend/internal/logger"
	"github.com/baodantech/design-review-backend/internal/repos"
	"github.com/baodantech/design-review-backend/internal/server"
	"github.com/baodantech/design-review-backend/internal/services"
	"github.com/baodantech/design-review-backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis (optional label cache)
	var redisClient *redis.Client
	if addr := utils.GetEnv("REDIS_ADDR", "", log); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: utils.GetEnv("REDIS_PASSWORD", "", log),
			DB:       utils.GetEnvAsInt("REDIS_DB", 0, log),
		})
	}

	// Repos
	log.Info("Setting up repos from main...")
	reviewRepo := repos.NewDesignReviewRepo(thePG, log)
	goodsRepo := repos.NewGoodsRepo(thePG, log)
	imageLabelRepo := repos.NewImageLabelRepo(thePG, log)
	imageLinkRepo := repos.NewGoodsImageLinkRepo(thePG, log)
	categoryRuleRepo := repos.NewCategoryRuleRepo(thePG, log)

	// External clients
	labelStoreClient := labelstore.New(log)
	catalogClient := catalog.New(log)
	visionClient, err := services.NewVisionClient(log)
	if err != nil {
		log.Error("Could not init VisionClient", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up services from main...")
	notifier := services.NewNotifier(log)
	labelService := services.NewLabelService(log, labelStoreClient, imageLabelRepo, redisClient)
	imageLinkService := services.NewImageLinkService(log, imageLinkRepo)
	categoryService := services.NewCategoryService(log, categoryRuleRepo)
	reviewService := services.NewReviewService(log, reviewRepo)
	recommendService := services.NewRecommendService(log, reviewRepo, visionClient)
	goodsService := services.NewGoodsService(log, goodsRepo, categoryService, imageLinkService, catalogClient, notifier)

	// Handlers
	log.Info("Setting up handlers from main...")
	reviewHandler := handlers.NewReviewHandler(log, reviewService, recommendService)
	goodsHandler := handlers.NewGoodsHandler(log, goodsService)
	labelHandler := handlers.NewLabelHandler(log, labelService, categoryService, imageLinkService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ReviewHandler: reviewHandler,
		GoodsHandler:  goodsHandler,
		LabelHandler:  labelHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
