package main

import (
	"servicehub/internal/catalog/handler"
	"servicehub/internal/catalog/repository"
	"servicehub/internal/catalog/service"
	"servicehub/internal/catalog/validator"
	"servicehub/pkg/app"
	"servicehub/pkg/cache"
	"servicehub/pkg/config"
)

const ServiceName = "catalog"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	cfg.SetRedis()

	cfg.Log.Info("Starting Catalog service")
	serviceItemService := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewServiceItemHandler(serviceItemService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.ServiceItemService {
	itemCache := cache.New(cfg.Client.Redis, "service_items", cfg.CacheTTL, cfg.Log)
	serviceItemService := service.NewServiceItemService(
		repository.NewMongoServiceItemRepository(cfg),
		validator.NewServiceItemValidator(cfg.Log),
		itemCache,
		cfg,
	)

	cfg.Log.Info("Service item service initialized",
		"database", cfg.MongoDatabaseName,
		"cache_enabled", itemCache.Enabled(),
	)
	return serviceItemService
}
