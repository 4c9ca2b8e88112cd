package bootstrap

import (
	"fmt"

	"github.com/tmdgusya/crawl-selector/internal/config"
	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
)

// SetupStore opens the recipe store selected by cfg.Store.Driver. The returned
// func releases its connection.
func SetupStore(cfg *config.Config, log logger.Logger) (recipe.Store, func() error, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		client, err := recipe.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connection: %w", err)
		}
		log.Info("Recipe store initialized",
			logger.String("driver", cfg.Store.Driver),
			logger.String("redis_address", cfg.Redis.Address),
		)
		return recipe.NewRedisStore(client, cfg.Redis.KeyPrefix), client.Close, nil

	case config.DriverPostgres:
		db, err := recipe.NewPostgresConnection(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("database connection: %w", err)
		}
		if migrateErr := recipe.RunMigrations(db.DB, cfg.Database.MigrationsPath, log); migrateErr != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", migrateErr)
		}
		log.Info("Recipe store initialized",
			logger.String("driver", cfg.Store.Driver),
			logger.String("host", cfg.Database.Host),
			logger.String("database", cfg.Database.DBName),
		)
		return recipe.NewPostgresStore(db), db.Close, nil

	default:
		log.Info("Recipe store initialized", logger.String("driver", config.DriverMemory))
		return recipe.NewMemoryStore(), func() error { return nil }, nil
	}
}
