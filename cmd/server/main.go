package main

import (
	"context"
	"log"
	"time"

	"anoa.com/classboard/internal/config"
	"anoa.com/classboard/internal/server"
	"anoa.com/classboard/pkg/database"
	"anoa.com/classboard/pkg/kvstore"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	redisClient := connectRedis(cfg)

	var store kvstore.Store
	switch cfg.StorageDriver {
	case "redis":
		if redisClient == nil {
			log.Fatalf("STORAGE_DRIVER=redis but redis is unavailable at %s", cfg.RedisURL)
		}
		store = kvstore.NewRedisStore(redisClient, cfg.StorageTTL)
	case "postgres":
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("%v", err)
		}
		gormStore := kvstore.NewGormStore(db)
		if err := gormStore.Migrate(); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		store = gormStore
	default:
		log.Println("⚠️  Using in-memory storage; sessions are lost on restart")
		store = kvstore.NewMemoryStore()
	}

	srv := server.NewServer(cfg, store, redisClient)

	log.Printf("🚀 classboard listening on :%s (storage=%s)", cfg.Port, cfg.StorageDriver)
	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

// connectRedis returns nil when REDIS_URL is empty or unreachable.
func connectRedis(cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("❌ Redis unavailable: %v", err)
		_ = client.Close()
		return nil
	}
	log.Println("✅ Connected to redis")
	return client
}
