package app

import (
	"log"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/doncapon/yemisshop-sub009/internal/config"
	"github.com/doncapon/yemisshop-sub009/internal/db"
	httpdelivery "github.com/doncapon/yemisshop-sub009/internal/delivery/http"
	"github.com/doncapon/yemisshop-sub009/internal/logger"
)

type App struct {
	f    *fiber.App
	port string
}

func New() *App {
	cfg := config.Load()

	zlog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	pool, err := db.NewPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	f := fiber.New(fiber.Config{
		AppName: "yemisshop-settlement",
	})

	f.Use(recover.New())
	f.Use(fiberlogger.New())

	httpdelivery.RegisterRoutes(f, cfg, pool, rdb, zlog)

	return &App{f: f, port: cfg.Port}
}

func (a *App) Run() error {
	return a.f.Listen(":" + a.port)
}
