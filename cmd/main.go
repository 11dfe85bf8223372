package main

import (
	"database/sql"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron"

	"fitpoints/internal/achievements"
	"fitpoints/internal/bot"
	"fitpoints/internal/cache"
	"fitpoints/internal/condition"
	"fitpoints/internal/config"
	"fitpoints/internal/engine"
	"fitpoints/internal/repository"
	"fitpoints/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		log.Fatalf("Ошибка подключения к базе: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("База недоступна: %v", err)
	}
	if err := repository.Migrate(db); err != nil {
		log.Fatalf("Ошибка миграции: %v", err)
	}
	repo := repository.New(db)

	var configCache cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		configCache = cache.NewTiered(cache.NewRedis(client, ""), cache.NewMemory())
		log.Printf("Кэш: Redis %s + локальный", cfg.RedisAddr)
	} else {
		log.Println("Кэш: только локальный (REDIS_ADDR не задан)")
	}

	evaluator := condition.New()
	eng := engine.New(repo.Config, configCache, evaluator, repo.Audit, cfg.CacheTTL)
	checker := achievements.New(repo.Config, configCache, evaluator, cfg.CacheTTL)

	if cfg.SeedPath != "" {
		seedFile, err := seed.Load(cfg.SeedPath)
		if err != nil {
			log.Fatalf("Ошибка чтения seed-файла: %v", err)
		}
		written, err := seed.Apply(seedFile, repo.Config)
		if err != nil {
			log.Fatalf("Ошибка записи seed-конфигураций: %v", err)
		}
		if written > 0 {
			log.Printf("Записано конфигураций по умолчанию: %d", written)
		}
	}

	if err := eng.ReloadConfiguration(); err != nil {
		log.Printf("Предупреждение: не удалось прогреть кэш: %v", err)
	}

	// Периодический сброс кэша, чтобы правки администратора
	// гарантированно подхватывались
	c := cron.New()
	c.AddFunc("@hourly", func() {
		if err := eng.ReloadConfiguration(); err != nil {
			log.Printf("Ошибка перезагрузки конфигурации: %v", err)
		}
	})
	c.Start()

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("Ошибка создания бота: %v", err)
	}

	log.Printf("Бот запущен: @%s", api.Self.UserName)
	if err := bot.New(api, eng, checker, repo, cfg).Start(); err != nil {
		log.Fatal(err)
	}
}
