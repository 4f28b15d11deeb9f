package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/chunkloader/internal/api"
	"github.com/annel0/chunkloader/internal/auth"
	"github.com/annel0/chunkloader/internal/cache"
	"github.com/annel0/chunkloader/internal/config"
	"github.com/annel0/chunkloader/internal/eventbus"
	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/observability"
	"github.com/annel0/chunkloader/internal/storage_adapter"
	"github.com/annel0/chunkloader/internal/storage_interface"
	"github.com/annel0/chunkloader/internal/vec"
	"github.com/annel0/chunkloader/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или CHUNKLOADER_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}

	if err := setupLogging(cfg.Logging); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🧩 Запуск chunkloader (node=%s, backend=%s)", cfg.Server.NodeID, cfg.Storage.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Server.NodeID)
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry недоступен: %v", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// === ХРАНИЛИЩЕ ===
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		logging.Error("❌ Ошибка инициализации хранилища: %v", err)
		log.Fatalf("❌ Ошибка инициализации хранилища: %v", err)
	}
	defer provider.Close()

	// === РЕЕСТР ===
	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry := world.NewRegistry(world.NewRegistryMetrics(metricsRegistry))
	loaded, err := registry.Load(ctx, provider)
	if err != nil {
		logging.Error("❌ Ошибка загрузки наборов чанков: %v", err)
		log.Fatalf("❌ Ошибка загрузки наборов чанков: %v", err)
	}
	logging.Info("📦 Загружено миров: %d", loaded)

	loader := world.NewLoader(vec.Vec3{}, nil)
	hooks := world.MultiHooks{loader}
	if cfg.Events.Enabled {
		bus := buildEventBus(cfg.Events)
		defer bus.Close()
		if err := eventbus.RegisterMetrics(metricsRegistry, bus); err != nil {
			logging.Warn("⚠️ Метрики шины событий не зарегистрированы: %v", err)
		}
		if _, err := eventbus.StartLoggingListener(ctx, bus, logging.GetComponentLogger("eventbus")); err != nil {
			logging.Warn("⚠️ LoggingListener не запущен: %v", err)
		}
		hooks = append(hooks, eventbus.NewBusHooks(bus, cfg.Server.NodeID, nil))
	}
	registry.SetHooks(hooks)
	logging.Info("🔗 Загрузчик %s подключён", loader.ID())

	pinned := 0
	for name, chunks := range cfg.Loader.Pinned {
		for _, c := range chunks {
			if registry.AddChunk(name, c.X, c.Z) {
				pinned++
			}
		}
	}
	if pinned > 0 {
		logging.Info("📌 Закреплено новых чанков из конфигурации: %d", pinned)
	}

	if interval := cfg.Loader.AutosaveInterval(); interval > 0 {
		go registry.Autosave(ctx, provider, interval)
		logging.Info("💾 Автосохранение каждые %v", interval)
	}

	// === REST API ===
	var tokens *auth.TokenManager
	if secret := cfg.Auth.GetJWTSecret(); secret != "" {
		tokens, err = auth.NewTokenManager(secret)
		if err != nil {
			log.Fatalf("❌ Некорректный JWT секрет: %v", err)
		}
		logging.Info("🔐 JWT авторизация изменяющих запросов включена")
	} else {
		logging.Warn("⚠️ JWT секрет не задан, изменяющие запросы доступны без авторизации")
	}

	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	server := api.NewRestServer(api.Config{
		Port:     restPort,
		Registry: registry,
		Provider: provider,
		Tokens:   tokens,
		Loader:   loader,
		Codec:    storage_adapter.CodecFromConfig(cfg.Storage),
		Metrics:  metricsRegistry,
	})

	go func() {
		if err := server.Start(); err != nil {
			logging.Error("❌ Ошибка REST API: %v", err)
			cancel()
		}
	}()

	logging.Info("✅ Сервис запущен")
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info("📡 Получен сигнал %v, завершение работы...", sig)
	case <-ctx.Done():
	}

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	logging.Debug("Остановка REST API...")
	if err := server.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	cancel()
	if err := registry.SaveAll(shutdownCtx, provider); err != nil {
		logging.Error("❌ Ошибка финального сохранения: %v", err)
	}

	logging.Info("👋 Сервис остановлен")
}

func setupLogging(cfg config.LoggingConfig) error {
	consoleLevel, err := logging.ParseLevel(cfg.ConsoleLevel)
	if err != nil {
		return err
	}
	fileLevel := logging.DEBUG
	if cfg.FileLevel != "" {
		if fileLevel, err = logging.ParseLevel(cfg.FileLevel); err != nil {
			return err
		}
	}

	logging.Configure(logging.Options{
		Dir:          cfg.Dir,
		ConsoleLevel: consoleLevel,
		FileLevel:    fileLevel,
	})
	return logging.InitDefaultLogger("server")
}

// buildEventBus подключается к JetStream или возвращает шину в памяти
func buildEventBus(cfg config.EventsConfig) eventbus.EventBus {
	if cfg.NATSURL != "" {
		bus, err := eventbus.NewJetStreamBus(cfg.NATSURL, cfg.Stream, cfg.Retention())
		if err == nil {
			logging.Info("📨 События чанков публикуются в JetStream (%s)", cfg.Stream)
			return bus
		}
		logging.Warn("⚠️ JetStream недоступен (%v), используется шина в памяти", err)
	}
	return eventbus.NewMemoryBus(cfg.BufferSize)
}

// buildProvider создаёт хранилище и при необходимости оборачивает его кешем
func buildProvider(ctx context.Context, cfg *config.Config) (storage_interface.SetProvider, error) {
	provider, err := storage_adapter.NewProvider(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled {
		return provider, nil
	}

	var repo cache.CacheRepo
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		RedisURL:      cfg.Cache.RedisURL,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
		KeyPrefix:     cfg.Cache.KeyPrefix,
		MaxTTL:        cfg.Cache.TTL(),
	})
	if err != nil {
		logging.Warn("⚠️ Redis недоступен (%v), используется кеш в памяти", err)
		repo = cache.NewMemoryCache()
	} else {
		repo = redisCache
	}

	var invalidator cache.CacheInvalidator
	if cfg.Cache.NATSURL != "" {
		inv, err := cache.NewNATSInvalidator(&cache.InvalidatorConfig{
			NATSURL: cfg.Cache.NATSURL,
			Subject: cfg.Cache.Subject,
		}, cfg.Server.NodeID)
		if err != nil {
			logging.Warn("⚠️ NATS недоступен (%v), инвалидация между узлами выключена", err)
		} else {
			invalidator = inv
		}
	}

	cached := cache.NewCachedProvider(provider, repo, invalidator, cfg.Cache.TTL())
	if err := cached.Start(ctx); err != nil {
		cached.Close()
		return nil, err
	}
	logging.Info("⚡ Кеш наборов чанков включён (ttl=%v)", cfg.Cache.TTL())
	return cached, nil
}
