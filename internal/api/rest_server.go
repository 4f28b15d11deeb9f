package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/chunkloader/internal/auth"
	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/middleware"
	"github.com/annel0/chunkloader/internal/storage_adapter"
	"github.com/annel0/chunkloader/internal/storage_interface"
	"github.com/annel0/chunkloader/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервер администрирования наборов чанков
type RestServer struct {
	router   *gin.Engine
	server   *http.Server
	registry *world.Registry
	provider storage_interface.SetProvider
	tokens   *auth.TokenManager
	loader   *world.Loader
	codec    storage_adapter.SetCodec
	port     string
	metrics  *ServerMetrics
	log      *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port     string                        // порт для запуска сервера, например ":8088"
	Registry *world.Registry               // реестр наборов чанков
	Provider storage_interface.SetProvider // хранилище для POST /api/save
	Tokens   *auth.TokenManager            // nil — изменяющие запросы без авторизации
	Loader   *world.Loader                 // опционально, для /api/stats
	Codec    storage_adapter.SetCodec      // формат выгрузки NBT
	Metrics  *prometheus.Registry          // регистр для HTTP-метрик и /metrics
	Logger   *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Metrics == nil {
		config.Metrics = prometheus.NewRegistry()
	}
	if config.Logger == nil {
		config.Logger = logging.GetAPILogger()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("chunkloader_api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("chunkloader_api", config.Metrics)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Metrics)

	rs := &RestServer{
		router:   router,
		registry: config.Registry,
		provider: config.Provider,
		tokens:   config.Tokens,
		loader:   config.Loader,
		codec:    config.Codec,
		port:     config.Port,
		metrics:  NewServerMetrics(),
		log:      config.Logger,
	}

	// Настраиваем маршруты
	rs.setupRoutes()

	return rs
}

// Router возвращает gin.Engine (для тестов через httptest)
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api", worldNameMiddleware())
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/worlds", rs.handleListWorlds)
		api.GET("/worlds/:world/chunks", rs.handleListChunks)
		api.GET("/worlds/:world/chunks/:x/:z", rs.handleChunkExists)
		api.GET("/worlds/:world/nbt", rs.handleExportNBT)
	}

	// Изменяющие эндпоинты (требуют JWT администратора, если задан секрет)
	admin := api.Group("/")
	if rs.tokens != nil {
		admin.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	}
	{
		admin.PUT("/worlds/:world/chunks/:x/:z", rs.handleAddChunk)
		admin.DELETE("/worlds/:world/chunks/:x/:z", rs.handleRemoveChunk)
		admin.DELETE("/worlds/:world", rs.handleDropWorld)
		admin.POST("/worlds/:world/nbt", rs.handleImportNBT)
		admin.POST("/save", rs.handleSave)
	}
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, GenericResponse{
		Success: status < http.StatusBadRequest,
		Message: message,
		Data:    data,
	})
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	counts := rs.registry.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	stats["chunks"] = map[string]interface{}{
		"worlds": len(counts),
		"total":  total,
		"dirty":  rs.registry.Dirty(),
	}

	if rs.loader != nil {
		stats["loader"] = rs.loader.Stats()
	}

	// Метрики сервера
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"server_time": time.Now().Unix(),
	}
	stats["memory_details"] = rs.metrics.GetDetailedMemoryStats()

	respond(c, http.StatusOK, "Статистика получена", stats)
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.server = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rs.log.Info("🌐 REST API слушает %s", rs.port)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop выполняет graceful shutdown
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.server == nil {
		return nil
	}
	return rs.server.Shutdown(ctx)
}
