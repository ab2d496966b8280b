package server

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	v1 "github.com/RockyWearsAHat/nat-accounting-sub000/internal/api/v1"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/blueprint"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/config"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/service/quote"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/snapshot"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/store"
)

// Server HTTP服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	svc    *quote.Service
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig) *Server {
	devMode := cfg.Server.DevMode
	if !devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化 SQLite Store
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		dataDir = cfg.Data.DataDir
	}
	dbPath := filepath.Join(dataDir, "quotedesk.db")

	sqliteStore, err := store.New(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	svc := quote.New(sqliteStore, newAIGenerator(cfg), snapshot.Options{
		MaxRows: cfg.Pricing.MaxSnapshotRows,
		MaxCols: cfg.Pricing.MaxSnapshotCols,
	})

	s := &Server{
		router: gin.Default(),
		store:  sqliteStore,
		svc:    svc,
	}

	s.setupRoutes()

	return s
}

// newAIGenerator 读取凭据装配 AI 生成器；未配置则返回 nil（静默走确定性生成）
func newAIGenerator(cfg *config.AppConfig) blueprint.Generator {
	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		log.Printf("GEMINI_API_KEY not set, blueprint generation will be deterministic only")
		return nil
	}
	return blueprint.NewAI(apiKey, cfg.AI.Model, cfg.AI.SchemaEra, cfg.AI.TimeoutSeconds)
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// 报价 API 路由
	handler := v1.NewHandler(s.svc)
	api := s.router.Group("/api")
	{
		handler.RegisterRoutes(api)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Close 关闭底层存储
func (s *Server) Close() error {
	return s.store.Close()
}

// GetStore 获取存储（用于测试）
func (s *Server) GetStore() *store.Store {
	return s.store
}
