package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recipebox/internal/api/auth"
	"recipebox/internal/api/middleware"
	"recipebox/internal/config"
	"recipebox/internal/model"
	"recipebox/internal/pkg/ratelimit"
	"recipebox/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、Gin 路由引擎，以及按领域拆分的
// 仓储接口；所有查询和写入都以请求用户为范围。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine
	auth   *auth.Handler

	recipes     RecipeStore
	tags        TagStore
	ingredients IngredientStore
}

// RecipeStore 菜谱仓储接口。
type RecipeStore interface {
	List(ctx context.Context, ownerID uint, filter store.RecipeFilter) ([]model.Recipe, error)
	Get(ctx context.Context, ownerID, id uint) (*model.Recipe, error)
	Create(ctx context.Context, ownerID uint, p store.CreateRecipeParams) (*model.Recipe, error)
	Update(ctx context.Context, ownerID, id uint, p store.UpdateRecipeParams) (*model.Recipe, error)
	Delete(ctx context.Context, ownerID, id uint) error
	SetImage(ctx context.Context, ownerID, id uint, filename string) (*model.Recipe, error)
}

// TagStore 标签仓储接口。
type TagStore interface {
	List(ctx context.Context, ownerID uint, assignedOnly bool) ([]model.Tag, error)
	Create(ctx context.Context, ownerID uint, name string) (*model.Tag, error)
	Update(ctx context.Context, ownerID, id uint, name string) (*model.Tag, error)
	Delete(ctx context.Context, ownerID, id uint) error
}

// IngredientStore 食材仓储接口。
type IngredientStore interface {
	List(ctx context.Context, ownerID uint, assignedOnly bool) ([]model.Ingredient, error)
	Create(ctx context.Context, ownerID uint, name string) (*model.Ingredient, error)
	Update(ctx context.Context, ownerID, id uint, name string) (*model.Ingredient, error)
	Delete(ctx context.Context, ownerID, id uint) error
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（限流）
// 3. 初始化 Gin 路由引擎并注册全部路由
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Tag{}, &model.Ingredient{}, &model.Recipe{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	users := store.NewUserStore(db)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics())

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		rdb:         rdb,
		router:      r,
		auth:        auth.NewHandler(users, cfg.Security.JWTSecret, cfg.App.TokenTTL, logger),
		recipes:     store.NewRecipeStore(db),
		tags:        store.NewTagStore(db),
		ingredients: store.NewIngredientStore(db),
	}
	s.registerRoutes(users)
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 关闭数据库与 Redis 连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if closeErr := sqlDB.Close(); closeErr != nil {
			if firstErr == nil {
				firstErr = closeErr
			}
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes(users middleware.UserLookup) {
	// 上传的图片直接作为静态文件提供，响应中的 image 字段指向这里
	s.router.Static("/media", s.cfg.Upload.Dir)

	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)

	limiter := ratelimit.New(s.rdb, "recipebox:ratelimit:public:", s.cfg.App.RateLimit, s.cfg.App.RateBurst)
	public := s.router.Group("/users")
	public.Use(middleware.RateLimit(limiter, s.logger))
	public.POST("", s.auth.Register)
	public.POST("/token", s.auth.Token)

	authed := s.router.Group("/")
	authed.Use(middleware.AuthMiddleware(s.cfg.Security.JWTSecret, users))
	authed.GET("/users/me", s.auth.Me)
	authed.PATCH("/users/me", s.auth.UpdateMe)
	authed.POST("/users/me/delete", s.auth.DeleteAccount)

	authed.GET("/recipes", s.handleListRecipes)
	authed.POST("/recipes", s.handleCreateRecipe)
	authed.GET("/recipes/:id", s.handleGetRecipe)
	authed.PUT("/recipes/:id", s.handleFullUpdateRecipe)
	authed.PATCH("/recipes/:id", s.handlePartialUpdateRecipe)
	authed.DELETE("/recipes/:id", s.handleDeleteRecipe)
	authed.POST("/recipes/:id/upload-image", s.handleUploadImage)

	authed.GET("/tags", s.handleListTags)
	authed.POST("/tags", s.handleCreateTag)
	authed.PATCH("/tags/:id", s.handleUpdateTag)
	authed.DELETE("/tags/:id", s.handleDeleteTag)

	authed.GET("/ingredients", s.handleListIngredients)
	authed.POST("/ingredients", s.handleCreateIngredient)
	authed.PATCH("/ingredients/:id", s.handleUpdateIngredient)
	authed.DELETE("/ingredients/:id", s.handleDeleteIngredient)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.db == nil || s.rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getUserID 返回认证中间件写入的当前用户 ID。
func getUserID(c *gin.Context) uint {
	v, ok := c.Get("userID")
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}

// parseID 解析路径参数中的资源 ID。
func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

// parseIDList 解析逗号分隔的 ID 列表查询参数（如 "1,2,3"）。
// 空串返回 nil；任何一段不是正整数则整体报错。
func parseIDList(raw string) ([]uint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return nil, err
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// respondStoreError 将仓储错误映射为 HTTP 响应。
func (s *Server) respondStoreError(c *gin.Context, err error, logMsg string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		if s.logger != nil {
			s.logger.Error(logMsg, slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": logMsg})
	}
}
