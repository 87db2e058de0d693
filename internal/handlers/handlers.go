package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"docflow/api/internal/apperr"
	"docflow/api/internal/config"
	"docflow/api/internal/jobs"
	"docflow/api/internal/middleware"
	"docflow/api/internal/models"
	"docflow/api/internal/repository"
	"docflow/api/internal/service"
	"docflow/api/internal/storage"
)

type HandlerSet struct {
	log             zerolog.Logger
	cfg             *config.AppConfig
	authService     *service.AuthService
	userService     *service.UserService
	documentService *service.DocumentService
	db              *pgxpool.Pool
	cache           *redis.Client
	users           *repository.UserRepository
	documents       *repository.DocumentRepository
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	store *storage.ObjectStore,
	effects *jobs.Effects,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	historyRepo := repository.NewHistoryRepository(db)

	auth := service.NewAuthService(userRepo, cfg, log)
	users := service.NewUserService(userRepo, log)
	documents := service.NewDocumentService(documentRepo, historyRepo, userRepo, store, effects, cfg, log)

	return HandlerSet{
		log:             log,
		cfg:             cfg,
		authService:     auth,
		userService:     users,
		documentService: documents,
		db:              db,
		cache:           cache,
		users:           userRepo,
		documents:       documentRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)

		users := v1.Group("/users")
		users.Use(middleware.Auth(h.cfg, h.users))
		users.GET("/me", h.Me)
		users.PUT("/:id/password", h.UpdatePassword)

		adminUsers := v1.Group("/users")
		adminUsers.Use(
			middleware.Auth(h.cfg, h.users),
			middleware.RequireRoles(models.RoleAdmin),
		)
		adminUsers.GET("", h.ListUsers)
		adminUsers.GET("/:id", h.GetUser)
		adminUsers.PATCH("/:id", h.UpdateUser)
		adminUsers.DELETE("/:id", h.DeleteUser)

		documents := v1.Group("/documents")
		documents.GET("/public/approved", h.ListApprovedDocuments)

		owned := documents.Group("")
		owned.Use(middleware.Auth(h.cfg, h.users))
		owned.POST("/upload", h.UploadDocument)
		owned.GET("/my", h.MyDocuments)
		owned.DELETE("/:id", h.DeleteDocument)

		admin := documents.Group("")
		admin.Use(
			middleware.Auth(h.cfg, h.users),
			middleware.RequireRoles(models.RoleAdmin),
		)
		admin.GET("", h.ListDocuments)
		admin.GET("/search/advanced", h.SearchDocuments)
		admin.GET("/:id", h.GetDocument)
		admin.GET("/:id/history", h.DocumentHistory)
		admin.PUT("/:id/approve", h.ApproveDocument)
		admin.PUT("/:id/reject", h.RejectDocument)
	}
}

// respondError translates the failure taxonomy into a transport status
// and a structured payload carrying the machine-readable kind.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindUnauthenticated:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidTransition, apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindConflict:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}

	c.JSON(status, gin.H{"error": gin.H{
		"kind":    kind,
		"message": apperr.MessageOf(err),
	}})
}
