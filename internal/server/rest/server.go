// Package rest exposes the Blogify HTTP API on gin.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/blogify/internal/logging"
	"github.com/dmitrijs2005/blogify/internal/server/config"
	"github.com/dmitrijs2005/blogify/internal/server/models"
	"github.com/dmitrijs2005/blogify/internal/server/observability"
	"github.com/dmitrijs2005/blogify/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

// UserService is the part of services.UserService the handlers use.
type UserService interface {
	Register(ctx context.Context, email, password, name string) (*services.Session, error)
	Login(ctx context.Context, email, password, clientKey string) (*services.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*services.Session, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, upd services.ProfileUpdate) (*models.User, error)
	SetRole(ctx context.Context, userID string, role models.Role) (*models.User, error)
}

type ContentService interface {
	CreatePost(ctx context.Context, author *models.User, in services.NewPost) (*models.Post, error)
	GetPost(ctx context.Context, viewer *models.User, id string) (*models.Post, error)
	ListPosts(ctx context.Context, page, pageSize int) ([]*models.Post, services.Page, error)
	Search(ctx context.Context, q string) ([]*models.Post, error)
	AddComment(ctx context.Context, author *models.User, postID, content string) (*models.Comment, error)
	ListComments(ctx context.Context, viewer *models.User, postID string) ([]*models.Comment, error)
}

type AvatarService interface {
	PresignUpload(ctx context.Context, userID string) (*services.AvatarUpload, error)
}

// HTTPServer wires the services into a gin router and serves it.
type HTTPServer struct {
	config  *config.Config
	logger  logging.Logger
	users   UserService
	content ContentService
	avatars AvatarService
	router  *gin.Engine
}

func NewHTTPServer(c *config.Config, l logging.Logger, us UserService, cs ContentService, as AvatarService) *HTTPServer {
	s := &HTTPServer{
		config:  c,
		logger:  l.With("module", "http_server"),
		users:   us,
		content: cs,
		avatars: as,
	}
	registerValidators()
	s.router = s.newRouter()
	return s
}

// Router returns the configured handler, mainly for tests.
func (s *HTTPServer) Router() http.Handler {
	return s.router
}

func (s *HTTPServer) newRouter() *gin.Engine {
	if s.config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(s.recovery(), s.requestLogger(), observability.Middleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = s.config.CORSAllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsConfig))

	r.Use(s.errorTranslator())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.register)
	authGroup.POST("/login", s.login)
	authGroup.POST("/refresh", s.refresh)
	authGroup.POST("/logout", s.logout)

	usersGroup := api.Group("/users", s.Authenticate())
	usersGroup.GET("/me", s.getProfile)
	usersGroup.PATCH("/me", s.updateProfile)
	usersGroup.POST("/me/avatar", s.presignAvatar)
	usersGroup.PUT("/:id/role", Authorize(models.RoleAdmin), s.setRole)

	postsGroup := api.Group("/posts")
	postsGroup.GET("", s.listPosts)
	postsGroup.GET("/:id", s.OptionalAuthenticate(), s.getPost)
	postsGroup.POST("", s.Authenticate(), Authorize(models.RoleAdmin, models.RoleEditor), s.createPost)
	postsGroup.GET("/:id/comments", s.OptionalAuthenticate(), s.listComments)
	postsGroup.POST("/:id/comments", s.Authenticate(), s.addComment)

	api.GET("/search", s.search)

	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.EndpointAddrHTTP,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
