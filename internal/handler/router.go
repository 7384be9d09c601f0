package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hermod-app/hermod/internal/service"
	"github.com/sirupsen/logrus"
)

type RouterConfig struct {
	Auth           *AuthHandler
	Authenticator  service.Authenticator
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         logrus.FieldLogger
}

// NewRouter assembles the public API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(cfg.Logger), CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health_check", HealthCheck)
	r.GET("/openapi.json", OpenAPIDoc)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	r.GET("/login", cfg.Auth.Login)
	r.GET("/logout", cfg.Auth.Logout)
	r.POST("/register", cfg.Auth.Register)
	r.POST("/password/forgot", cfg.Auth.ForgotPassword)
	r.POST("/password/reset", cfg.Auth.ResetPassword)

	protected := r.Group("/")
	protected.Use(AuthMiddleware(cfg.Authenticator, cfg.Logger))
	protected.GET("/whoami", cfg.Auth.WhoAmI)
	protected.POST("/password/change", cfg.Auth.ChangePassword)

	return r
}
