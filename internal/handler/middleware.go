package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hermod-app/hermod/internal/model"
	"github.com/hermod-app/hermod/internal/service"
	"github.com/sirupsen/logrus"
)

const accountKey = "account"

// AuthMiddleware resolves the calling account or aborts the request.
func AuthMiddleware(authn service.Authenticator, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		account, err := authn.Authenticate(c.Request.Context(), c.Request.Header)
		if err != nil {
			writeAuthError(c, logger, err)
			return
		}

		c.Set(accountKey, account)
		c.Next()
	}
}

// GetAccount returns the account stored by AuthMiddleware, or nil.
func GetAccount(c *gin.Context) *model.Account {
	if value, ok := c.Get(accountKey); ok {
		if account, ok := value.(*model.Account); ok {
			return account
		}
	}
	return nil
}

// CORSMiddleware allows the listed origins. "*" allows any origin.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			_, ok := originMap[origin]
			if allowAll || ok {
				if allowAll {
					c.Header("Access-Control-Allow-Origin", "*")
				} else {
					c.Header("Access-Control-Allow-Origin", origin)
					c.Header("Vary", "Origin")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
				c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				c.Header("Access-Control-Expose-Headers", "WWW-Authenticate")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger logs one line per request. Headers are never logged since
// they carry credentials.
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		}
		if account := GetAccount(c); account != nil {
			fields["account_id"] = account.ID
			fields["username"] = account.Username
		}

		entry := logger.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
