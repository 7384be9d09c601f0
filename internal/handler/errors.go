package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hermod-app/hermod/internal/model"
	"github.com/hermod-app/hermod/internal/service"
	"github.com/sirupsen/logrus"
)

const basicChallenge = `Basic realm="publish"`

// writeAuthError maps a service error to its response. Internal detail is
// only logged.
func writeAuthError(c *gin.Context, logger logrus.FieldLogger, err error) {
	log := logger.WithError(err).WithField("path", c.FullPath())

	switch {
	case errors.Is(err, service.ErrInvalidHeaders), errors.Is(err, service.ErrInvalidCredentials):
		kind := "invalid_credentials"
		if errors.Is(err, service.ErrInvalidHeaders) {
			kind = "invalid_headers"
		}
		log.WithField("reason", kind).Info("login rejected")
		c.Header("WWW-Authenticate", basicChallenge)
		c.AbortWithStatus(http.StatusUnauthorized)
	case errors.Is(err, service.ErrUnauthorized):
		log.WithField("reason", unauthorizedReason(err)).Info("request rejected")
		c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "unauthorized"})
	case errors.Is(err, service.ErrInvalidInput):
		log.Info("invalid input")
		c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid input"})
	case errors.Is(err, service.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, model.ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrConflict):
		// A duplicate username is reported as a server fault.
		log.Warn("unique constraint violated")
		c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "server error"})
	default:
		log.Error("unexpected error")
		c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{Error: "server error"})
	}
}

func unauthorizedReason(err error) string {
	switch {
	case errors.Is(err, service.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, service.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, service.ErrAccountMissing):
		return "account_missing"
	default:
		return "missing_token"
	}
}
