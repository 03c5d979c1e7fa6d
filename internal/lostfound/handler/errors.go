package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/lostfound/internal/itemledger"
	"github.com/jmerrifield20/lostfound/internal/lostfound/service"
	"go.uber.org/zap"
)

// errorStatus maps service and ledger errors onto HTTP status codes.
func errorStatus(err error) int {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, itemledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, itemledger.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, itemledger.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the JSON error body for err. Server-side failures are
// logged and their details kept out of the response.
func abortWithError(c *gin.Context, logger *zap.Logger, action string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(action, zap.Error(err), zap.Int("status", status))
		msg := "failed to " + action
		if status == http.StatusServiceUnavailable {
			msg = "ledger storage unavailable"
		}
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}

	body := gin.H{"error": err.Error()}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	c.AbortWithStatusJSON(status, body)
}
