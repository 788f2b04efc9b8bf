package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casework-api/internal/dto"
	"github.com/noah-isme/casework-api/internal/middleware"
	"github.com/noah-isme/casework-api/internal/models"
	appErrors "github.com/noah-isme/casework-api/pkg/errors"
	"github.com/noah-isme/casework-api/pkg/response"
)

const maxAuditLimit = 500

// actorFromContext returns the authenticated actor or writes a 401.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return claims.Actor(), true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}

// bindAuditQuery reads ?limit=, defaulting to 0 (everything) and capping large values.
func bindAuditQuery(c *gin.Context) (dto.AuditQuery, error) {
	var query dto.AuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return dto.AuditQuery{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "limit must be a non-negative integer")
	}
	if query.Limit > maxAuditLimit {
		query.Limit = maxAuditLimit
	}
	return query, nil
}
