package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/service/audit"
)

type AuditMiddleware struct {
	auditor *audit.AuditLogger
}

func NewAuditMiddleware(auditor *audit.AuditLogger) *AuditMiddleware {
	return &AuditMiddleware{auditor: auditor}
}

// AccessLog records a successful read on any route under routePrefix of
// the entity named by the :id path parameter. Writes are audited by the
// services themselves.
func (m *AuditMiddleware) AccessLog(entityType, routePrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet || c.Writer.Status() >= 400 {
			return
		}
		if !strings.HasPrefix(c.FullPath(), routePrefix) {
			return
		}
		actor, ok := ActorFrom(c)
		if !ok {
			return
		}
		entityID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return
		}
		m.auditor.Log(c.Request.Context(), actor, model.AuditActionRead, entityType, entityID, &audit.LogOptions{
			Metadata: map[string]interface{}{
				"route":  c.FullPath(),
				"status": c.Writer.Status(),
			},
		})
	}
}
