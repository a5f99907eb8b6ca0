package audit

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/nursing-api/internal/handler"
	"github.com/jwalitptl/nursing-api/internal/repository"
	"github.com/jwalitptl/nursing-api/internal/service/audit"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/httputil"
)

const (
	defaultLimit = 50
	exportLimit  = 10000
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audit := r.Group("/audit")
	{
		audit.GET("/logs", h.ListLogs)
		audit.GET("/logs/entity/:type/:id", h.GetEntityLogs)
		audit.GET("/export", h.ExportLogs)
	}
}

// filters reads actor_id, entity_type, entity_id, action, from and to
// (RFC 3339) plus limit and offset from the query string.
func filters(c *gin.Context) (repository.AuditFilters, error) {
	f := repository.AuditFilters{
		EntityType: c.Query("entity_type"),
		Action:     c.Query("action"),
		Limit:      handler.QueryInt(c, "limit", defaultLimit),
		Offset:     handler.QueryInt(c, "offset", 0),
	}
	for key, dst := range map[string]**uuid.UUID{"actor_id": &f.ActorID, "entity_id": &f.EntityID} {
		if v := c.Query(key); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return f, errors.BadRequest("invalid "+key, err)
			}
			*dst = &id
		}
	}
	for key, dst := range map[string]*time.Time{"from": &f.Range.From, "to": &f.Range.To} {
		if v := c.Query(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, errors.BadRequest("invalid "+key+" format", err)
			}
			*dst = t
		}
	}
	return f, nil
}

func (h *Handler) ListLogs(c *gin.Context) {
	f, err := filters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	logs, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, logs, f.Limit, f.Offset, total)
}

func (h *Handler) GetEntityLogs(c *gin.Context) {
	entityID, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	f := repository.AuditFilters{
		EntityType: c.Param("type"),
		EntityID:   &entityID,
		Limit:      handler.QueryInt(c, "limit", defaultLimit),
		Offset:     handler.QueryInt(c, "offset", 0),
	}
	logs, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, logs, f.Limit, f.Offset, total)
}

func (h *Handler) ExportLogs(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		httputil.RespondWithError(c, errors.BadRequest("unsupported format", nil))
		return
	}

	f, err := filters(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	f.Limit, f.Offset = exportLimit, 0

	logs, _, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.%s", time.Now().Format("20060102_150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	switch format {
	case "csv":
		c.Header("Content-Type", "text/csv")
		c.Status(http.StatusOK)
		writer := csv.NewWriter(c.Writer)
		_ = writer.Write([]string{"ID", "Actor ID", "Actor Role", "Action", "Entity Type", "Entity ID", "IP Address", "Created At"})
		for _, log := range logs {
			_ = writer.Write([]string{
				log.ID.String(),
				log.ActorID.String(),
				string(log.ActorRole),
				log.Action,
				log.EntityType,
				log.EntityID.String(),
				log.IPAddress,
				log.CreatedAt.Format(time.RFC3339),
			})
		}
		writer.Flush()
	case "json":
		c.JSON(http.StatusOK, logs)
	}
}
