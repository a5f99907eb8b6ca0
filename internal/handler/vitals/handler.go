package vitals

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/nursing-api/internal/handler"
	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/service/vitals"
	"github.com/jwalitptl/nursing-api/pkg/httputil"
)

const defaultHistoryLimit = 20

type Handler struct {
	service *vitals.Service
}

func NewHandler(service *vitals.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/vitals/classify", h.Classify)

	patients := r.Group("/patients/:id")
	{
		patients.POST("/vitals", h.RecordVitals)
		patients.GET("/vitals", h.ListVitals)
	}
}

type classifyRequest struct {
	Values map[string]string `json:"values" binding:"required"`
}

type recordRequest struct {
	Values      map[string]string `json:"values" binding:"required"`
	Acknowledge string            `json:"acknowledge" binding:"omitempty,oneof=warnings critical"`
}

// Classify zones a form as typed, without storing it.
func (h *Handler) Classify(c *gin.Context) {
	var req classifyRequest
	if !handler.Bind(c, &req) {
		return
	}
	summary, err := h.service.Classify(req.Values)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

// RecordVitals stores a reading. Readings outside normal need an explicit
// acknowledgement; without it the classification comes back with 409.
func (h *Handler) RecordVitals(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req recordRequest
	if !handler.Bind(c, &req) {
		return
	}

	out, err := h.service.Record(c.Request.Context(), vitals.Request{
		PatientID: id,
		Values:    req.Values,
		Actor:     actor,
		Ack:       model.Acknowledgement(req.Acknowledge),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if !out.Saved {
		handler.RespondWithOutcome(c, http.StatusConflict, out.Message, out)
		return
	}
	httputil.RespondWithCreated(c, out)
}

func (h *Handler) ListVitals(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	readings, err := h.service.History(c.Request.Context(), id, handler.QueryInt(c, "limit", defaultHistoryLimit))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, readings)
}
