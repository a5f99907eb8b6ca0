package note

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/nursing-api/internal/handler"
	"github.com/jwalitptl/nursing-api/internal/service/note"
	"github.com/jwalitptl/nursing-api/pkg/httputil"
)

type Handler struct {
	service *note.Service
}

func NewHandler(service *note.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/patients/:id/notes", h.CreateNote)
	r.GET("/patients/:id/notes", h.ListNotes)

	notes := r.Group("/notes")
	{
		notes.GET("/:id", h.GetNote)
		notes.PUT("/:id", h.EditNote)
		notes.GET("/:id/history", h.GetHistory)
	}
}

type createRequest struct {
	Text string `json:"text" binding:"required"`
}

type editRequest struct {
	Text   string `json:"text" binding:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) CreateNote(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req createRequest
	if !handler.Bind(c, &req) {
		return
	}
	view, err := h.service.Create(c.Request.Context(), id, req.Text, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, view)
}

func (h *Handler) ListNotes(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	notes, err := h.service.ListByPatient(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, notes)
}

func (h *Handler) GetNote(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	view, err := h.service.Get(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

// EditNote applies one edit. Locked notes answer 423, a concurrent edit
// answers 409.
func (h *Handler) EditNote(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req editRequest
	if !handler.Bind(c, &req) {
		return
	}
	view, err := h.service.Edit(c.Request.Context(), id, req.Text, req.Reason, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) GetHistory(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	edits, err := h.service.History(c.Request.Context(), id, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, edits)
}
