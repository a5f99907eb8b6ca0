package patient

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/nursing-api/internal/handler"
	"github.com/jwalitptl/nursing-api/internal/service/patient"
	"github.com/jwalitptl/nursing-api/pkg/httputil"
)

type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/shift", h.ShiftStatus)

	patients := r.Group("/patients")
	{
		patients.GET("", h.ListPatients)
		patients.POST("", h.AdmitPatient)
		patients.GET("/:id", h.GetPatient)
		patients.POST("/:id/transfers", h.TransferPatient)
		patients.GET("/:id/transfers", h.ListTransfers)
	}
}

type admitRequest struct {
	Name      string               `json:"name" binding:"required"`
	Allergies string               `json:"allergies"`
	Location  handler.LocationBody `json:"location" binding:"required"`
}

type transferRequest struct {
	To     handler.LocationBody `json:"to" binding:"required"`
	Reason string               `json:"reason" binding:"required"`
}

// ListPatients returns the patients assigned to the caregiver, with
// assignment stats and the live shift status.
func (h *Handler) ListPatients(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	view, err := h.service.Visible(c.Request.Context(), actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

func (h *Handler) AdmitPatient(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	var req admitRequest
	if !handler.Bind(c, &req) {
		return
	}
	p, err := h.service.Admit(c.Request.Context(), patient.AdmitRequest{
		Name:      req.Name,
		Allergies: req.Allergies,
		Location:  req.Location.Model(),
	}, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, p)
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	p, loc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, handler.PatientResponse{Patient: p, CurrentLocation: loc})
}

func (h *Handler) TransferPatient(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req transferRequest
	if !handler.Bind(c, &req) {
		return
	}
	t, err := h.service.Transfer(c.Request.Context(), patient.TransferRequest{
		PatientID: id,
		To:        req.To.Model(),
		Reason:    req.Reason,
	}, actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, t)
}

func (h *Handler) ListTransfers(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	ts, err := h.service.Transfers(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, ts)
}

func (h *Handler) ShiftStatus(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	status, err := h.service.ShiftStatus(c.Request.Context(), actor)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, status)
}
