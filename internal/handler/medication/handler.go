package medication

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/nursing-api/internal/handler"
	"github.com/jwalitptl/nursing-api/internal/rules/allergy"
	"github.com/jwalitptl/nursing-api/internal/service/medication"
	"github.com/jwalitptl/nursing-api/pkg/httputil"
)

type Handler struct {
	service *medication.Service
}

func NewHandler(service *medication.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients/:id")
	{
		patients.POST("/medications/check", h.CheckMedication)
		patients.POST("/medications", h.AdministerMedication)
		patients.GET("/medications", h.ListMedications)
		patients.GET("/allergy-alerts", h.ListAllergyAlerts)
	}
}

type checkRequest struct {
	Medication string `json:"medication" binding:"required"`
}

type administerRequest struct {
	Medication     string `json:"medication" binding:"required"`
	Dose           string `json:"dose"`
	Route          string `json:"route"`
	Confirmed      bool   `json:"confirmed"`
	Override       bool   `json:"override"`
	OverrideReason string `json:"override_reason"`
}

// CheckMedication runs the allergy check without recording anything, for
// live feedback while the form is filled in.
func (h *Handler) CheckMedication(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req checkRequest
	if !handler.Bind(c, &req) {
		return
	}
	v, err := h.service.Check(c.Request.Context(), id, req.Medication)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, v)
}

// AdministerMedication records an administration once the allergy gate
// lets it through. A warning needs confirmed=true; a contraindication
// needs override=true with a reason from an allowed role.
func (h *Handler) AdministerMedication(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req administerRequest
	if !handler.Bind(c, &req) {
		return
	}

	out, err := h.service.Administer(c.Request.Context(), medication.Request{
		PatientID:      id,
		Medication:     req.Medication,
		Dose:           req.Dose,
		Route:          req.Route,
		Actor:          actor,
		Confirmed:      req.Confirmed,
		Override:       req.Override,
		OverrideReason: req.OverrideReason,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	switch out.Gate {
	case allergy.GateProceed:
		httputil.RespondWithCreated(c, out)
	case allergy.GateOverrideRejected:
		handler.RespondWithOutcome(c, http.StatusForbidden, out.Message, out)
	default:
		handler.RespondWithOutcome(c, http.StatusConflict, out.Message, out)
	}
}

func (h *Handler) ListMedications(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	meds, err := h.service.History(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, meds)
}

func (h *Handler) ListAllergyAlerts(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	alerts, err := h.service.Alerts(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, alerts)
}
