package service

import (
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/httputil"
	"github.com/clinicore/booking-api/pkg/validator"
)

// Handler exposes the billable service catalog and the links between
// appointments and the services rendered during them.
type Handler struct {
	repo     repository.ServiceRepository
	validate *validator.Validator
}

func NewHandler(repo repository.ServiceRepository) *Handler {
	return &Handler{repo: repo, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	services := r.Group("/services")
	{
		services.GET("", h.List)
		services.GET("/:id", h.Get)
	}
	appointments := r.Group("/appointments/:id/services")
	{
		appointments.POST("", h.Attach)
		appointments.GET("", h.ListByAppointment)
	}
}

func (h *Handler) List(c *gin.Context) {
	services, err := h.repo.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}
	httputil.RespondWithSuccess(c, services)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid service ID", err))
		return
	}

	svc, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.RespondWithError(c, apperrors.NotFound("service", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, svc)
}

type attachRequest struct {
	ServiceID uuid.UUID `json:"service_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"min=0,max=100"`
}

func (h *Handler) Attach(c *gin.Context) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	var req attachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	link := &model.AppointmentService{
		AppointmentID: appointmentID,
		ServiceID:     req.ServiceID,
		Quantity:      req.Quantity,
	}
	if err := h.repo.Attach(c.Request.Context(), link); err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithCreated(c, link)
}

func (h *Handler) ListByAppointment(c *gin.Context) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid appointment ID", err))
		return
	}

	services, err := h.repo.ListByAppointment(c.Request.Context(), appointmentID)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, services)
}
