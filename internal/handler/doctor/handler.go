package doctor

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
	doctorService "github.com/clinicore/booking-api/internal/service/doctor"
	"github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/httputil"
)

type Handler struct {
	service *doctorService.Service
}

func NewHandler(service *doctorService.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.Create)
		doctors.GET("", h.List)
		doctors.GET("/:id", h.Get)
		doctors.PUT("/:id", h.Update)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	doctor, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, doctor)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid doctor ID", err))
		return
	}

	doctor, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, doctor)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid doctor ID", err))
		return
	}

	var req model.UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	doctor, err := h.service.Update(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, doctor)
}

func (h *Handler) List(c *gin.Context) {
	doctors, err := h.service.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, doctors)
}
