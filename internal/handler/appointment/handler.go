package appointment

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/service/booking"
	"github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/httputil"
)

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.GET("/availability", h.GetAvailability)
		appointments.POST("", h.Book)
		appointments.GET("", h.List)
		appointments.GET("/:id", h.Get)
		appointments.PUT("/:id/reschedule", h.Reschedule)
		appointments.POST("/:id/checkin", h.CheckIn)
		appointments.POST("/:id/complete", h.Complete)
		appointments.POST("/:id/cancel", h.Cancel)
		appointments.POST("/:id/no-show", h.MarkNoShow)
		appointments.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Book(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	apt, err := h.service.Book(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid appointment ID", err))
		return
	}

	apt, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) List(c *gin.Context) {
	filters := &model.AppointmentFilters{}

	if raw := c.Query("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid doctor ID", err))
			return
		}
		filters.DoctorID = id
	}
	if raw := c.Query("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid patient ID", err))
			return
		}
		filters.PatientID = id
	}
	if raw := c.Query("room_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid room ID", err))
			return
		}
		filters.RoomID = id
	}
	if status := c.Query("status"); status != "" {
		s := model.AppointmentStatus(status)
		if !s.Valid() {
			httputil.RespondWithError(c, errors.BadRequest("invalid status", nil))
			return
		}
		filters.Status = s
	}
	if raw := c.Query("start_date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid start date", err))
			return
		}
		filters.StartDate = d
	}
	if raw := c.Query("end_date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.RespondWithError(c, errors.BadRequest("invalid end date", err))
			return
		}
		filters.EndDate = d
	}

	appointments, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid appointment ID", err))
		return
	}

	var req model.RescheduleAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	apt, err := h.service.Reschedule(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) CheckIn(c *gin.Context) {
	h.transition(c, h.service.CheckIn)
}

func (h *Handler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete)
}

func (h *Handler) MarkNoShow(c *gin.Context) {
	h.transition(c, h.service.MarkNoShow)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid appointment ID", err))
		return
	}

	var req model.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	apt, err := h.service.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid appointment ID", err))
		return
	}

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, nil)
}

func (h *Handler) GetAvailability(c *gin.Context) {
	doctorID, err := uuid.Parse(c.Query("doctor_id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid doctor ID", err))
		return
	}

	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid date format, expected YYYY-MM-DD", err))
		return
	}

	slotLen := booking.DefaultSlotLen
	if raw := c.Query("slot_minutes"); raw != "" {
		d, err := time.ParseDuration(raw + "m")
		if err != nil || d <= 0 {
			httputil.RespondWithError(c, errors.BadRequest("invalid slot_minutes", err))
			return
		}
		slotLen = d
	}

	slots, err := h.service.GetDoctorAvailability(c.Request.Context(), doctorID, date, slotLen)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, id uuid.UUID) (*model.Appointment, error)) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid appointment ID", err))
		return
	}

	apt, err := fn(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, apt)
}
