package patient

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

type Handler struct {
	repo     repository.PatientRepository
	validate *validator.Validator
}

func NewHandler(repo repository.PatientRepository) *Handler {
	return &Handler{repo: repo, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.Create)
		patients.GET("", h.List)
		patients.GET("/:id", h.Get)
		patients.PUT("/:id", h.Update)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	patient := &model.Patient{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
	}
	if err := h.repo.Create(c.Request.Context(), patient); err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithCreated(c, patient)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid patient ID", err))
		return
	}

	patient, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.RespondWithError(c, apperrors.NotFound("patient", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid patient ID", err))
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	patient, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.RespondWithError(c, apperrors.NotFound("patient", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	if req.Name != nil {
		patient.Name = *req.Name
	}
	if req.Email != nil {
		patient.Email = *req.Email
	}
	if req.Phone != nil {
		patient.Phone = *req.Phone
	}

	if err := h.repo.Update(c.Request.Context(), patient); err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) List(c *gin.Context) {
	var page model.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid pagination", err))
		return
	}

	patients, err := h.repo.List(c.Request.Context(), page)
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, patients)
}
