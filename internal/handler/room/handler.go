package room

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
	repo     repository.RoomRepository
	validate *validator.Validator
}

func NewHandler(repo repository.RoomRepository) *Handler {
	return &Handler{repo: repo, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rooms := r.Group("/rooms")
	{
		rooms.POST("", h.Create)
		rooms.GET("", h.List)
		rooms.GET("/:id", h.Get)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	room := &model.Room{
		Name: req.Name,
		Type: model.RoomType(req.Type),
	}
	if err := h.repo.Create(c.Request.Context(), room); err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithCreated(c, room)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid room ID", err))
		return
	}

	room, err := h.repo.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			httputil.RespondWithError(c, apperrors.NotFound("room", err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, room)
}

func (h *Handler) List(c *gin.Context) {
	rooms, err := h.repo.List(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, rooms)
}
