package auth

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/booking-api/internal/service/auth"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/httputil"
	"github.com/clinicore/booking-api/pkg/validator"
)

type Handler struct {
	svc      *auth.Service
	validate *validator.Validator
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validate.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}
		httputil.RespondWithError(c, apperrors.Internal(err))
		return
	}

	httputil.RespondWithSuccess(c, tokens)
}
