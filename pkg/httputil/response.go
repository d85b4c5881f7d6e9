package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/booking-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents API error
type Error struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details interface{}      `json:"details,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
	TotalPage int `json:"total_pages"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithCreated sends a 201 response
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
	})
}

// RespondWithError maps an error to its HTTP status and sends the envelope.
func RespondWithError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   &Error{Code: errors.ErrInternal, Message: "internal server error"},
		})
		return
	}

	c.JSON(statusFor(appErr.Code), Response{
		Success: false,
		Error: &Error{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest, errors.ErrInvalidInterval:
		return http.StatusBadRequest
	case errors.ErrUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrForbidden:
		return http.StatusForbidden
	case errors.ErrDoctorDoubleBooked, errors.ErrRoomDoubleBooked, errors.ErrConflict:
		return http.StatusConflict
	case errors.ErrInactiveDoctor, errors.ErrInvalidTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithPagination sends a paginated response
func RespondWithPagination(c *gin.Context, data interface{}, page, pageSize, total int) {
	totalPages := (total + pageSize - 1) / pageSize

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: PaginatedResponse{
			Data: data,
			Pagination: Pagination{
				Page:      page,
				PageSize:  pageSize,
				Total:     total,
				TotalPage: totalPages,
			},
		},
	})
}
