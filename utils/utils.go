package utils

import (
	"errors"
	"strconv"
	"time"

	"scrap-pickup/apperrors"
	"scrap-pickup/types"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/now"
)

// DayWindow returns the start and end of the calendar day containing t.
// Used by the dispatch capacity check to count same-day workload.
func DayWindow(t time.Time) (time.Time, time.Time) {
	n := now.New(t)
	return n.BeginningOfDay(), n.EndOfDay()
}

// FormatActorID renders a numeric user id the way status history stores it.
func FormatActorID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseLimitOffset reads paging query params with sane defaults.
func ParseLimitOffset(c *fiber.Ctx) (int, int) {
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.Query("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ErrorResponse maps the service error taxonomy onto HTTP status codes and
// renders the standard ApiResponse envelope.
func ErrorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	var (
		validationErr *apperrors.ValidationError
		notFoundErr   *apperrors.NotFoundError
		permissionErr *apperrors.PermissionError
		transitionErr *apperrors.InvalidTransitionError
		conflictErr   *apperrors.ConflictError
		candidateErr  *apperrors.NoCandidateError
	)

	switch {
	case errors.As(err, &validationErr):
		status = fiber.StatusBadRequest
		message = validationErr.Error()
	case errors.As(err, &notFoundErr):
		status = fiber.StatusNotFound
		message = notFoundErr.Error()
	case errors.As(err, &permissionErr):
		status = fiber.StatusForbidden
		message = permissionErr.Error()
	case errors.As(err, &transitionErr):
		status = fiber.StatusUnprocessableEntity
		message = transitionErr.Error()
	case errors.As(err, &conflictErr):
		status = fiber.StatusConflict
		message = "Booking changed concurrently, please refresh and retry"
	case errors.As(err, &candidateErr):
		status = fiber.StatusConflict
		message = candidateErr.Error()
	}

	return c.Status(status).JSON(types.ApiResponse{
		Status:  status,
		Message: message,
		Data:    nil,
	})
}
