package collector

import (
	"strconv"
	"time"

	"scrap-pickup/apperrors"
	"scrap-pickup/constants"
	"scrap-pickup/middleware"
	collectorModel "scrap-pickup/models/collector"
	dispatchSvc "scrap-pickup/services/dispatch"
	"scrap-pickup/types"
	"scrap-pickup/utils"

	"github.com/gofiber/fiber/v2"
)

// CollectorController exposes collector location, availability and
// performance endpoints.
type CollectorController struct {
	Dispatch *dispatchSvc.Service
}

func NewCollectorController(dispatch *dispatchSvc.Service) *CollectorController {
	return &CollectorController{Dispatch: dispatch}
}

// UpdateLocation stores the caller's latest position. Samples older than the
// stored one are acknowledged but discarded; last write by event time wins.
func (cc *CollectorController) UpdateLocation(c *fiber.Ctx) error {
	var req types.LocationUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Reason: "malformed request body"})
	}
	if err := types.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	status := collectorModel.LocationStatusAvailable
	if req.Status != "" {
		status = collectorModel.LocationStatus(req.Status)
	}
	sampledAt := time.Now()
	if req.SampledAt != nil {
		sampledAt = *req.SampledAt
	}

	sample, applied, err := cc.Dispatch.UpdateLocation(
		middleware.CurrentUserID(c), req.Latitude, req.Longitude, status, sampledAt)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	message := "Location updated successfully"
	if !applied {
		message = "Stale location sample discarded"
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: message,
		Status:  fiber.StatusOK,
		Data:    fiber.Map{"location": sample, "applied": applied},
	})
}

// Nearby returns ranked collector candidates around a point. Admin only.
func (cc *CollectorController) Nearby(c *fiber.Ctx) error {
	lat, err := strconv.ParseFloat(c.Query("latitude"), 64)
	if err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Field: "latitude", Reason: "must be a number"})
	}
	lng, err := strconv.ParseFloat(c.Query("longitude"), 64)
	if err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Field: "longitude", Reason: "must be a number"})
	}
	if !utils.ValidCoordinates(lat, lng) {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Field: "latitude/longitude", Reason: "out of range"})
	}

	radius := cc.Dispatch.SearchRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return utils.ErrorResponse(c, &apperrors.ValidationError{Field: "radius_km", Reason: "must be a positive number"})
		}
		radius = parsed
	}

	candidates, err := cc.Dispatch.FindNearby(lat, lng, radius)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Nearby collectors fetched successfully",
		Status:  fiber.StatusOK,
		Data:    fiber.Map{"candidates": candidates, "radius_km": radius},
	})
}

// Performance returns completion metrics for a collector over a trailing
// window. Collectors may query themselves; admins anyone.
func (cc *CollectorController) Performance(c *fiber.Ctx) error {
	targetID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Field: "id", Reason: "must be a number"})
	}
	if middleware.CurrentRole(c) != constants.RoleAdmin && uint(targetID) != middleware.CurrentUserID(c) {
		return utils.ErrorResponse(c, &apperrors.PermissionError{Reason: "collectors may only view their own performance"})
	}

	days := 30
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return utils.ErrorResponse(c, &apperrors.ValidationError{Field: "days", Reason: "must be a positive number"})
		}
		days = parsed
	}

	perf, err := cc.Dispatch.CollectorPerformance(uint(targetID), days)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Collector performance fetched successfully",
		Status:  fiber.StatusOK,
		Data:    perf,
	})
}
