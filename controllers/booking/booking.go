package booking

import (
	"scrap-pickup/apperrors"
	"scrap-pickup/constants"
	"scrap-pickup/logger"
	"scrap-pickup/middleware"
	bookingModel "scrap-pickup/models/booking"
	bookingSvc "scrap-pickup/services/booking"
	dispatchSvc "scrap-pickup/services/dispatch"
	"scrap-pickup/types"
	"scrap-pickup/utils"

	"github.com/gofiber/fiber/v2"
)

// BookingController exposes the booking lifecycle over HTTP.
type BookingController struct {
	Bookings *bookingSvc.Service
	Dispatch *dispatchSvc.Service
}

func NewBookingController(bookings *bookingSvc.Service, dispatch *dispatchSvc.Service) *BookingController {
	return &BookingController{Bookings: bookings, Dispatch: dispatch}
}

func actorFromCtx(c *fiber.Ctx) bookingSvc.Actor {
	return bookingSvc.Actor{ID: middleware.CurrentUserID(c), Role: middleware.CurrentRole(c)}
}

// Store creates a booking and immediately attempts auto-dispatch. When no
// candidate is in range the booking stays pending and the response says so;
// the creation itself still succeeds.
func (bc *BookingController) Store(c *fiber.Ctx) error {
	var req types.BookingCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Reason: "malformed request body"})
	}
	if err := types.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	input := bookingSvc.CreateInput{
		CustomerID:          middleware.CurrentUserID(c),
		PickupAddress:       req.PickupAddress,
		Landmark:            req.Landmark,
		City:                req.City,
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		ContactPerson:       req.ContactPerson,
		ContactPhone:        req.ContactPhone,
		SpecialInstructions: req.SpecialInstructions,
		ScheduledAt:         req.ScheduledAt,
		TimeSlot:            req.TimeSlot,
		Images:              req.Images,
	}
	for _, m := range req.Materials {
		input.Materials = append(input.Materials, bookingSvc.MaterialLineInput{
			MaterialID: m.MaterialID,
			Quantity:   m.Quantity,
			Notes:      m.Notes,
		})
	}

	b, err := bc.Bookings.Create(input)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	data := fiber.Map{"booking": b, "dispatch_status": "assigned"}
	message := "Booking created and collector assigned"

	result, derr := bc.Dispatch.AutoAssign(b.ID)
	switch {
	case derr == nil:
		data["booking"] = result.Booking
		data["assignment"] = result
	case apperrors.IsNoCandidate(derr):
		data["dispatch_status"] = "pending"
		data["dispatch_reason"] = derr.Error()
		message = "Booking created, waiting for an available collector"
	default:
		logger.Error("Auto-dispatch failed for booking "+b.ID, derr)
		data["dispatch_status"] = "pending"
		message = "Booking created, dispatch will be retried"
	}

	return c.Status(fiber.StatusCreated).JSON(types.ApiResponse{
		Message: message,
		Status:  fiber.StatusCreated,
		Data:    data,
	})
}

// Show returns one booking the caller is party to.
func (bc *BookingController) Show(c *fiber.Ctx) error {
	b, err := bc.Bookings.GetForActor(c.Params("id"), actorFromCtx(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Booking fetched successfully",
		Status:  fiber.StatusOK,
		Data:    b,
	})
}

// Index lists the caller's bookings, customers see theirs, collectors see
// their assignments. Supports ?status=, ?limit= and ?offset=.
func (bc *BookingController) Index(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	status := c.Query("status")
	limit, offset := utils.ParseLimitOffset(c)

	var (
		bookings []bookingModel.Booking
		err      error
	)
	switch actor.Role {
	case constants.RoleCollector:
		bookings, err = bc.Bookings.ListForCollector(actor.ID, status, limit, offset)
	default:
		bookings, err = bc.Bookings.ListForCustomer(actor.ID, status, limit, offset)
	}
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Bookings fetched successfully",
		Status:  fiber.StatusOK,
		Data:    fiber.Map{"bookings": bookings, "limit": limit, "offset": offset},
	})
}

// History returns the append-only status trail of a booking.
func (bc *BookingController) History(c *fiber.Ctx) error {
	entries, err := bc.Bookings.GetHistory(c.Params("id"), actorFromCtx(c))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Booking history fetched successfully",
		Status:  fiber.StatusOK,
		Data:    entries,
	})
}

// Transition applies a lifecycle edge. The caller's last observed status is
// the optimistic-concurrency guard, so a stale client gets a 409 instead of
// silently overwriting a concurrent change.
func (bc *BookingController) Transition(c *fiber.Ctx) error {
	var req types.BookingTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Reason: "malformed request body"})
	}
	if err := types.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	actor := actorFromCtx(c)
	current, err := bc.Bookings.GetForActor(c.Params("id"), actor)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	b, err := bc.Bookings.Transition(current.ID, current.Status,
		bookingModel.BookingStatus(req.TargetStatus), actor, req.Notes)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Booking status updated successfully",
		Status:  fiber.StatusOK,
		Data:    b,
	})
}

// Assign manually assigns a collector. Admin only; capacity is re-validated
// inside the commit.
func (bc *BookingController) Assign(c *fiber.Ctx) error {
	var req types.BookingAssignRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Reason: "malformed request body"})
	}
	if err := types.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	b, err := bc.Bookings.AssignCollector(c.Params("id"), req.CollectorID, actorFromCtx(c), req.Notes)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Collector assigned successfully",
		Status:  fiber.StatusOK,
		Data:    b,
	})
}

// Redispatch re-runs auto-assignment for a pending booking.
func (bc *BookingController) Redispatch(c *fiber.Ctx) error {
	result, err := bc.Dispatch.AutoAssign(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Collector assigned successfully",
		Status:  fiber.StatusOK,
		Data:    result,
	})
}

// Complete finishes an in-progress booking with the measured weights.
func (bc *BookingController) Complete(c *fiber.Ctx) error {
	var req types.BookingCompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Reason: "malformed request body"})
	}
	if err := types.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	weights := make([]bookingSvc.ActualWeight, 0, len(req.Weights))
	for _, w := range req.Weights {
		weights = append(weights, bookingSvc.ActualWeight{MaterialID: w.MaterialID, Quantity: w.Quantity})
	}

	b, err := bc.Bookings.Complete(c.Params("id"), actorFromCtx(c), weights, req.Images)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Booking completed successfully",
		Status:  fiber.StatusOK,
		Data:    b,
	})
}

// Cancel moves a non-terminal booking to cancelled.
func (bc *BookingController) Cancel(c *fiber.Ctx) error {
	var req types.BookingCancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.ErrorResponse(c, &apperrors.ValidationError{Reason: "malformed request body"})
		}
	}

	b, err := bc.Bookings.Cancel(c.Params("id"), actorFromCtx(c), req.Reason)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Booking cancelled successfully",
		Status:  fiber.StatusOK,
		Data:    b,
	})
}

// Update changes non-lifecycle fields such as the address or schedule.
func (bc *BookingController) Update(c *fiber.Ctx) error {
	var req types.BookingUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Reason: "malformed request body"})
	}
	if err := types.Validate(req); err != nil {
		return utils.ErrorResponse(c, err)
	}

	b, err := bc.Bookings.UpdateDetails(c.Params("id"), actorFromCtx(c), bookingSvc.UpdateDetailsInput{
		PickupAddress:       req.PickupAddress,
		Landmark:            req.Landmark,
		ContactPerson:       req.ContactPerson,
		ContactPhone:        req.ContactPhone,
		SpecialInstructions: req.SpecialInstructions,
		ScheduledAt:         req.ScheduledAt,
		TimeSlot:            req.TimeSlot,
	})
	if err != nil {
		return utils.ErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Booking updated successfully",
		Status:  fiber.StatusOK,
		Data:    b,
	})
}
