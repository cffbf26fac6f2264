package notification

import (
	"strconv"

	"scrap-pickup/apperrors"
	"scrap-pickup/middleware"
	notificationSvc "scrap-pickup/services/notification"
	"scrap-pickup/types"
	"scrap-pickup/utils"

	"github.com/gofiber/fiber/v2"
)

type NotificationController struct {
	Notifications *notificationSvc.Service
}

func NewNotificationController(notifications *notificationSvc.Service) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

// Index lists the caller's notifications, newest first.
func (nc *NotificationController) Index(c *fiber.Ctx) error {
	limit, offset := utils.ParseLimitOffset(c)
	items, err := nc.Notifications.ListForUser(middleware.CurrentUserID(c), limit, offset)
	if err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Notifications fetched successfully",
		Status:  fiber.StatusOK,
		Data:    fiber.Map{"notifications": items, "limit": limit, "offset": offset},
	})
}

// MarkRead marks one of the caller's notifications as read.
func (nc *NotificationController) MarkRead(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return utils.ErrorResponse(c, &apperrors.ValidationError{Field: "id", Reason: "must be a number"})
	}
	if err := nc.Notifications.MarkRead(middleware.CurrentUserID(c), uint(id)); err != nil {
		return utils.ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(types.ApiResponse{
		Message: "Notification marked as read",
		Status:  fiber.StatusOK,
	})
}
